package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	creditdomain "github.com/tradecore/leadengine/internal/credit/domain"
	"github.com/tradecore/leadengine/pkg/db/pagination"
)

type creditsQuery struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

func (s *Server) GetCredits(c *gin.Context) {
	contractorID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var query creditsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	balance, err := s.creditSvc.Balance(c.Request.Context(), contractorID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	history, err := s.creditSvc.History(c.Request.Context(), creditdomain.HistoryRequest{
		ContractorID: contractorID,
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"balance":      balance,
		"transactions": history.Transactions,
		"page_info":    history.PageInfo,
	})
}

package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	creditdomain "github.com/tradecore/leadengine/internal/credit/domain"
)

type adjustCreditsRequest struct {
	ContractorID string `json:"contractor_id" binding:"required"`
	Amount       int64  `json:"amount" binding:"required"`
	Type         string `json:"type"`
	Reason       string `json:"reason" binding:"required"`
}

func (s *Server) AdminAdjustCredits(c *gin.Context) {
	var req adjustCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	contractorID, err := snowflake.ParseString(req.ContractorID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	txType := creditdomain.TransactionType(strings.ToUpper(strings.TrimSpace(req.Type)))
	txn, err := s.adminSvc.AdjustCredits(c.Request.Context(), contractorID, req.Amount, txType, req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": txn})
}

type overridePriceRequest struct {
	Price  int64  `json:"price"`
	Reason string `json:"reason" binding:"required"`
}

func (s *Server) AdminOverrideLeadPrice(c *gin.Context) {
	jobID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req overridePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.adminSvc.OverrideLeadPrice(c.Request.Context(), jobID, req.Price, req.Reason); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type setLimitRequest struct {
	MaxContractors int    `json:"max_contractors" binding:"required"`
	Reason         string `json:"reason" binding:"required"`
}

func (s *Server) AdminSetContractorLimit(c *gin.Context) {
	jobID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req setLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.adminSvc.SetContractorLimit(c.Request.Context(), jobID, req.MaxContractors, req.Reason); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type reasonRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (s *Server) AdminLockJob(c *gin.Context) {
	s.adminJobAction(c, s.adminSvc.LockJob, "locked")
}

func (s *Server) AdminUnlockJob(c *gin.Context) {
	s.adminJobAction(c, s.adminSvc.UnlockJob, "unlocked")
}

func (s *Server) adminJobAction(c *gin.Context, action func(ctx context.Context, jobID snowflake.ID, reason string) error, status string) {
	jobID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := action(c.Request.Context(), jobID, req.Reason); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

type approveWinnerRequest struct {
	ContractorID string `json:"contractor_id" binding:"required"`
	Reason       string `json:"reason" binding:"required"`
}

func (s *Server) AdminForceApproveWinner(c *gin.Context) {
	jobID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req approveWinnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	contractorID, err := snowflake.ParseString(req.ContractorID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.adminSvc.ForceApproveWinner(c.Request.Context(), jobID, contractorID, req.Reason); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "approved"})
}

type forceSettleRequest struct {
	FinalAmount int64  `json:"final_amount" binding:"required"`
	Reason      string `json:"reason" binding:"required"`
}

func (s *Server) AdminForceSettle(c *gin.Context) {
	jobID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req forceSettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	settled, err := s.adminSvc.ForceSettle(c.Request.Context(), jobID, req.FinalAmount, req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settlement": settled})
}

package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type completeJobRequest struct {
	ContractorID string `json:"contractor_id" binding:"required"`
	FinalAmount  int64  `json:"final_amount" binding:"required"`
	Reason       string `json:"reason"`
}

// CompleteJob records the contractor-reported win. Settlement happens
// here only when the customer already confirmed; otherwise it waits for
// the confirmation callback.
func (s *Server) CompleteJob(c *gin.Context) {
	jobID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req completeJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	contractorID, err := snowflake.ParseString(req.ContractorID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.settlementSvc.MarkCompleted(c.Request.Context(), jobID, contractorID, req.FinalAmount, req.Reason); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "completed"})
}

func (s *Server) ConfirmJob(c *gin.Context) {
	jobID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.settlementSvc.ConfirmByCustomer(c.Request.Context(), jobID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "confirmed"})
}

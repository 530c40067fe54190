package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	accessdomain "github.com/tradecore/leadengine/internal/access/domain"
	"github.com/tradecore/leadengine/internal/pricing"
)

type purchaseAccessRequest struct {
	ContractorID string `json:"contractor_id" binding:"required"`
	JobID        string `json:"job_id" binding:"required"`
	Method       string `json:"method" binding:"required"`
	PaymentRef   string `json:"payment_ref"`
}

func (s *Server) PurchaseAccess(c *gin.Context) {
	var req purchaseAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	contractorID, err := snowflake.ParseString(req.ContractorID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	jobID, err := snowflake.ParseString(req.JobID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	method := accessdomain.Method(strings.ToUpper(strings.TrimSpace(req.Method)))
	switch method {
	case accessdomain.MethodCredit, accessdomain.MethodStripe, accessdomain.MethodStripeSubscriber:
	default:
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	grant, err := s.accessSvc.Purchase(c.Request.Context(), accessdomain.PurchaseRequest{
		ContractorID: contractorID,
		JobID:        jobID,
		Method:       method,
		PaymentRef:   strings.TrimSpace(req.PaymentRef),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"grant": grant})
}

type checkAccessQuery struct {
	ContractorID string `form:"contractor_id" binding:"required"`
	JobID        string `form:"job_id" binding:"required"`
}

func (s *Server) CheckAccess(c *gin.Context) {
	var query checkAccessQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	contractorID, err := snowflake.ParseString(query.ContractorID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	jobID, err := snowflake.ParseString(query.JobID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.accessSvc.CheckAccess(c.Request.Context(), contractorID, jobID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

type createIntentRequest struct {
	ContractorID string `json:"contractor_id" binding:"required"`
	JobID        string `json:"job_id" binding:"required"`
	Method       string `json:"method" binding:"required"`
}

// CreatePaymentIntent quotes the card amount for a lead and opens a
// gateway intent for it. The client confirms the intent and then calls
// purchase with the intent id.
func (s *Server) CreatePaymentIntent(c *gin.Context) {
	var req createIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	contractorID, err := snowflake.ParseString(req.ContractorID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	jobID, err := snowflake.ParseString(req.JobID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	method := accessdomain.Method(strings.ToUpper(strings.TrimSpace(req.Method)))
	switch method {
	case accessdomain.MethodStripe, accessdomain.MethodStripeSubscriber:
	default:
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	check, err := s.accessSvc.CheckAccess(c.Request.Context(), contractorID, jobID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// Pay-per-lead card payments carry VAT; subscriber pay-in-full does not.
	amount := check.LeadPrice
	if method == accessdomain.MethodStripe {
		amount = pricing.WithVAT(amount, s.cfg.VATRatePercent)
	}

	intent, err := s.gateway.CreateIntent(c.Request.Context(), jobID, contractorID, amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"intent_id":     intent.ID,
		"client_secret": intent.ClientSecret,
		"amount":        intent.Amount,
	})
}

func (s *Server) GetLead(c *gin.Context) {
	jobID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	contractorID, err := snowflake.ParseString(strings.TrimSpace(c.Query("contractor_id")))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	view, err := s.accessSvc.Lead(c.Request.Context(), contractorID, jobID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

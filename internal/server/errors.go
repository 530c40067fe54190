package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	accessdomain "github.com/tradecore/leadengine/internal/access/domain"
	admindomain "github.com/tradecore/leadengine/internal/admin/domain"
	auditdomain "github.com/tradecore/leadengine/internal/audit/domain"
	contractordomain "github.com/tradecore/leadengine/internal/contractor/domain"
	creditdomain "github.com/tradecore/leadengine/internal/credit/domain"
	jobdomain "github.com/tradecore/leadengine/internal/job/domain"
	paymentdomain "github.com/tradecore/leadengine/internal/payment/domain"
	settlementdomain "github.com/tradecore/leadengine/internal/settlement/domain"
	slotdomain "github.com/tradecore/leadengine/internal/slot/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var ErrInvalidRequest = errors.New("invalid_request")

// ErrorHandlingMiddleware converts domain errors collected on the gin
// context into JSON error responses with a stable type field.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	var invalidMethod *accessdomain.InvalidMethodError
	if errors.As(err, &invalidMethod) {
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "invalid_method",
			Message: "payment method not eligible for this job",
			Details: map[string]any{
				"method":           invalidMethod.Method,
				"eligible_methods": invalidMethod.Eligible,
			},
		}
	}

	var insufficient *creditdomain.InsufficientCreditsError
	if errors.As(err, &insufficient) {
		return http.StatusPaymentRequired, errorPayload{
			Type:    "insufficient_credits",
			Message: "not enough credits",
			Details: map[string]any{"balance": insufficient.Balance},
		}
	}

	var slotsFull *slotdomain.SlotsFullError
	if errors.As(err, &slotsFull) {
		return http.StatusConflict, errorPayload{
			Type:    "slots_full",
			Message: "all contractor slots for this job are taken",
			Details: map[string]any{"max_contractors": slotsFull.MaxContractors},
		}
	}

	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, creditdomain.ErrInvalidAmount),
		errors.Is(err, creditdomain.ErrReasonRequired),
		errors.Is(err, settlementdomain.ErrInvalidAmount),
		errors.Is(err, slotdomain.ErrInvalidLimit),
		errors.Is(err, admindomain.ErrInvalidPrice),
		errors.Is(err, admindomain.ErrReasonRequired),
		errors.Is(err, accessdomain.ErrPaymentRefRequired),
		errors.Is(err, auditdomain.ErrInvalidAction):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: err.Error(),
		}
	case errors.Is(err, admindomain.ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, creditdomain.ErrNotEligible):
		return http.StatusForbidden, errorPayload{
			Type:    "not_eligible",
			Message: "contractor is not eligible for this debit",
		}
	case errors.Is(err, creditdomain.ErrInsufficientCredits):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "insufficient_credits",
			Message: "not enough credits",
		}
	case errors.Is(err, accessdomain.ErrPaymentNotConfirmed):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "payment_not_confirmed",
			Message: "payment has not been confirmed by the gateway",
		}
	case errors.Is(err, slotdomain.ErrSlotsFull):
		return http.StatusConflict, errorPayload{
			Type:    "slots_full",
			Message: "all contractor slots for this job are taken",
		}
	case errors.Is(err, slotdomain.ErrJobLocked):
		return http.StatusConflict, errorPayload{
			Type:    "job_locked",
			Message: "job is locked for purchases",
		}
	case errors.Is(err, settlementdomain.ErrAlreadySettled):
		return http.StatusConflict, errorPayload{
			Type:    "already_settled",
			Message: "job commission has already been settled",
		}
	case errors.Is(err, settlementdomain.ErrJobNotCompleted),
		errors.Is(err, settlementdomain.ErrNotConfirmed),
		errors.Is(err, settlementdomain.ErrNoWinner):
		return http.StatusConflict, errorPayload{
			Type:    "not_settleable",
			Message: err.Error(),
		}
	case isNotFound(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, paymentdomain.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "gateway_unavailable",
			Message: "payment gateway unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) ||
		errors.Is(err, accessdomain.ErrJobNotFound) ||
		errors.Is(err, accessdomain.ErrContractorNotFound) ||
		errors.Is(err, jobdomain.ErrJobNotFound) ||
		errors.Is(err, jobdomain.ErrServiceNotFound) ||
		errors.Is(err, contractordomain.ErrContractorNotFound) ||
		errors.Is(err, creditdomain.ErrContractorNotFound) ||
		errors.Is(err, slotdomain.ErrJobNotFound) ||
		errors.Is(err, settlementdomain.ErrJobNotFound) ||
		errors.Is(err, admindomain.ErrJobNotFound) ||
		errors.Is(err, paymentdomain.ErrIntentNotFound)
}

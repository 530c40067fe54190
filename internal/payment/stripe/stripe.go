package stripe

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/tradecore/leadengine/internal/payment/domain"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

type Gateway struct {
	secretKey string
}

func NewGateway(secretKey string) *Gateway {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey != "" {
		stripe.Key = secretKey
	}
	return &Gateway{secretKey: secretKey}
}

func (g *Gateway) CreateIntent(ctx context.Context, jobID, contractorID snowflake.ID, amount int64) (*paymentdomain.Intent, error) {
	if g.secretKey == "" {
		return nil, paymentdomain.ErrGatewayUnavailable
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(string(stripe.CurrencyEUR)),
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
		}),
	}
	params.Context = ctx
	params.AddMetadata("job_id", jobID.String())
	params.AddMetadata("contractor_id", contractorID.String())

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, err
	}

	return &paymentdomain.Intent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       intent.Amount,
	}, nil
}

func (g *Gateway) Confirm(ctx context.Context, intentID string) (*paymentdomain.Confirmation, error) {
	if g.secretKey == "" {
		return nil, paymentdomain.ErrGatewayUnavailable
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, paymentdomain.ErrIntentNotFound
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := paymentintent.Get(intentID, params)
	if err != nil {
		if stripeErr, ok := err.(*stripe.Error); ok && stripeErr.HTTPStatusCode == 404 {
			return nil, paymentdomain.ErrIntentNotFound
		}
		return nil, err
	}

	return &paymentdomain.Confirmation{
		Status: mapStatus(intent.Status),
		Amount: intent.Amount,
	}, nil
}

func mapStatus(status stripe.PaymentIntentStatus) paymentdomain.IntentStatus {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return paymentdomain.IntentStatusSucceeded
	case stripe.PaymentIntentStatusProcessing:
		return paymentdomain.IntentStatusProcessing
	case stripe.PaymentIntentStatusCanceled:
		return paymentdomain.IntentStatusCanceled
	default:
		return paymentdomain.IntentStatusFailed
	}
}

// Package domain defines the payment gateway boundary. The engine treats
// the gateway as an opaque collaborator: it only ever asks for an intent
// and checks whether a given intent id has succeeded.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type IntentStatus string

const (
	IntentStatusSucceeded  IntentStatus = "succeeded"
	IntentStatusProcessing IntentStatus = "processing"
	IntentStatusCanceled   IntentStatus = "canceled"
	IntentStatusFailed     IntentStatus = "failed"
)

type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
}

type Confirmation struct {
	Status IntentStatus
	Amount int64
}

// Succeeded reports whether the gateway considers the payment final.
// Anything else is treated as unconfirmed.
func (c Confirmation) Succeeded() bool {
	return c.Status == IntentStatusSucceeded
}

type Gateway interface {
	CreateIntent(ctx context.Context, jobID, contractorID snowflake.ID, amount int64) (*Intent, error)
	Confirm(ctx context.Context, intentID string) (*Confirmation, error)
}

var (
	ErrGatewayUnavailable = errors.New("gateway_unavailable")
	ErrIntentNotFound     = errors.New("intent_not_found")
)

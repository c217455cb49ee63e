package port

import (
	"context"

	"balance_aggregator/internal/domain/entity"
)

// RealtimeChannel is a single push connection to the messaging service.
type RealtimeChannel interface {
	Connect(ctx context.Context, userID string) error
	Disconnect()
	Send(env entity.Envelope) bool
	State() string
	Messages() []entity.ReceivedEnvelope
}

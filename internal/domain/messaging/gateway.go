// internal/domain/messaging/gateway.go
package messaging

import (
	"context"

	"reminder_service/internal/domain/notification"
)

// Gateway sends one composed message over a channel. Implementations do not retry.
type Gateway interface {
	Send(ctx context.Context, req notification.DispatchRequest) (notification.DispatchResult, error)
}

// internal/domain/notification/repository.go
package notification

import (
	"context"
	"time"
)

// MarkerRepository is the shared check-and-set store behind at-most-once delivery.
type MarkerRepository interface {
	// TryClaim atomically reserves the window for the caller. It succeeds when no
	// marker exists yet, or when a pending claim's lease expired before now.
	// It returns false when the window was already sent or is held by another claim.
	TryClaim(ctx context.Context, key MarkerKey, now time.Time, lease time.Duration) (bool, error)
	// Confirm marks a claimed window as sent.
	Confirm(ctx context.Context, key MarkerKey, messageID string, sentAt time.Time) error
	// Release drops a pending claim so the next evaluation can retry.
	Release(ctx context.Context, key MarkerKey) error
	// IsSent reports whether the window already has a confirmed send.
	IsSent(ctx context.Context, key MarkerKey) (bool, error)
}

// PreferenceRepository persists the raw preference blob per user.
type PreferenceRepository interface {
	// GetBlob returns ErrPreferencesNotFound when the user has no stored record.
	GetBlob(ctx context.Context, userID string) ([]byte, error)
	PutBlob(ctx context.Context, userID string, blob []byte) error
}

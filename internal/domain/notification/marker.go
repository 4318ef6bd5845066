// internal/domain/notification/marker.go
package notification

import "time"

// MarkerKey identifies one trigger window of one user.
type MarkerKey struct {
	UserID    string
	Trigger   TriggerKind
	WindowKey string // e.g. the ISO date of the week start for weekly reviews
}

// Marker records that a (user, window) pair produced, or is producing, a send.
// Only a marker with Status == MarkerSent counts as "already sent".
type Marker struct {
	Key        MarkerKey
	Status     MarkerStatus
	MessageID  string
	LeaseUntil time.Time
	SentAt     time.Time
	UpdatedAt  time.Time
}

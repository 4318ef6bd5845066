package database

import (
	"context"
	"sync"
	"time"

	"reminder_service/internal/domain/notification"
)

// MemoryMarkerRepository is a process-local marker store with the same
// check-and-set semantics as the SQL one. Only safe for a single instance.
type MemoryMarkerRepository struct {
	mu      sync.Mutex
	markers map[notification.MarkerKey]notification.Marker
}

func NewMemoryMarkerRepository() *MemoryMarkerRepository {
	return &MemoryMarkerRepository{markers: make(map[notification.MarkerKey]notification.Marker)}
}

func (r *MemoryMarkerRepository) TryClaim(_ context.Context, key notification.MarkerKey, now time.Time, lease time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.markers[key]; ok {
		if m.Status == notification.MarkerSent || now.Before(m.LeaseUntil) {
			return false, nil
		}
	}
	r.markers[key] = notification.Marker{
		Key:        key,
		Status:     notification.MarkerPending,
		LeaseUntil: now.Add(lease),
		UpdatedAt:  now,
	}
	return true, nil
}

func (r *MemoryMarkerRepository) Confirm(_ context.Context, key notification.MarkerKey, messageID string, sentAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markers[key] = notification.Marker{
		Key:       key,
		Status:    notification.MarkerSent,
		MessageID: messageID,
		SentAt:    sentAt,
		UpdatedAt: sentAt,
	}
	return nil
}

func (r *MemoryMarkerRepository) Release(_ context.Context, key notification.MarkerKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.markers[key]; ok && m.Status == notification.MarkerPending {
		delete(r.markers, key)
	}
	return nil
}

func (r *MemoryMarkerRepository) IsSent(_ context.Context, key notification.MarkerKey) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.markers[key]
	return ok && m.Status == notification.MarkerSent, nil
}

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reminder_service/internal/domain/notification"
)

// SQLMarkerRepository keeps delivery markers in a shared SQL table, so the
// at-most-once guarantee holds across scheduler instances.
type SQLMarkerRepository struct {
	db *DB
}

func NewSQLMarkerRepository(db *DB) *SQLMarkerRepository {
	return &SQLMarkerRepository{db: db}
}

// TryClaim inserts a pending row, or takes over a pending row whose lease ran
// out. A sent row is never touched.
func (r *SQLMarkerRepository) TryClaim(ctx context.Context, key notification.MarkerKey, now time.Time, lease time.Duration) (bool, error) {
	query := r.db.Rebind(`INSERT INTO delivery_markers (user_id, trigger_kind, window_key, status, lease_until, updated_at)
               VALUES (?, ?, ?, ?, ?, ?)
               ON CONFLICT (user_id, trigger_kind, window_key) DO UPDATE SET
                   status      = excluded.status,
                   lease_until = excluded.lease_until,
                   updated_at  = excluded.updated_at
               WHERE delivery_markers.status = ? AND delivery_markers.lease_until <= ?`)
	nowUnix := now.UTC().Unix()
	res, err := r.db.ExecContext(ctx, query,
		key.UserID, string(key.Trigger), key.WindowKey, string(notification.MarkerPending),
		now.Add(lease).UTC().Unix(), nowUnix,
		string(notification.MarkerPending), nowUnix,
	)
	if err != nil {
		return false, fmt.Errorf("error claiming delivery marker: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading claim result: %w", err)
	}
	return n > 0, nil
}

// Confirm marks the window as sent, creating the row if the claim vanished.
func (r *SQLMarkerRepository) Confirm(ctx context.Context, key notification.MarkerKey, messageID string, sentAt time.Time) error {
	query := r.db.Rebind(`INSERT INTO delivery_markers (user_id, trigger_kind, window_key, status, message_id, lease_until, sent_at, updated_at)
               VALUES (?, ?, ?, ?, ?, 0, ?, ?)
               ON CONFLICT (user_id, trigger_kind, window_key) DO UPDATE SET
                   status      = excluded.status,
                   message_id  = excluded.message_id,
                   lease_until = 0,
                   sent_at     = excluded.sent_at,
                   updated_at  = excluded.updated_at`)
	ts := sentAt.UTC().Unix()
	_, err := r.db.ExecContext(ctx, query,
		key.UserID, string(key.Trigger), key.WindowKey, string(notification.MarkerSent), messageID, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("error confirming delivery marker: %w", err)
	}
	return nil
}

// Release removes a pending claim. Sent rows stay.
func (r *SQLMarkerRepository) Release(ctx context.Context, key notification.MarkerKey) error {
	query := r.db.Rebind(`DELETE FROM delivery_markers
               WHERE user_id = ? AND trigger_kind = ? AND window_key = ? AND status = ?`)
	_, err := r.db.ExecContext(ctx, query, key.UserID, string(key.Trigger), key.WindowKey, string(notification.MarkerPending))
	if err != nil {
		return fmt.Errorf("error releasing delivery marker: %w", err)
	}
	return nil
}

func (r *SQLMarkerRepository) IsSent(ctx context.Context, key notification.MarkerKey) (bool, error) {
	m, err := r.Get(ctx, key)
	if err != nil {
		if err == ErrMarkerNotFound {
			return false, nil
		}
		return false, err
	}
	return m.Status == notification.MarkerSent, nil
}

// ErrMarkerNotFound is returned by Get when no row exists for the key.
var ErrMarkerNotFound = fmt.Errorf("delivery marker not found")

// Get loads the marker row for key.
func (r *SQLMarkerRepository) Get(ctx context.Context, key notification.MarkerKey) (*notification.Marker, error) {
	query := r.db.Rebind(`SELECT status, message_id, lease_until, sent_at, updated_at
               FROM delivery_markers
               WHERE user_id = ? AND trigger_kind = ? AND window_key = ?`)
	var (
		status     string
		messageID  string
		leaseUntil int64
		sentAt     sql.NullInt64
		updatedAt  int64
	)
	err := r.db.QueryRowContext(ctx, query, key.UserID, string(key.Trigger), key.WindowKey).
		Scan(&status, &messageID, &leaseUntil, &sentAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrMarkerNotFound
		}
		return nil, fmt.Errorf("error getting delivery marker: %w", err)
	}
	m := &notification.Marker{
		Key:        key,
		Status:     notification.MarkerStatus(status),
		MessageID:  messageID,
		LeaseUntil: time.Unix(leaseUntil, 0).UTC(),
		UpdatedAt:  time.Unix(updatedAt, 0).UTC(),
	}
	if t := fromNullInt64(sentAt); t != nil {
		m.SentAt = *t
	}
	return m, nil
}

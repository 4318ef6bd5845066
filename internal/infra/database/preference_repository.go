package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reminder_service/internal/domain/notification"
)

// SQLPreferenceRepository stores the raw preference blob per user.
type SQLPreferenceRepository struct {
	db  *DB
	now func() time.Time
}

func NewSQLPreferenceRepository(db *DB) *SQLPreferenceRepository {
	return &SQLPreferenceRepository{db: db, now: time.Now}
}

func (r *SQLPreferenceRepository) GetBlob(ctx context.Context, userID string) ([]byte, error) {
	query := r.db.Rebind(`SELECT payload FROM notification_preferences WHERE user_id = ?`)
	var payload string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, notification.ErrPreferencesNotFound
		}
		return nil, fmt.Errorf("error getting notification preferences: %w", err)
	}
	return []byte(payload), nil
}

// PutBlob overwrites the stored record.
func (r *SQLPreferenceRepository) PutBlob(ctx context.Context, userID string, blob []byte) error {
	query := r.db.Rebind(`INSERT INTO notification_preferences (user_id, payload, updated_at)
               VALUES (?, ?, ?)
               ON CONFLICT (user_id) DO UPDATE SET
                   payload    = excluded.payload,
                   updated_at = excluded.updated_at`)
	if _, err := r.db.ExecContext(ctx, query, userID, string(blob), r.now().UTC().Unix()); err != nil {
		return fmt.Errorf("error saving notification preferences: %w", err)
	}
	return nil
}

// internal/app/preference_service.go
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"reminder_service/internal/domain/notification"
)

// PreferenceService owns the canonical preference record of every user.
type PreferenceService interface {
	// Load returns the sanitized record. A missing or corrupt blob yields the
	// defaults; only a storage failure is an error.
	Load(ctx context.Context, userID string) (notification.Preferences, error)
	// Save sanitizes the submitted payload and overwrites the stored record.
	Save(ctx context.Context, userID string, payload []byte) (notification.Preferences, error)
}

type PreferenceServiceImpl struct {
	repo            notification.PreferenceRepository
	defaultTimezone string
	log             *logrus.Entry
}

func NewPreferenceServiceImpl(repo notification.PreferenceRepository, defaultTimezone string, log *logrus.Entry) *PreferenceServiceImpl {
	return &PreferenceServiceImpl{
		repo:            repo,
		defaultTimezone: defaultTimezone,
		log:             log.WithField("component", "preference_store"),
	}
}

func (s *PreferenceServiceImpl) Load(ctx context.Context, userID string) (notification.Preferences, error) {
	blob, err := s.repo.GetBlob(ctx, userID)
	if err != nil {
		if errors.Is(err, notification.ErrPreferencesNotFound) {
			s.log.WithField("user_id", userID).Debug("No stored preferences, using defaults")
			return notification.ParsePreferences(nil, s.defaultTimezone), nil
		}
		return notification.ParsePreferences(nil, s.defaultTimezone), fmt.Errorf("failed to load preferences: %w", err)
	}
	return notification.ParsePreferences(blob, s.defaultTimezone), nil
}

func (s *PreferenceServiceImpl) Save(ctx context.Context, userID string, payload []byte) (notification.Preferences, error) {
	var obj map[string]any
	if err := json.Unmarshal(payload, &obj); err != nil || obj == nil {
		return notification.Preferences{}, &notification.ValidationError{
			Field: "body", Message: "preferences must be a JSON object", Err: err,
		}
	}

	prefs := notification.ParsePreferences(payload, s.defaultTimezone)
	blob, err := json.Marshal(prefs)
	if err != nil {
		return notification.Preferences{}, fmt.Errorf("failed to encode preferences: %w", err)
	}
	if err := s.repo.PutBlob(ctx, userID, blob); err != nil {
		return notification.Preferences{}, fmt.Errorf("failed to save preferences: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"user_id":      userID,
		"enabled":      prefs.Enabled,
		"custom_rules": len(prefs.CustomRules),
	}).Info("Preferences saved")
	return prefs, nil
}

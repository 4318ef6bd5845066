// internal/app/notification_service.go
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"reminder_service/internal/domain/messaging"
	"reminder_service/internal/domain/notification"
	"reminder_service/internal/domain/phone"
	"reminder_service/internal/domain/productivity"
	"reminder_service/internal/domain/review"
	"reminder_service/internal/infra/metrics"
)

// reviewToken marks where the report goes in a weekly-review template.
const reviewToken = "{review}"

// NotifyPayload is the body of a dispatch request.
type NotifyPayload struct {
	Destination string `json:"destination"`
	Channel     string `json:"channel,omitempty"`
	Body        string `json:"body,omitempty"`
	TaskTitle   string `json:"taskTitle,omitempty"`
	StartTime   string `json:"startTime,omitempty"`
	Project     string `json:"project,omitempty"`
	Priority    string `json:"priority,omitempty"`
	GoalTitle   string `json:"goalTitle,omitempty"`
	EventTitle  string `json:"eventTitle,omitempty"`
}

// Placeholders returns the template values carried by the payload.
func (p NotifyPayload) Placeholders() map[string]string {
	values := map[string]string{
		"title":      p.TaskTitle,
		"taskTitle":  p.TaskTitle,
		"startTime":  p.StartTime,
		"start":      p.StartTime,
		"project":    p.Project,
		"priority":   p.Priority,
		"goal":       p.GoalTitle,
		"goalTitle":  p.GoalTitle,
		"eventTitle": p.EventTitle,
		"event":      p.EventTitle,
	}
	for k, v := range values {
		if v == "" {
			delete(values, k)
		}
	}
	return values
}

// NotificationService composes and sends one notification per call.
type NotificationService interface {
	// Dispatch sends a notification for trigger. userID is empty for secret-mode
	// callers, who only get the built-in templates.
	Dispatch(ctx context.Context, userID string, trigger notification.TriggerKind, payload NotifyPayload) (notification.DispatchResult, error)
	// RenderWeeklyReview builds the weekly review text of userID as of now,
	// passed through the user's weekly-review template.
	RenderWeeklyReview(ctx context.Context, userID string, prefs notification.Preferences, now time.Time) (string, error)
}

// NotificationServiceImpl implements the NotificationService interface.
type NotificationServiceImpl struct {
	gateway   messaging.Gateway
	prefs     PreferenceService
	snapshots productivity.SnapshotRepository
	clock     func() time.Time
	log       *logrus.Entry
}

func NewNotificationServiceImpl(
	gateway messaging.Gateway,
	prefs PreferenceService,
	snapshots productivity.SnapshotRepository,
	log *logrus.Entry,
) *NotificationServiceImpl {
	return &NotificationServiceImpl{
		gateway:   gateway,
		prefs:     prefs,
		snapshots: snapshots,
		clock:     time.Now,
		log:       log.WithField("component", "notification_service"),
	}
}

func (s *NotificationServiceImpl) Dispatch(ctx context.Context, userID string, trigger notification.TriggerKind, payload NotifyPayload) (notification.DispatchResult, error) {
	logEntry := s.log.WithFields(logrus.Fields{"trigger": trigger, "user_id": userID})

	// Validation never reaches the network.
	if strings.TrimSpace(payload.Destination) == "" {
		return notification.DispatchResult{}, &notification.ValidationError{Field: "destination", Message: "destination is required"}
	}
	if !phone.IsValidAddress(payload.Destination) {
		return notification.DispatchResult{}, &notification.ValidationError{
			Field: "destination", Message: "destination must be an E.164 phone number", Err: notification.ErrInvalidPhoneNumber,
		}
	}

	prefs := notification.DefaultPreferences()
	if userID != "" {
		loaded, err := s.prefs.Load(ctx, userID)
		if err != nil {
			logEntry.WithError(err).Warn("Could not load preferences, falling back to defaults")
		} else {
			prefs = loaded
		}
	}

	channel := prefs.Channel
	if payload.Channel != "" {
		ch, ok := notification.ParseChannel(strings.ToLower(payload.Channel))
		if !ok {
			return notification.DispatchResult{}, &notification.ValidationError{
				Field: "channel", Message: fmt.Sprintf("unsupported channel %q", payload.Channel),
			}
		}
		channel = ch
	} else if phone.HasChannelPrefix(payload.Destination) {
		channel = notification.ChannelWhatsApp
	}

	body := strings.TrimSpace(payload.Body)
	if body == "" {
		values := payload.Placeholders()
		if trigger == notification.TriggerWeeklyReview {
			if userID == "" {
				return notification.DispatchResult{}, &notification.ValidationError{
					Field: "body", Message: "body is required for weekly-review without a user token",
				}
			}
			text, err := s.RenderWeeklyReview(ctx, userID, prefs, s.clock())
			if err != nil {
				return notification.DispatchResult{}, err
			}
			body = text
		} else {
			body = review.Substitute(prefs.MessageTemplate(trigger), values)
		}
	}

	res, err := s.gateway.Send(ctx, notification.DispatchRequest{
		Channel:     channel,
		Destination: payload.Destination,
		Body:        body,
	})
	if err != nil {
		metrics.Dispatches.WithLabelValues(string(trigger), string(channel), "failed").Inc()
		logEntry.WithError(err).WithField("status", notification.HTTPStatus(err)).Error("Dispatch failed")
		return notification.DispatchResult{}, err
	}
	metrics.Dispatches.WithLabelValues(string(trigger), string(channel), "sent").Inc()
	logEntry.WithFields(logrus.Fields{
		"channel":    channel,
		"to":         phone.Mask(payload.Destination),
		"message_id": res.MessageID,
	}).Info("Notification dispatched")
	return res, nil
}

func (s *NotificationServiceImpl) RenderWeeklyReview(ctx context.Context, userID string, prefs notification.Preferences, now time.Time) (string, error) {
	snap, err := s.snapshots.LoadSnapshot(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load task snapshot: %w", err)
	}
	text := review.ComposeWeeklyReview(review.Input{
		Tasks:              snap.Tasks,
		Goals:              snap.Goals,
		Now:                now.In(prefs.Location()),
		WeekStartsOnMonday: prefs.WeekStartsOnMonday,
	})
	tmpl := prefs.Template(notification.TriggerWeeklyReview)
	if !strings.Contains(tmpl, reviewToken) {
		tmpl += "\n\n" + reviewToken
	}
	return review.CapLength(review.Substitute(tmpl, map[string]string{"review": text})), nil
}

// internal/infra/settingsync/syncer.go
package settingsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"reminder_service/internal/domain/notification"
	"reminder_service/internal/infra/metrics"
)

// DefaultDebounce is the quiet period before a changed record is pushed.
const DefaultDebounce = 800 * time.Millisecond

var ErrSyncerClosed = fmt.Errorf("settings syncer is closed")

// Syncer pushes the latest preference record to the preference endpoint once
// changes have settled. Only the newest pending payload is ever sent.
type Syncer struct {
	endpoint   string
	httpClient *http.Client
	delay      time.Duration
	timeout    time.Duration
	log        *logrus.Entry

	mu         sync.Mutex
	token      string
	timer      *time.Timer
	pending    []byte
	pendingSeq uint64
	seq        uint64
	closed     bool

	pushMu     sync.Mutex
	pushedSeq  uint64
	lastSynced []byte
}

func NewSyncer(baseURL string, delay, timeout time.Duration, log *logrus.Entry) *Syncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Syncer{
		endpoint:   strings.TrimRight(baseURL, "/") + "/api/notifications/preferences",
		httpClient: &http.Client{Timeout: timeout},
		delay:      delay,
		timeout:    timeout,
		log:        log.WithField("component", "settings_sync"),
	}
}

// SetToken sets the user token used for pushes.
func (s *Syncer) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Update schedules a push of prefs, replacing any payload still waiting.
func (s *Syncer) Update(prefs notification.Preferences) error {
	payload, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSyncerClosed
	}
	s.seq++
	s.pending = payload
	s.pendingSeq = s.seq
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.fire)
	return nil
}

// Flush pushes a waiting payload immediately.
func (s *Syncer) Flush(ctx context.Context) error {
	payload, token, seq := s.takePending()
	if payload == nil {
		return nil
	}
	return s.push(ctx, token, payload, seq)
}

// Close flushes and rejects further updates.
func (s *Syncer) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return err
}

// LastSynced returns the last payload the endpoint accepted.
func (s *Syncer) LastSynced() []byte {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()
	return s.lastSynced
}

func (s *Syncer) takePending() ([]byte, string, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	payload := s.pending
	s.pending = nil
	return payload, s.token, s.pendingSeq
}

func (s *Syncer) fire() {
	payload, token, seq := s.takePending()
	if payload == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.push(ctx, token, payload, seq); err != nil {
		s.log.WithError(err).Warn("Preference sync failed, will retry on next change")
	}
}

// push sends payload unless a newer one already went out. seq orders
// payloads that queued on pushMu out of order.
func (s *Syncer) push(ctx context.Context, token string, payload []byte, seq uint64) error {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	if seq <= s.pushedSeq {
		metrics.SettingsSyncPushes.WithLabelValues("superseded").Inc()
		s.log.WithField("seq", seq).Debug("Newer preferences already pushed, dropping stale payload")
		return nil
	}
	s.pushedSeq = seq

	if bytes.Equal(payload, s.lastSynced) {
		metrics.SettingsSyncPushes.WithLabelValues("unchanged").Inc()
		s.log.Debug("Preferences unchanged since last sync, skipping push")
		return nil
	}
	if token == "" {
		metrics.SettingsSyncPushes.WithLabelValues("no_token").Inc()
		return &notification.AuthError{Reason: "preference sync requires a user token"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		metrics.SettingsSyncPushes.WithLabelValues("failed").Inc()
		return &notification.TransientNetworkError{Op: "preference sync", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.SettingsSyncPushes.WithLabelValues("failed").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		msg := strings.TrimSpace(string(body))
		if resp.StatusCode == http.StatusUnauthorized {
			return &notification.AuthError{Reason: msg}
		}
		return &notification.GatewayError{Message: msg, HTTPStatus: resp.StatusCode}
	}

	s.lastSynced = payload
	metrics.SettingsSyncPushes.WithLabelValues("synced").Inc()
	s.log.WithField("bytes", len(payload)).Info("Preferences synced")
	return nil
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"reminder_service/internal/app"
	"reminder_service/internal/domain/notification"
)

// DispatchClient calls the dispatch endpoint on behalf of a user session.
type DispatchClient struct {
	baseURL    string
	httpClient *http.Client
	log        *logrus.Entry
}

func NewDispatchClient(baseURL string, timeout time.Duration, log *logrus.Entry) *DispatchClient {
	return &DispatchClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log.WithField("component", "dispatch_client"),
	}
}

type dispatchReply struct {
	OK        bool   `json:"ok"`
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
}

// Dispatch posts payload to /api/notify/{trigger} with the session token.
func (c *DispatchClient) Dispatch(ctx context.Context, token string, trigger notification.TriggerKind, payload app.NotifyPayload) (notification.DispatchResult, error) {
	if token == "" {
		return notification.DispatchResult{}, &notification.AuthError{Reason: "session has no bearer token"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return notification.DispatchResult{}, fmt.Errorf("failed to encode dispatch payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/notify/"+string(trigger), bytes.NewReader(body))
	if err != nil {
		return notification.DispatchResult{}, fmt.Errorf("failed to build dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return notification.DispatchResult{}, &notification.TransientNetworkError{Op: "dispatch request", Err: err}
	}
	defer resp.Body.Close()

	var reply dispatchReply
	decodeErr := json.NewDecoder(resp.Body).Decode(&reply)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if decodeErr != nil {
			return notification.DispatchResult{}, fmt.Errorf("failed to decode dispatch response: %w", decodeErr)
		}
		return notification.DispatchResult{MessageID: reply.MessageID}, nil
	}

	msg := reply.Error
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	c.log.WithFields(logrus.Fields{"trigger": trigger, "status": resp.StatusCode}).Warn("Dispatch endpoint rejected request")
	switch resp.StatusCode {
	case http.StatusBadRequest:
		return notification.DispatchResult{}, &notification.ValidationError{Message: msg}
	case http.StatusUnauthorized:
		return notification.DispatchResult{}, &notification.AuthError{Reason: msg}
	default:
		return notification.DispatchResult{}, &notification.GatewayError{Message: msg, HTTPStatus: resp.StatusCode}
	}
}

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"reminder_service/internal/domain/notification"
)

// IntrospectionVerifier checks tokens against an OAuth 2.0 token
// introspection endpoint (RFC 7662).
type IntrospectionVerifier struct {
	endpoint     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

func NewIntrospectionVerifier(endpoint, clientID, clientSecret string, timeout time.Duration) *IntrospectionVerifier {
	return &IntrospectionVerifier{
		endpoint:     endpoint,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

type introspectionResponse struct {
	Active bool   `json:"active"`
	Sub    string `json:"sub"`
	UserID string `json:"user_id"`
}

func (v *IntrospectionVerifier) Verify(ctx context.Context, token string) (string, error) {
	form := url.Values{}
	form.Set("token", token)
	form.Set("token_type_hint", "access_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", notification.ErrVerificationUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if v.clientID != "" {
		req.SetBasicAuth(v.clientID, v.clientSecret)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return "", &notification.TransientNetworkError{
			Op:  "token introspection",
			Err: fmt.Errorf("%w: %v", notification.ErrVerificationUnavailable, err),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", notification.ErrVerificationUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// the provider refused our client credentials, not the user's token
		return "", fmt.Errorf("%w: introspection rejected client (status %d)", notification.ErrVerificationUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", fmt.Errorf("%w: introspection status %d", notification.ErrVerificationUnavailable, resp.StatusCode)
	}

	var out introspectionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("%w: malformed introspection response: %v", notification.ErrVerificationUnavailable, err)
	}
	if !out.Active {
		return "", notification.ErrInvalidToken
	}
	if out.Sub != "" {
		return out.Sub, nil
	}
	if out.UserID != "" {
		return out.UserID, nil
	}
	return "", notification.ErrInvalidToken
}

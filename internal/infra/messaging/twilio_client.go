// internal/infra/messaging/twilio_client.go
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"reminder_service/internal/domain/notification"
	"reminder_service/internal/domain/phone"
	"reminder_service/internal/infra/metrics"
)

// DefaultAPIBaseURL is the public endpoint of the transactional messaging API.
const DefaultAPIBaseURL = "https://api.twilio.com"

const maxResponseBody = 64 << 10

// TwilioClient sends SMS and WhatsApp messages through the Twilio Messages API.
type TwilioClient struct {
	baseURL    string
	creds      *CredentialResolver
	httpClient *http.Client
	log        *logrus.Entry
}

// NewTwilioClient creates a client. A zero timeout leaves the transport default.
func NewTwilioClient(baseURL string, creds *CredentialResolver, timeout time.Duration, log *logrus.Entry) *TwilioClient {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	return &TwilioClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		creds:      creds,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.WithField("component", "messaging_gateway"),
	}
}

type twilioMessage struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type twilioError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Status   int    `json:"status"`
	MoreInfo string `json:"more_info"`
}

// Send validates the request, resolves sender and credentials, and issues exactly
// one API call.
func (c *TwilioClient) Send(ctx context.Context, req notification.DispatchRequest) (notification.DispatchResult, error) {
	if _, ok := notification.ParseChannel(string(req.Channel)); !ok {
		return notification.DispatchResult{}, &notification.ValidationError{
			Field: "channel", Message: fmt.Sprintf("unsupported channel %q", req.Channel),
		}
	}
	to, err := phone.ToChannelAddress(req.Destination, string(req.Channel))
	if err != nil {
		return notification.DispatchResult{}, &notification.ValidationError{
			Field: "destination", Message: "destination must be an E.164 phone number", Err: err,
		}
	}
	if strings.TrimSpace(req.Body) == "" {
		return notification.DispatchResult{}, &notification.ValidationError{Field: "body", Message: "message body is empty"}
	}

	from, err := c.creds.ResolveSenderAddress(req.Channel)
	if err != nil {
		return notification.DispatchResult{}, err
	}
	apiCreds, err := c.creds.ResolveAPICredentials()
	if err != nil {
		return notification.DispatchResult{}, err
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Body", req.Body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, url.PathEscape(apiCreds.AccountID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return notification.DispatchResult{}, fmt.Errorf("failed to build gateway request: %w", err)
	}
	httpReq.SetBasicAuth(apiCreds.AccountID, apiCreds.AuthToken)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	logEntry := c.log.WithFields(logrus.Fields{
		"channel": req.Channel,
		"to":      phone.Mask(to),
	})

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.GatewayLatency.WithLabelValues(string(req.Channel), "network_error").Observe(time.Since(started).Seconds())
		logEntry.WithError(err).Warn("Messaging gateway did not respond")
		return notification.DispatchResult{}, &notification.TransientNetworkError{
			Op:  "send message",
			Err: fmt.Errorf("%w: %v", notification.ErrDeliveryFailed, err),
		}
	}
	defer resp.Body.Close()
	metrics.GatewayLatency.WithLabelValues(string(req.Channel), strconv.Itoa(resp.StatusCode)).Observe(time.Since(started).Seconds())

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	accepted := resp.StatusCode >= 200 && resp.StatusCode <= 299
	if err != nil && !accepted {
		return notification.DispatchResult{}, &notification.TransientNetworkError{
			Op:  "read gateway response",
			Err: fmt.Errorf("%w: %v", notification.ErrDeliveryFailed, err),
		}
	}

	if !accepted {
		gwErr := &notification.GatewayError{
			Message:    http.StatusText(resp.StatusCode),
			HTTPStatus: resp.StatusCode,
		}
		var apiErr twilioError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			gwErr.Message = apiErr.Message
			gwErr.Code = apiErr.Code
		}
		logEntry.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"code":   gwErr.Code,
		}).Warnf("Messaging gateway rejected message: %s", gwErr.Message)
		return notification.DispatchResult{}, gwErr
	}

	// Any 2xx means the message was queued upstream, readable body or not.
	var msg twilioMessage
	if err != nil || json.Unmarshal(raw, &msg) != nil {
		logEntry.WithField("status", resp.StatusCode).Warn("Message accepted but gateway response was unreadable")
		return notification.DispatchResult{}, nil
	}
	logEntry.WithField("message_id", msg.SID).Info("Message accepted by gateway")
	return notification.DispatchResult{MessageID: msg.SID}, nil
}

// internal/infra/messaging/credentials.go
package messaging

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"reminder_service/internal/domain/notification"
	"reminder_service/internal/domain/phone"
)

// Environment keys read by the resolver.
const (
	EnvAccountSID   = "TWILIO_ACCOUNT_SID"
	EnvAuthToken    = "TWILIO_AUTH_TOKEN"
	EnvSMSFrom      = "TWILIO_SMS_FROM"
	EnvWhatsAppFrom = "TWILIO_WHATSAPP_FROM"
)

// APICredentials authenticate against the messaging API.
type APICredentials struct {
	AccountID string
	AuthToken string
}

// CredentialResolver reads gateway credentials and sender addresses from process
// configuration once and caches them. It never touches the network.
type CredentialResolver struct {
	lookup func(string) string

	once         sync.Once
	accountID    string
	authToken    string
	smsFrom      string
	whatsAppFrom string
}

// NewCredentialResolver uses lookup to read configuration; nil means os.Getenv.
func NewCredentialResolver(lookup func(string) string) *CredentialResolver {
	if lookup == nil {
		lookup = os.Getenv
	}
	return &CredentialResolver{lookup: lookup}
}

func (r *CredentialResolver) load() {
	r.once.Do(func() {
		r.accountID = strings.TrimSpace(r.lookup(EnvAccountSID))
		r.authToken = strings.TrimSpace(r.lookup(EnvAuthToken))
		r.smsFrom = strings.TrimSpace(r.lookup(EnvSMSFrom))
		r.whatsAppFrom = strings.TrimSpace(r.lookup(EnvWhatsAppFrom))
	})
}

func notConfigured(what string) error {
	return &notification.ConfigurationError{
		Message: fmt.Sprintf("%s: %s", notification.ErrMessagingNotConfigured.Error(), what),
		Err:     notification.ErrMessagingNotConfigured,
	}
}

func invalidConfig(what string) error {
	return &notification.ConfigurationError{
		Message: fmt.Sprintf("%s: %s", notification.ErrInvalidConfiguration.Error(), what),
		Err:     notification.ErrInvalidConfiguration,
	}
}

// ResolveAPICredentials fails when either the account id or the token is missing.
func (r *CredentialResolver) ResolveAPICredentials() (APICredentials, error) {
	r.load()
	if r.accountID == "" || r.authToken == "" {
		return APICredentials{}, notConfigured(EnvAccountSID + "/" + EnvAuthToken + " missing")
	}
	return APICredentials{AccountID: r.accountID, AuthToken: r.authToken}, nil
}

// ResolveSenderAddress returns the From address for channel.
// SMS requires a bare sender number. WhatsApp prefers its own sender and falls
// back to the SMS sender in WhatsApp address form.
func (r *CredentialResolver) ResolveSenderAddress(channel notification.Channel) (string, error) {
	r.load()
	switch channel {
	case notification.ChannelSMS:
		if r.smsFrom == "" {
			return "", notConfigured(EnvSMSFrom + " missing")
		}
		if phone.HasChannelPrefix(r.smsFrom) {
			return "", invalidConfig(EnvSMSFrom + " must not carry a channel prefix")
		}
		return r.smsFrom, nil
	case notification.ChannelWhatsApp:
		if r.whatsAppFrom != "" {
			if phone.HasChannelPrefix(r.whatsAppFrom) {
				return r.whatsAppFrom, nil
			}
			return phone.WhatsAppScheme + r.whatsAppFrom, nil
		}
		if r.smsFrom == "" {
			return "", notConfigured(EnvWhatsAppFrom + " and " + EnvSMSFrom + " missing")
		}
		addr, err := phone.ToChannelAddress(r.smsFrom, string(notification.ChannelWhatsApp))
		if err != nil {
			return "", invalidConfig(EnvSMSFrom + " is not a valid E.164 number")
		}
		return addr, nil
	default:
		return "", &notification.ValidationError{Field: "channel", Message: fmt.Sprintf("unsupported channel %q", channel)}
	}
}

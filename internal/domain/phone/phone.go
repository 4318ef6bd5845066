// Package phone validates and formats E.164 destination addresses.
package phone

import (
	"fmt"
	"regexp"
	"strings"
)

// WhatsAppScheme is the address prefix the messaging API expects for WhatsApp.
const WhatsAppScheme = "whatsapp:"

// ErrInvalidPhoneNumber is returned when a value is not E.164 after prefix stripping.
var ErrInvalidPhoneNumber = fmt.Errorf("invalid phone number")

var e164 = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)

// StripChannelPrefix removes a leading channel scheme such as "whatsapp:".
func StripChannelPrefix(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) >= len(WhatsAppScheme) && strings.EqualFold(s[:len(WhatsAppScheme)], WhatsAppScheme) {
		s = strings.TrimSpace(s[len(WhatsAppScheme):])
	}
	return s
}

// HasChannelPrefix reports whether raw carries a channel scheme.
func HasChannelPrefix(raw string) bool {
	return StripChannelPrefix(raw) != strings.TrimSpace(raw)
}

// IsValidAddress reports whether raw is an E.164 number, optionally channel-prefixed.
func IsValidAddress(raw string) bool {
	return e164.MatchString(StripChannelPrefix(raw))
}

// Normalize returns the bare E.164 form of raw.
func Normalize(raw string) (string, error) {
	s := StripChannelPrefix(raw)
	if !e164.MatchString(s) {
		return "", ErrInvalidPhoneNumber
	}
	return s, nil
}

// ToChannelAddress formats a number for the given channel ("sms" or "whatsapp").
// WhatsApp numbers get the scheme prefix, SMS numbers are returned bare.
func ToChannelAddress(raw, channel string) (string, error) {
	n, err := Normalize(raw)
	if err != nil {
		return "", err
	}
	if channel == "whatsapp" {
		return WhatsAppScheme + n, nil
	}
	return n, nil
}

// Mask hides all but the last four digits, for logs.
func Mask(raw string) string {
	s := StripChannelPrefix(raw)
	if len(s) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

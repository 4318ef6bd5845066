// Package auth authenticates dispatch-triggering requests either by a shared
// secret or by a verified user bearer token.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"reminder_service/internal/domain/notification"
	"reminder_service/internal/infra/metrics"
)

// SecretHeader carries the shared secret of unattended callers.
const SecretHeader = "x-reminder-secret"

// Mode says how a request was authorized.
type Mode string

const (
	ModeSecret Mode = "secret"
	ModeUser   Mode = "user"
)

// Result is either Authorized or Denied.
type Result interface {
	isResult()
}

// Authorized is a successful check. UserID is empty in secret mode.
type Authorized struct {
	Mode   Mode
	UserID string
}

// Denied is a failed check with the status the caller should answer.
type Denied struct {
	Status int
	Reason string
}

func (Authorized) isResult() {}
func (Denied) isResult()     {}

// TokenVerifier resolves a bearer token to a user id. It returns an error
// wrapping notification.ErrInvalidToken when the identity provider rejects the
// token; any other error means verification itself failed.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// Gate is the dual-mode authenticator.
type Gate struct {
	secret   string
	verifier TokenVerifier
	log      *logrus.Entry
}

// NewGate creates a gate. An empty secret disables secret mode; a nil verifier
// makes every token check fail with 500.
func NewGate(secret string, verifier TokenVerifier, log *logrus.Entry) *Gate {
	return &Gate{secret: secret, verifier: verifier, log: log.WithField("component", "auth_gate")}
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func (g *Gate) secretMatches(candidate string) bool {
	if g.secret == "" || candidate == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(g.secret)) == 1
}

// RequireUserOrSecret accepts a shared-secret match (custom header first, then
// the bearer value) or a bearer token the verifier accepts. The secret check
// runs first and never touches the network.
func (g *Gate) RequireUserOrSecret(r *http.Request) Result {
	res := g.requireUserOrSecret(r)
	record(res)
	return res
}

func (g *Gate) requireUserOrSecret(r *http.Request) Result {
	bearer := BearerToken(r)
	if g.secretMatches(r.Header.Get(SecretHeader)) || g.secretMatches(bearer) {
		return Authorized{Mode: ModeSecret}
	}
	if bearer == "" {
		return Denied{Status: http.StatusUnauthorized, Reason: "missing bearer token"}
	}
	if g.verifier == nil {
		g.log.Error("Token verification requested but no verifier is configured")
		return Denied{Status: http.StatusInternalServerError, Reason: "token verification unavailable"}
	}

	userID, err := g.verifier.Verify(r.Context(), bearer)
	if err != nil {
		if errors.Is(err, notification.ErrInvalidToken) {
			return Denied{Status: http.StatusUnauthorized, Reason: "invalid token"}
		}
		g.log.WithError(err).Warn("Token verification failed")
		return Denied{Status: http.StatusInternalServerError, Reason: "token verification failed"}
	}
	if userID == "" {
		return Denied{Status: http.StatusUnauthorized, Reason: "token has no subject"}
	}
	return Authorized{Mode: ModeUser, UserID: userID}
}

// RequireUser is RequireUserOrSecret minus secret mode.
func (g *Gate) RequireUser(r *http.Request) Result {
	res := g.requireUserOrSecret(r)
	if a, ok := res.(Authorized); ok && (a.Mode != ModeUser || a.UserID == "") {
		res = Denied{Status: http.StatusUnauthorized, Reason: "user token required"}
	}
	record(res)
	return res
}

func record(res Result) {
	switch v := res.(type) {
	case Authorized:
		metrics.AuthDecisions.WithLabelValues(string(v.Mode), "authorized").Inc()
	case Denied:
		metrics.AuthDecisions.WithLabelValues("none", http.StatusText(v.Status)).Inc()
	}
}

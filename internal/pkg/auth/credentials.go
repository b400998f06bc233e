package auth

import (
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// CredentialProvider exposes the session bearer credential. The state manager
// and the remote clients only read it; absence means the client operates in
// unauthenticated, partially degraded mode.
type CredentialProvider interface {
	// Token returns the bearer credential and whether one is present.
	Token() (string, bool)
}

// StaticProvider serves a fixed token, mainly for tests and one-shot runs.
type StaticProvider struct {
	Value string
}

func (p StaticProvider) Token() (string, bool) {
	return p.Value, p.Value != ""
}

// EnvProvider reads the credential from an environment variable on every
// lookup, so an externally refreshed token is picked up without a restart.
type EnvProvider struct {
	Key string
}

func (p EnvProvider) Token() (string, bool) {
	v := strings.TrimSpace(os.Getenv(p.Key))
	return v, v != ""
}

// FileProvider reads the credential from a file, the usual handoff point for
// an external identity provider writing freshly issued tokens.
type FileProvider struct {
	Path string
}

func (p FileProvider) Token() (string, bool) {
	b, err := os.ReadFile(p.Path)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(string(b))
	return v, v != ""
}

// ScreenedProvider wraps another provider and withholds JWT-shaped tokens
// whose exp claim has already passed, so remote calls degrade to anonymous
// mode instead of burning a round trip on a guaranteed 401. Opaque tokens
// pass through untouched; signature verification belongs to the server.
type ScreenedProvider struct {
	Inner  CredentialProvider
	Logger *zap.Logger

	now func() time.Time
}

func NewScreenedProvider(inner CredentialProvider, logger *zap.Logger) *ScreenedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScreenedProvider{Inner: inner, Logger: logger, now: time.Now}
}

func (p *ScreenedProvider) Token() (string, bool) {
	token, ok := p.Inner.Token()
	if !ok {
		return "", false
	}
	if expired, exp := p.expired(token); expired {
		p.Logger.Warn("Session credential expired, operating unauthenticated",
			zap.Time("expired_at", exp))
		return "", false
	}
	return token, true
}

func (p *ScreenedProvider) expired(token string) (bool, time.Time) {
	if strings.Count(token, ".") != 2 {
		return false, time.Time{}
	}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return false, time.Time{}
	}
	if claims.ExpiresAt == nil {
		return false, time.Time{}
	}
	exp := claims.ExpiresAt.Time
	return exp.Before(p.now()), exp
}

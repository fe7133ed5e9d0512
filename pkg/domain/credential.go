package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

type CredentialKind string

const (
	CredentialKindStaticToken   CredentialKind = "static_token"
	CredentialKindBearerToken   CredentialKind = "bearer_token"
	CredentialKindSessionCookie CredentialKind = "session_cookie"
	CredentialKindAPIKey        CredentialKind = "api_key"
)

// AuthVariant names the session strategy an adapter authenticates with. It is
// declared in the adapter's schema, not inferred from the config shape, since
// several upstreams take username/password but exchange it differently.
type AuthVariant string

const (
	AuthVariantStatic         AuthVariant = "static_token"
	AuthVariantBearerExchange AuthVariant = "bearer_exchange"
	AuthVariantSessionCookie  AuthVariant = "session_cookie"
	AuthVariantKeygenExchange AuthVariant = "keygen_exchange"
)

// CachedCredential is authentication material obtained for one integration
// identity. A zero ExpiresAt means the material never expires. Credentials
// are process-local only; nothing persists them.
type CachedCredential struct {
	Material   string
	Kind       CredentialKind
	ObtainedAt time.Time
	ExpiresAt  time.Time

	// Extra carries secondary material tied to the same session, such as a
	// CSRF prevention token issued alongside a session cookie.
	Extra map[string]string
}

// ValidAt reports whether the credential may still be handed to a caller at
// the given instant. The safety buffer keeps a credential from being used
// right up against its server-side expiry.
func (c CachedCredential) ValidAt(now time.Time, safetyBuffer time.Duration) bool {
	if c.Material == "" {
		return false
	}

	if c.ExpiresAt.IsZero() {
		return true
	}

	return now.Before(c.ExpiresAt.Add(-safetyBuffer))
}

// IntegrationConfig holds the connection parameters of one configured
// integration instance. Exactly one of the auth shapes is populated: APIKey,
// Username+Password, or ClientID+ClientSecret+RefreshToken.
type IntegrationConfig struct {
	ID   string
	Type IntegrationType

	Host      string
	Port      int
	TLS       bool
	VerifyTLS bool

	APIKey       string
	Username     string
	Password     string
	ClientID     string
	ClientSecret string
	RefreshToken string

	AuthVariant AuthVariant

	// Extra carries adapter-specific settings, e.g. the Proxmox node name.
	Extra map[string]string
}

func (c IntegrationConfig) BaseURL() string {
	scheme := "http"
	if c.TLS {
		scheme = "https"
	}

	host := strings.TrimSuffix(c.Host, "/")

	if c.Port > 0 {
		return fmt.Sprintf("%s://%s:%d", scheme, host, c.Port)
	}

	return fmt.Sprintf("%s://%s", scheme, host)
}

// Identity derives the opaque cache key for this instance from its host and
// auth fingerprint. Two instances of the same adapter type pointed at the
// same host with different credentials get distinct identities.
func (c IntegrationConfig) Identity() string {
	h := sha256.New()

	fmt.Fprintf(h, "%s|%s|%d|%s|%s|%s", c.Host, c.Username, c.Port, c.APIKey, c.ClientID, c.RefreshToken)

	return fmt.Sprintf("%s:%s", c.Type, hex.EncodeToString(h.Sum(nil))[:16])
}

type AuthenticateFunc func(ctx context.Context) (CachedCredential, error)

// CredentialCache is the process-wide, expiry-aware credential store. Get is
// a non-blocking lookup; Ensure de-duplicates concurrent refreshes per
// identity, so N concurrent callers trigger exactly one authentication.
type CredentialCache interface {
	Get(identity string) (CachedCredential, bool)
	Ensure(ctx context.Context, identity string, authenticate AuthenticateFunc) (CachedCredential, error)
	Invalidate(identity string)
}

// SessionAuthenticator resolves a valid credential for a config through the
// cache, authenticating with the adapter's strategy on miss or expiry.
type SessionAuthenticator interface {
	EnsureCredential(ctx context.Context, config IntegrationConfig) (CachedCredential, error)
	InvalidateCredential(config IntegrationConfig)
}

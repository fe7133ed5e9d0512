package managers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pulseboard/pulseboard/pkg/domain"

	"github.com/rs/zerolog/log"
)

const (
	defaultBearerTTL  = 1 * time.Hour
	defaultSessionTTL = 30 * time.Minute
	defaultKeygenTTL  = 24 * time.Hour
)

// AuthStrategy performs one authentication exchange against an upstream and
// returns the credential to cache. Strategies never touch the cache; the
// SessionAuthenticator resolves them through it.
type AuthStrategy interface {
	Authenticate(ctx context.Context, config domain.IntegrationConfig) (domain.CachedCredential, error)
}

type SessionAuthenticatorDependencies struct {
	Cache    domain.CredentialCache
	Strategy AuthStrategy
}

type sessionAuthenticator struct {
	cache    domain.CredentialCache
	strategy AuthStrategy
}

func NewSessionAuthenticator(deps SessionAuthenticatorDependencies) domain.SessionAuthenticator {
	return &sessionAuthenticator{
		cache:    deps.Cache,
		strategy: deps.Strategy,
	}
}

func (a *sessionAuthenticator) EnsureCredential(ctx context.Context, config domain.IntegrationConfig) (domain.CachedCredential, error) {
	return a.cache.Ensure(ctx, config.Identity(), func(ctx context.Context) (domain.CachedCredential, error) {
		return a.strategy.Authenticate(ctx, config)
	})
}

func (a *sessionAuthenticator) InvalidateCredential(config domain.IntegrationConfig) {
	a.cache.Invalidate(config.Identity())
}

// StaticTokenStrategy serves a credential already present in the config.
// The material never expires; there is nothing to exchange.
type StaticTokenStrategy struct {
	Kind domain.CredentialKind
}

func (s StaticTokenStrategy) Authenticate(ctx context.Context, config domain.IntegrationConfig) (domain.CachedCredential, error) {
	if config.APIKey == "" {
		return domain.CachedCredential{}, &domain.ConfigurationError{Field: "api_key"}
	}

	kind := s.Kind
	if kind == "" {
		kind = domain.CredentialKindStaticToken
	}

	return domain.CachedCredential{
		Material:   config.APIKey,
		Kind:       kind,
		ObtainedAt: time.Now(),
	}, nil
}

// BearerExchangeStrategy trades credentials for a bearer token at a token
// endpoint. A server-declared expiry always wins; FallbackTTL covers
// upstreams that declare none.
type BearerExchangeStrategy struct {
	HTTPClientProvider domain.HTTPClientProvider

	TokenURL     func(config domain.IntegrationConfig) string
	BuildRequest func(config domain.IntegrationConfig) (contentType string, body []byte, err error)
	ExtractToken func(body []byte) (token string, expiresIn time.Duration, err error)

	FallbackTTL time.Duration
}

func (s BearerExchangeStrategy) Authenticate(ctx context.Context, config domain.IntegrationConfig) (domain.CachedCredential, error) {
	contentType, reqBody, err := s.BuildRequest(config)
	if err != nil {
		return domain.CachedCredential{}, err
	}

	status, body, err := postForAuth(ctx, s.HTTPClientProvider.GetHTTPClient(config), s.TokenURL(config), contentType, reqBody)
	if err != nil {
		return domain.CachedCredential{}, err
	}

	if status < 200 || status >= 300 {
		return domain.CachedCredential{}, &domain.AuthenticationError{
			Reason: domain.AuthReasonForStatus(status),
			Err:    &domain.UpstreamError{StatusCode: status, Body: string(body)},
		}
	}

	token, expiresIn, err := s.ExtractToken(body)
	if err != nil || token == "" {
		if err == nil {
			err = fmt.Errorf("token endpoint response is missing the token field")
		}

		return domain.CachedCredential{}, &domain.AuthenticationError{Reason: domain.AuthFailureInvalidCredentials, Err: err}
	}

	now := time.Now()

	ttl := expiresIn
	if ttl <= 0 {
		ttl = s.FallbackTTL
	}
	if ttl <= 0 {
		ttl = defaultBearerTTL
	}

	log.Debug().Str("integration", string(config.Type)).Dur("ttl", ttl).Msg("exchanged credentials for bearer token")

	return domain.CachedCredential{
		Material:   token,
		Kind:       domain.CredentialKindBearerToken,
		ObtainedAt: now,
		ExpiresAt:  now.Add(ttl),
	}, nil
}

// SessionCookieStrategy performs a form login and captures the session
// cookie. Upstreams using this flow declare no expiry, so the cached entry
// lives for a fixed heuristic TTL chosen per adapter.
type SessionCookieStrategy struct {
	HTTPClientProvider domain.HTTPClientProvider

	LoginURL   func(config domain.IntegrationConfig) string
	BuildForm  func(config domain.IntegrationConfig) url.Values
	CookieName string

	// ExtractSession overrides the Set-Cookie lookup for upstreams that
	// return the session material in the response body instead.
	ExtractSession func(resp *http.Response, body []byte) (cookie string, extra map[string]string, err error)

	TTL time.Duration
}

func (s SessionCookieStrategy) Authenticate(ctx context.Context, config domain.IntegrationConfig) (domain.CachedCredential, error) {
	form := s.BuildForm(config)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.LoginURL(config), strings.NewReader(form.Encode()))
	if err != nil {
		return domain.CachedCredential{}, err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.HTTPClientProvider.GetHTTPClient(config).Do(req)
	if err != nil {
		return domain.CachedCredential{}, domain.WrapTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.CachedCredential{}, domain.WrapTransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.CachedCredential{}, &domain.AuthenticationError{
			Reason: domain.AuthReasonForStatus(resp.StatusCode),
			Err:    &domain.UpstreamError{StatusCode: resp.StatusCode, Body: string(body)},
		}
	}

	var cookie string
	var extra map[string]string

	if s.ExtractSession != nil {
		cookie, extra, err = s.ExtractSession(resp, body)
		if err != nil {
			return domain.CachedCredential{}, &domain.AuthenticationError{Reason: domain.AuthFailureInvalidCredentials, Err: err}
		}
	} else {
		for _, c := range resp.Cookies() {
			if c.Name == s.CookieName {
				cookie = fmt.Sprintf("%s=%s", c.Name, c.Value)
				break
			}
		}
	}

	if cookie == "" {
		return domain.CachedCredential{}, &domain.AuthenticationError{
			Reason: domain.AuthFailureInvalidCredentials,
			Err:    fmt.Errorf("login response did not set session cookie %q", s.CookieName),
		}
	}

	ttl := s.TTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}

	now := time.Now()

	log.Debug().Str("integration", string(config.Type)).Dur("ttl", ttl).Msg("obtained session cookie")

	return domain.CachedCredential{
		Material:   cookie,
		Kind:       domain.CredentialKindSessionCookie,
		ObtainedAt: now,
		ExpiresAt:  now.Add(ttl),
		Extra:      extra,
	}, nil
}

// KeygenExchangeStrategy sends credentials to a keygen endpoint and caches
// the returned key for a long fixed TTL.
type KeygenExchangeStrategy struct {
	HTTPClientProvider domain.HTTPClientProvider

	KeygenURL  func(config domain.IntegrationConfig) string
	BuildBody  func(config domain.IntegrationConfig) (any, error)
	ExtractKey func(body []byte) (string, error)

	TTL time.Duration
}

func (s KeygenExchangeStrategy) Authenticate(ctx context.Context, config domain.IntegrationConfig) (domain.CachedCredential, error) {
	payload, err := s.BuildBody(config)
	if err != nil {
		return domain.CachedCredential{}, err
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return domain.CachedCredential{}, err
	}

	status, body, err := postForAuth(ctx, s.HTTPClientProvider.GetHTTPClient(config), s.KeygenURL(config), "application/json", reqBody)
	if err != nil {
		return domain.CachedCredential{}, err
	}

	if status < 200 || status >= 300 {
		return domain.CachedCredential{}, &domain.AuthenticationError{
			Reason: domain.AuthReasonForStatus(status),
			Err:    &domain.UpstreamError{StatusCode: status, Body: string(body)},
		}
	}

	key, err := s.ExtractKey(body)
	if err != nil || key == "" {
		if err == nil {
			err = fmt.Errorf("keygen response is missing the key")
		}

		return domain.CachedCredential{}, &domain.AuthenticationError{Reason: domain.AuthFailureInvalidCredentials, Err: err}
	}

	ttl := s.TTL
	if ttl <= 0 {
		ttl = defaultKeygenTTL
	}

	now := time.Now()

	log.Debug().Str("integration", string(config.Type)).Dur("ttl", ttl).Msg("exchanged credentials for key")

	return domain.CachedCredential{
		Material:   key,
		Kind:       domain.CredentialKindAPIKey,
		ObtainedAt: now,
		ExpiresAt:  now.Add(ttl),
	}, nil
}

func postForAuth(ctx context.Context, client *http.Client, targetURL, contentType string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, domain.WrapTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, domain.WrapTransportError(err)
	}

	return resp.StatusCode, respBody, nil
}

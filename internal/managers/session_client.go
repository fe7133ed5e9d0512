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

	"github.com/pulseboard/pulseboard/pkg/domain"

	"github.com/rs/zerolog/log"
)

// ApplyCredentialFunc injects cached credential material into an outgoing
// request. Injection differs per upstream (API key header, bearer header,
// session cookie, query token), so each adapter picks or supplies one.
type ApplyCredentialFunc func(req *http.Request, credential domain.CachedCredential, config domain.IntegrationConfig)

func ApplyBearer(req *http.Request, credential domain.CachedCredential, _ domain.IntegrationConfig) {
	req.Header.Set("Authorization", "Bearer "+credential.Material)
}

func ApplyHeaderKey(header string) ApplyCredentialFunc {
	return func(req *http.Request, credential domain.CachedCredential, _ domain.IntegrationConfig) {
		req.Header.Set(header, credential.Material)
	}
}

// ApplyBasicPair splits "key:secret" material into HTTP basic auth.
func ApplyBasicPair(req *http.Request, credential domain.CachedCredential, _ domain.IntegrationConfig) {
	key, secret, _ := strings.Cut(credential.Material, ":")
	req.SetBasicAuth(key, secret)
}

// ApplyCookie sends the session cookie and mirrors any extra material
// (e.g. a CSRF prevention token) as headers.
func ApplyCookie(req *http.Request, credential domain.CachedCredential, _ domain.IntegrationConfig) {
	req.Header.Set("Cookie", credential.Material)

	for header, value := range credential.Extra {
		req.Header.Set(header, value)
	}
}

// ApplyQueryToken puts the credential material into a URL query parameter.
func ApplyQueryToken(param string) ApplyCredentialFunc {
	return func(req *http.Request, credential domain.CachedCredential, _ domain.IntegrationConfig) {
		q := req.URL.Query()
		q.Set(param, credential.Material)
		req.URL.RawQuery = q.Encode()
	}
}

type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header

	// Body is JSON-marshaled when set. Form takes precedence and is sent
	// form-encoded.
	Body any
	Form url.Values
}

type SessionClientDependencies struct {
	Authenticator      domain.SessionAuthenticator
	HTTPClientProvider domain.HTTPClientProvider
	ApplyCredential    ApplyCredentialFunc
}

// SessionClient runs authenticated upstream calls. Per request it resolves a
// credential through the cache, and on an observed 401/403 it invalidates
// the cached entry and makes exactly one re-authentication and retry before
// surfacing an AuthenticationError. Bounding the retry prevents loops
// against permanently invalid credentials.
type SessionClient struct {
	authenticator      domain.SessionAuthenticator
	httpClientProvider domain.HTTPClientProvider
	applyCredential    ApplyCredentialFunc
}

func NewSessionClient(deps SessionClientDependencies) *SessionClient {
	return &SessionClient{
		authenticator:      deps.Authenticator,
		httpClientProvider: deps.HTTPClientProvider,
		applyCredential:    deps.ApplyCredential,
	}
}

// DoJSON executes the request and decodes a 2xx JSON response into out.
// A nil out discards the body.
func (c *SessionClient) DoJSON(ctx context.Context, config domain.IntegrationConfig, r Request, out any) error {
	credential, err := c.authenticator.EnsureCredential(ctx, config)
	if err != nil {
		return err
	}

	status, body, err := c.do(ctx, config, r, credential)
	if err != nil {
		return err
	}

	if domain.IsAuthStatus(status) {
		log.Debug().
			Str("integration", string(config.Type)).
			Int("status", status).
			Msg("credential rejected upstream, re-authenticating once")

		c.authenticator.InvalidateCredential(config)

		credential, err = c.authenticator.EnsureCredential(ctx, config)
		if err != nil {
			return err
		}

		status, body, err = c.do(ctx, config, r, credential)
		if err != nil {
			return err
		}

		if domain.IsAuthStatus(status) {
			return &domain.AuthenticationError{
				Reason: domain.AuthReasonForStatus(status),
				Err:    &domain.UpstreamError{StatusCode: status, Body: string(body)},
			}
		}
	}

	if status < 200 || status >= 300 {
		return &domain.UpstreamError{StatusCode: status, Body: string(body)}
	}

	if out == nil || len(body) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode upstream response: %w", err)
	}

	return nil
}

func (c *SessionClient) do(ctx context.Context, config domain.IntegrationConfig, r Request, credential domain.CachedCredential) (int, []byte, error) {
	var reqBody io.Reader
	contentType := ""

	switch {
	case r.Form != nil:
		reqBody = strings.NewReader(r.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	case r.Body != nil:
		encoded, err := json.Marshal(r.Body)
		if err != nil {
			return 0, nil, err
		}

		reqBody = bytes.NewReader(encoded)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, config.BaseURL()+r.Path, reqBody)
	if err != nil {
		return 0, nil, err
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	req.Header.Set("Accept", "application/json")

	for header, values := range r.Header {
		for _, value := range values {
			req.Header.Add(header, value)
		}
	}

	if r.Query != nil {
		q := req.URL.Query()
		for param, values := range r.Query {
			for _, value := range values {
				q.Add(param, value)
			}
		}
		req.URL.RawQuery = q.Encode()
	}

	c.applyCredential(req, credential, config)

	resp, err := c.httpClientProvider.GetHTTPClient(config).Do(req)
	if err != nil {
		return 0, nil, domain.WrapTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, domain.WrapTransportError(err)
	}

	return resp.StatusCode, body, nil
}

package managers

import (
	"crypto/tls"
	"net/http"
	"sync"
	"time"

	"github.com/pulseboard/pulseboard/pkg/domain"
)

const DefaultUpstreamTimeout = 30 * time.Second

type httpClientProvider struct {
	timeout time.Duration

	mtx     sync.Mutex
	clients map[bool]*http.Client // keyed by TLS-verify toggle
}

// NewHTTPClientProvider builds upstream HTTP clients with a bounded per-call
// timeout and the instance's TLS-verify setting. Clients are shared per
// verify mode so connection pools are reused across requests.
func NewHTTPClientProvider(timeout time.Duration) domain.HTTPClientProvider {
	if timeout <= 0 {
		timeout = DefaultUpstreamTimeout
	}

	return &httpClientProvider{
		timeout: timeout,
		clients: make(map[bool]*http.Client),
	}
}

func (p *httpClientProvider) GetHTTPClient(config domain.IntegrationConfig) *http.Client {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if client, ok := p.clients[config.VerifyTLS]; ok {
		return client
	}

	client := &http.Client{
		Timeout: p.timeout,
	}

	if !config.VerifyTLS {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	p.clients[config.VerifyTLS] = client

	return client
}

package opnsense

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/pulseboard/pulseboard/internal/managers"
	"github.com/pulseboard/pulseboard/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type opnsenseFixture struct {
	failServices      bool
	restartedServices []string
}

func (f *opnsenseFixture) handler() http.Handler {
	mux := http.NewServeMux()

	withAuth := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			key, secret, ok := r.BasicAuth()
			if !ok || key != "the-key" || secret != "the-secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}

	mux.HandleFunc("/api/routes/gateway/status", withAuth(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{"name": "WAN_GW", "address": "203.0.113.1", "status": "none", "status_translated": "Online", "delay": "8.2 ms", "loss": "0.0 %"},
				{"name": "BACKUP_GW", "address": "198.51.100.1", "status": "down", "status_translated": "Offline", "delay": "~", "loss": "100.0 %"},
			},
		})
	}))

	mux.HandleFunc("/api/diagnostics/system/systemResources", withAuth(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"memory": map[string]any{"total": "8 GB", "used": "2 GB"},
		})
	}))

	mux.HandleFunc("/api/core/service/search", withAuth(func(w http.ResponseWriter, r *http.Request) {
		if f.failServices {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		json.NewEncoder(w).Encode(map[string]any{
			"total": 3,
			"rows": []map[string]any{
				{"name": "unbound", "running": 1},
				{"name": "dhcpd", "running": 1},
				{"name": "openvpn", "running": 0},
			},
		})
	}))

	mux.HandleFunc("/api/core/firmware/status", withAuth(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"product_name":    "OPNsense",
			"product_version": "24.7.5",
			"status":          "none",
		})
	}))

	mux.HandleFunc("/api/core/service/restart/unbound", withAuth(func(w http.ResponseWriter, r *http.Request) {
		f.restartedServices = append(f.restartedServices, "unbound")

		json.NewEncoder(w).Encode(map[string]any{"result": "ok"})
	}))

	return mux
}

func newTestIntegration(t *testing.T, serverURL, key, secret string) *OPNsenseIntegration {
	t.Helper()

	parsed, err := url.Parse(serverURL)
	require.NoError(t, err)

	port, err := strconv.Atoi(parsed.Port())
	require.NoError(t, err)

	integration, err := NewOPNsenseIntegration(context.Background(), OPNsenseIntegrationDependencies{
		Config: domain.IntegrationConfig{
			ID:           "fw-main",
			Type:         domain.IntegrationType_OPNsense,
			Host:         parsed.Hostname(),
			Port:         port,
			APIKey:       key,
			ClientSecret: secret,
		},
		Deps: domain.IntegrationDeps{
			CredentialCache:    managers.NewCredentialCache(managers.CredentialCacheOptions{}),
			HTTPClientProvider: managers.NewHTTPClientProvider(5 * time.Second),
		},
	})
	require.NoError(t, err)

	return integration
}

func TestOPNsenseGateways(t *testing.T) {
	srv := httptest.NewServer((&opnsenseFixture{}).handler())
	defer srv.Close()

	integration := newTestIntegration(t, srv.URL, "the-key", "the-secret")

	result, err := integration.GetData(context.Background(), domain.GetDataParams{MetricType: OPNsenseMetricType_Gateways})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Data["total"])
	assert.Equal(t, 1, result.Data["online"])

	gateways := result.Data["gateways"].([]map[string]any)
	assert.Equal(t, "WAN_GW", gateways[0]["name"])
	assert.Equal(t, "Online", gateways[0]["status"])
}

func TestOPNsenseFirewallOverview(t *testing.T) {
	t.Run("all portions healthy", func(t *testing.T) {
		srv := httptest.NewServer((&opnsenseFixture{}).handler())
		defer srv.Close()

		integration := newTestIntegration(t, srv.URL, "the-key", "the-secret")

		result, err := integration.GetData(context.Background(), domain.GetDataParams{MetricType: OPNsenseMetricType_FirewallOverview})
		require.NoError(t, err)

		assert.False(t, result.Partial)

		services := result.Data["services"].(map[string]any)
		assert.Equal(t, 3, services["total"])
		assert.Equal(t, 2, services["running"])

		firmware := result.Data["firmware"].(map[string]any)
		assert.Equal(t, "24.7.5", firmware["version"])
	})

	t.Run("service search failure degrades to fallback", func(t *testing.T) {
		srv := httptest.NewServer((&opnsenseFixture{failServices: true}).handler())
		defer srv.Close()

		integration := newTestIntegration(t, srv.URL, "the-key", "the-secret")

		result, err := integration.GetData(context.Background(), domain.GetDataParams{MetricType: OPNsenseMetricType_FirewallOverview})
		require.NoError(t, err)

		assert.True(t, result.Partial)
		require.Len(t, result.Warnings, 1)
		assert.Equal(t, "services", result.Warnings[0].Source)

		services := result.Data["services"].(map[string]any)
		assert.Equal(t, 0, services["total"])
	})
}

func TestOPNsenseInvokeCapability(t *testing.T) {
	fixture := &opnsenseFixture{}
	srv := httptest.NewServer(fixture.handler())
	defer srv.Close()

	integration := newTestIntegration(t, srv.URL, "the-key", "the-secret")

	t.Run("placeholder substitution", func(t *testing.T) {
		result := integration.InvokeCapability(context.Background(), domain.InvokeCapabilityParams{
			CapabilityID: "restart_service",
			Method:       "POST",
			Endpoint:     "/api/core/service/restart/{name}",
			Params:       map[string]any{"name": "unbound"},
		})

		require.True(t, result.Success, result.Error)
		assert.Equal(t, []string{"unbound"}, fixture.restartedServices)
	})

	t.Run("unresolved placeholder", func(t *testing.T) {
		result := integration.InvokeCapability(context.Background(), domain.InvokeCapabilityParams{
			CapabilityID: "restart_service",
			Method:       "POST",
			Endpoint:     "/api/core/service/restart/{name}",
		})

		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "placeholder")
	})

	t.Run("unsupported method", func(t *testing.T) {
		result := integration.InvokeCapability(context.Background(), domain.InvokeCapabilityParams{
			CapabilityID: "anything",
			Method:       "DELETE",
			Endpoint:     "/api/core/firmware/status",
		})

		assert.False(t, result.Success)
		assert.Contains(t, result.Error, "DELETE")
	})

	t.Run("plain GET", func(t *testing.T) {
		result := integration.InvokeCapability(context.Background(), domain.InvokeCapabilityParams{
			CapabilityID: "get_firmware_status",
			Method:       "GET",
			Endpoint:     "/api/core/firmware/status",
		})

		require.True(t, result.Success, result.Error)

		data := result.Data.(map[string]any)
		assert.Equal(t, "24.7.5", data["product_version"])
	})
}

func TestOPNsenseBadCredentialsSurfaceAuthError(t *testing.T) {
	srv := httptest.NewServer((&opnsenseFixture{}).handler())
	defer srv.Close()

	integration := newTestIntegration(t, srv.URL, "the-key", "wrong")

	_, err := integration.GetData(context.Background(), domain.GetDataParams{MetricType: OPNsenseMetricType_Gateways})
	require.Error(t, err)

	assert.Equal(t, domain.ErrorCategoryAuthentication, domain.Categorize(err))
}

func TestFillPlaceholders(t *testing.T) {
	tests := []struct {
		name          string
		endpoint      string
		params        map[string]any
		wantPath      string
		wantRemaining int
	}{
		{
			name:          "single placeholder consumed",
			endpoint:      "/api/core/service/restart/{name}",
			params:        map[string]any{"name": "unbound"},
			wantPath:      "/api/core/service/restart/unbound",
			wantRemaining: 0,
		},
		{
			name:          "leftover params survive",
			endpoint:      "/api/thing/{id}",
			params:        map[string]any{"id": 7, "verbose": true},
			wantPath:      "/api/thing/7",
			wantRemaining: 1,
		},
		{
			name:          "no placeholders",
			endpoint:      "/api/flat",
			params:        map[string]any{"q": "x"},
			wantPath:      "/api/flat",
			wantRemaining: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, remaining := fillPlaceholders(tt.endpoint, tt.params)

			assert.Equal(t, tt.wantPath, path)
			assert.Len(t, remaining, tt.wantRemaining)
		})
	}
}

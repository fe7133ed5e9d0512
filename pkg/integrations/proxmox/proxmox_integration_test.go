package proxmox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pulseboard/pulseboard/internal/managers"
	"github.com/pulseboard/pulseboard/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTicket = "PVE:monitor@pve:TICKET"
	testCSRF   = "CSRF:TOKEN"
)

type proxmoxFixture struct {
	logins     atomic.Int64
	vmCommands []string
}

func (f *proxmoxFixture) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api2/json/access/ticket", func(w http.ResponseWriter, r *http.Request) {
		f.logins.Add(1)

		if err := r.ParseForm(); err != nil || r.PostForm.Get("password") != "pass" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"ticket":              testTicket,
				"CSRFPreventionToken": testCSRF,
			},
		})
	})

	withTicket := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(authCookieName)
			if err != nil || cookie.Value != testTicket {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			if r.Method == http.MethodPost && r.Header.Get(csrfHeaderName) != testCSRF {
				w.WriteHeader(http.StatusForbidden)
				return
			}

			next(w, r)
		}
	}

	mux.HandleFunc("/api2/json/nodes/pve/status", withTicket(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"uptime": 86400,
				"cpu":    0.12,
				"memory": map[string]any{"total": 1000, "used": 400},
			},
		})
	}))

	mux.HandleFunc("/api2/json/nodes/pve/qemu", withTicket(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"vmid": 101, "name": "db", "status": "running"},
				{"vmid": 100, "name": "web", "status": "stopped"},
			},
		})
	}))

	mux.HandleFunc("/api2/json/nodes/pve/qemu/100/status/current", withTicket(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"cpu": 0.0, "mem": 0, "maxmem": 2048, "uptime": 0},
		})
	}))

	mux.HandleFunc("/api2/json/nodes/pve/qemu/101/status/current", withTicket(func(w http.ResponseWriter, r *http.Request) {
		// Detail fetch fails for this VM only.
		w.WriteHeader(http.StatusInternalServerError)
	}))

	mux.HandleFunc("/api2/json/nodes/pve/qemu/100/status/start", withTicket(func(w http.ResponseWriter, r *http.Request) {
		f.vmCommands = append(f.vmCommands, "start-100")

		json.NewEncoder(w).Encode(map[string]any{"data": "UPID:pve:task"})
	}))

	return mux
}

func newTestIntegration(t *testing.T, serverURL string) *ProxmoxIntegration {
	t.Helper()

	parsed, err := url.Parse(serverURL)
	require.NoError(t, err)

	port, err := strconv.Atoi(parsed.Port())
	require.NoError(t, err)

	integration, err := NewProxmoxIntegration(context.Background(), ProxmoxIntegrationDependencies{
		Config: domain.IntegrationConfig{
			ID:       "pve-main",
			Type:     domain.IntegrationType_Proxmox,
			Host:     parsed.Hostname(),
			Port:     port,
			Username: "monitor@pve",
			Password: "pass",
			Extra:    map[string]string{"node": "pve"},
		},
		Deps: domain.IntegrationDeps{
			CredentialCache:    managers.NewCredentialCache(managers.CredentialCacheOptions{}),
			HTTPClientProvider: managers.NewHTTPClientProvider(5 * time.Second),
		},
	})
	require.NoError(t, err)

	return integration
}

func TestProxmoxNodeStatus(t *testing.T) {
	fixture := &proxmoxFixture{}
	srv := httptest.NewServer(fixture.handler())
	defer srv.Close()

	integration := newTestIntegration(t, srv.URL)

	result, err := integration.GetData(context.Background(), domain.GetDataParams{MetricType: ProxmoxMetricType_NodeStatus})
	require.NoError(t, err)

	assert.Equal(t, "pve", result.Data["node"])
	assert.Equal(t, int64(86400), result.Data["uptime"])
	assert.Equal(t, int64(1), fixture.logins.Load())
}

func TestProxmoxTicketIsCachedAcrossCalls(t *testing.T) {
	fixture := &proxmoxFixture{}
	srv := httptest.NewServer(fixture.handler())
	defer srv.Close()

	integration := newTestIntegration(t, srv.URL)

	for i := 0; i < 3; i++ {
		_, err := integration.GetData(context.Background(), domain.GetDataParams{MetricType: ProxmoxMetricType_NodeStatus})
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), fixture.logins.Load(), "repeated calls share one ticket exchange")
}

func TestProxmoxVirtualMachines_DetailFailureDegradesEntry(t *testing.T) {
	fixture := &proxmoxFixture{}
	srv := httptest.NewServer(fixture.handler())
	defer srv.Close()

	integration := newTestIntegration(t, srv.URL)

	result, err := integration.GetData(context.Background(), domain.GetDataParams{MetricType: ProxmoxMetricType_VirtualMachines})
	require.NoError(t, err)

	assert.True(t, result.Partial)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "vm-101", result.Warnings[0].Source)

	vms := result.Data["vms"].([]map[string]any)
	require.Len(t, vms, 2)

	// Sorted by vmid; the degraded VM keeps its listing fields.
	assert.Equal(t, int64(100), vms[0]["vmid"])
	assert.Contains(t, vms[0], "maxmem")
	assert.Equal(t, int64(101), vms[1]["vmid"])
	assert.NotContains(t, vms[1], "maxmem")

	assert.Equal(t, 1, result.Data["running"])
}

func TestProxmoxPerformAction(t *testing.T) {
	fixture := &proxmoxFixture{}
	srv := httptest.NewServer(fixture.handler())
	defer srv.Close()

	integration := newTestIntegration(t, srv.URL)

	t.Run("start sends CSRF-guarded POST", func(t *testing.T) {
		result := integration.PerformAction(context.Background(), domain.PerformActionParams{
			ActionType: ProxmoxActionType_VMStart,
			Params:     map[string]any{"vmid": float64(100)},
		})

		require.True(t, result.Success, result.Message)
		assert.Equal(t, []string{"start-100"}, fixture.vmCommands)
	})

	t.Run("missing vmid", func(t *testing.T) {
		result := integration.PerformAction(context.Background(), domain.PerformActionParams{
			ActionType: ProxmoxActionType_VMStart,
		})

		assert.False(t, result.Success)
		assert.Contains(t, result.Message, "vmid")
	})

	t.Run("unknown action enumerates valid ones", func(t *testing.T) {
		result := integration.PerformAction(context.Background(), domain.PerformActionParams{
			ActionType: "vm-clone",
		})

		assert.False(t, result.Success)
		assert.Contains(t, result.Message, "vm-start")
	})
}

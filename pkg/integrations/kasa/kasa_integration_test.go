package kasa

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

type kasaFixture struct {
	logins atomic.Int64

	// expireFirstToken rejects the first issued token once, mimicking the
	// cloud expiring a session between calls.
	expireFirstToken bool

	// failStats makes the emeter stat calls error while realtime keeps
	// working.
	failStats bool

	relayStates map[string]int
}

func (f *kasaFixture) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
			Params struct {
				CloudPassword string `json:"cloudPassword"`
				DeviceID      string `json:"deviceId"`
				RequestData   string `json:"requestData"`
			} `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		write := func(body map[string]any) {
			json.NewEncoder(w).Encode(body)
		}

		if req.Method == "login" {
			if req.Params.CloudPassword != "pass" {
				write(map[string]any{"error_code": -20601, "msg": "Password incorrect"})
				return
			}

			n := f.logins.Add(1)
			write(map[string]any{"error_code": 0, "result": map[string]any{"token": "cloud-" + strconv.FormatInt(n, 10)}})
			return
		}

		token := r.URL.Query().Get("token")
		validToken := "cloud-" + strconv.FormatInt(f.logins.Load(), 10)

		if f.expireFirstToken && token == "cloud-1" && f.logins.Load() == 1 {
			write(map[string]any{"error_code": -20651, "msg": "Token expired"})
			return
		}

		if token != validToken {
			write(map[string]any{"error_code": -20675, "msg": "Token invalid"})
			return
		}

		switch req.Method {
		case "getDeviceList":
			write(map[string]any{"error_code": 0, "result": map[string]any{
				"deviceList": []map[string]any{
					{"deviceId": "dev-1", "alias": "Desk Lamp", "deviceModel": "HS110", "deviceType": "IOT.SMARTPLUGSWITCH", "status": 1},
					{"deviceId": "dev-2", "alias": "Heater", "deviceModel": "HS100", "deviceType": "IOT.SMARTPLUGSWITCH", "status": 0},
				},
			}})
		case "passthrough":
			var inner map[string]map[string]map[string]any
			if err := json.Unmarshal([]byte(req.Params.RequestData), &inner); err != nil {
				write(map[string]any{"error_code": -1, "msg": "bad passthrough payload"})
				return
			}

			var responseData []byte

			switch {
			case inner["system"] != nil && inner["system"]["get_sysinfo"] != nil:
				responseData, _ = json.Marshal(map[string]any{
					"system": map[string]any{"get_sysinfo": map[string]any{
						"relay_state": f.relayStates[req.Params.DeviceID],
						"rssi":        -55,
						"feature":     "TIM:ENE",
					}},
				})
			case inner["system"] != nil && inner["system"]["set_relay_state"] != nil:
				state := int(inner["system"]["set_relay_state"]["state"].(float64))
				if f.relayStates == nil {
					f.relayStates = map[string]int{}
				}
				f.relayStates[req.Params.DeviceID] = state
				responseData, _ = json.Marshal(map[string]any{"system": map[string]any{"set_relay_state": map[string]any{"err_code": 0}}})
			case inner["emeter"] != nil && inner["emeter"]["get_realtime"] != nil:
				responseData, _ = json.Marshal(map[string]any{
					"emeter": map[string]any{"get_realtime": map[string]any{
						"power_mw": 4500, "voltage_mv": 230000, "current_ma": 20, "total_wh": 1200,
					}},
				})
			case inner["emeter"] != nil && inner["emeter"]["get_daystat"] != nil:
				if f.failStats {
					write(map[string]any{"error_code": -1, "msg": "stats unavailable"})
					return
				}

				now := time.Now()
				responseData, _ = json.Marshal(map[string]any{
					"emeter": map[string]any{"get_daystat": map[string]any{
						"day_list": []map[string]any{
							{"year": now.Year(), "month": int(now.Month()), "day": now.Day(), "energy_wh": 500},
							{"year": now.Year(), "month": int(now.Month()), "day": now.Day() + 1, "energy_wh": 1300},
						},
					}},
				})
			case inner["emeter"] != nil && inner["emeter"]["get_monthstat"] != nil:
				if f.failStats {
					write(map[string]any{"error_code": -1, "msg": "stats unavailable"})
					return
				}

				now := time.Now()
				responseData, _ = json.Marshal(map[string]any{
					"emeter": map[string]any{"get_monthstat": map[string]any{
						"month_list": []map[string]any{
							{"year": now.Year(), "month": int(now.Month()), "energy_wh": 12000},
						},
					}},
				})
			}

			write(map[string]any{"error_code": 0, "result": map[string]any{"responseData": string(responseData)}})
		default:
			write(map[string]any{"error_code": -1, "msg": "unknown method"})
		}
	})
}

func newTestIntegration(t *testing.T, serverURL, password string) *KasaIntegration {
	t.Helper()

	parsed, err := url.Parse(serverURL)
	require.NoError(t, err)

	port, err := strconv.Atoi(parsed.Port())
	require.NoError(t, err)

	integration, err := NewKasaIntegration(context.Background(), KasaIntegrationDependencies{
		Config: domain.IntegrationConfig{
			ID:       "kasa-main",
			Type:     domain.IntegrationType_Kasa,
			Host:     parsed.Hostname(),
			Port:     port,
			Username: "home@example.com",
			Password: password,
		},
		Deps: domain.IntegrationDeps{
			CredentialCache:    managers.NewCredentialCache(managers.CredentialCacheOptions{}),
			HTTPClientProvider: managers.NewHTTPClientProvider(5 * time.Second),
		},
	})
	require.NoError(t, err)

	return integration
}

func TestKasaDevices(t *testing.T) {
	fixture := &kasaFixture{relayStates: map[string]int{"dev-1": 1}}
	srv := httptest.NewServer(fixture.handler())
	defer srv.Close()

	integration := newTestIntegration(t, srv.URL, "pass")

	result, err := integration.GetData(context.Background(), domain.GetDataParams{MetricType: KasaMetricType_Devices})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Data["total"])
	assert.Equal(t, 1, result.Data["online"])

	devices := result.Data["devices"].([]map[string]any)
	require.Len(t, devices, 2)
	assert.Equal(t, "Desk Lamp", devices[0]["alias"])
	assert.Equal(t, "plug", devices[0]["deviceType"])
	assert.Equal(t, true, devices[0]["isOn"])
	assert.Equal(t, true, devices[0]["hasEnergyMonitoring"])
	assert.Equal(t, false, devices[1]["isOn"])

	assert.Equal(t, int64(1), fixture.logins.Load())
}

func TestKasaEnergyConvertsMilliUnits(t *testing.T) {
	fixture := &kasaFixture{}
	srv := httptest.NewServer(fixture.handler())
	defer srv.Close()

	integration := newTestIntegration(t, srv.URL, "pass")

	result, err := integration.GetData(context.Background(), domain.GetDataParams{MetricType: KasaMetricType_Energy})
	require.NoError(t, err)

	devices := result.Data["devices"].([]map[string]any)
	require.Len(t, devices, 2)

	assert.InDelta(t, 4.5, devices[0]["currentPower"], 0.001)
	assert.InDelta(t, 230.0, devices[0]["voltage"], 0.001)
	assert.InDelta(t, 1.2, devices[0]["totalEnergy"], 0.001)
	assert.InDelta(t, 9.0, result.Data["totalPower"], 0.001)
}

func TestKasaEnergyIncludesDayAndMonthStats(t *testing.T) {
	fixture := &kasaFixture{}
	srv := httptest.NewServer(fixture.handler())
	defer srv.Close()

	integration := newTestIntegration(t, srv.URL, "pass")

	result, err := integration.GetData(context.Background(), domain.GetDataParams{MetricType: KasaMetricType_Energy})
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)

	devices := result.Data["devices"].([]map[string]any)
	require.Len(t, devices, 2)

	assert.Contains(t, devices[0], "todayEnergy")
	assert.Contains(t, devices[0], "monthEnergy")
	assert.InDelta(t, 0.5, devices[0]["todayEnergy"], 0.001)
	assert.InDelta(t, 12.0, devices[0]["monthEnergy"], 0.001)
}

func TestKasaEnergyStatsFailureDegradesToZero(t *testing.T) {
	fixture := &kasaFixture{failStats: true}
	srv := httptest.NewServer(fixture.handler())
	defer srv.Close()

	integration := newTestIntegration(t, srv.URL, "pass")

	result, err := integration.GetData(context.Background(), domain.GetDataParams{MetricType: KasaMetricType_Energy})
	require.NoError(t, err)

	devices := result.Data["devices"].([]map[string]any)
	require.Len(t, devices, 2, "realtime readings survive a stats failure")

	assert.InDelta(t, 4.5, devices[0]["currentPower"], 0.001)
	assert.InDelta(t, 0.0, devices[0]["todayEnergy"], 0.001)
	assert.InDelta(t, 0.0, devices[0]["monthEnergy"], 0.001)

	require.Len(t, result.Warnings, 2)
	assert.Contains(t, result.Warnings[0].Message, "stats unavailable")
}

func TestKasaExpiredTokenReauthenticatesOnce(t *testing.T) {
	fixture := &kasaFixture{expireFirstToken: true}
	srv := httptest.NewServer(fixture.handler())
	defer srv.Close()

	integration := newTestIntegration(t, srv.URL, "pass")

	result, err := integration.GetData(context.Background(), domain.GetDataParams{MetricType: KasaMetricType_Devices})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Data["total"])
	assert.Equal(t, int64(2), fixture.logins.Load(), "token expiry triggers exactly one re-login")
}

func TestKasaPowerActions(t *testing.T) {
	fixture := &kasaFixture{relayStates: map[string]int{"dev-2": 0}}
	srv := httptest.NewServer(fixture.handler())
	defer srv.Close()

	integration := newTestIntegration(t, srv.URL, "pass")

	t.Run("power on", func(t *testing.T) {
		result := integration.PerformAction(context.Background(), domain.PerformActionParams{
			ActionType: KasaActionType_PowerOn,
			Params:     map[string]any{"deviceId": "dev-2"},
		})

		require.True(t, result.Success, result.Message)
		assert.Equal(t, 1, fixture.relayStates["dev-2"])
	})

	t.Run("unknown device", func(t *testing.T) {
		result := integration.PerformAction(context.Background(), domain.PerformActionParams{
			ActionType: KasaActionType_PowerOff,
			Params:     map[string]any{"deviceId": "ghost"},
		})

		assert.False(t, result.Success)
		assert.Contains(t, result.Message, "ghost")
	})

	t.Run("missing deviceId", func(t *testing.T) {
		result := integration.PerformAction(context.Background(), domain.PerformActionParams{
			ActionType: KasaActionType_PowerOn,
		})

		assert.False(t, result.Success)
		assert.Contains(t, result.Message, "deviceId")
	})
}

func TestKasaBadPasswordSurfacesAuthError(t *testing.T) {
	fixture := &kasaFixture{}
	srv := httptest.NewServer(fixture.handler())
	defer srv.Close()

	integration := newTestIntegration(t, srv.URL, "wrong")

	_, err := integration.GetData(context.Background(), domain.GetDataParams{MetricType: KasaMetricType_Devices})
	require.Error(t, err)

	assert.Equal(t, domain.ErrorCategoryAuthentication, domain.Categorize(err))
}

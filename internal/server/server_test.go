package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pulseboard/pulseboard/internal/controllers"
	"github.com/pulseboard/pulseboard/internal/managers"
	"github.com/pulseboard/pulseboard/pkg/domain"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExecutor struct{}

func (stubExecutor) GetData(ctx context.Context, params domain.GetDataParams) (domain.MetricResult, error) {
	switch params.MetricType {
	case "pulse":
		return domain.NewMetricResult(map[string]any{"value": 42}, nil), nil
	case "flaky":
		return domain.NewMetricResult(
			map[string]any{"value": 1},
			[]domain.Warning{{Source: "extra", Message: "upstream returned status 500"}},
		), nil
	default:
		return domain.MetricResult{}, &domain.UnknownMetricError{Metric: params.MetricType, Known: []domain.MetricType{"flaky", "pulse"}}
	}
}

func (stubExecutor) PerformAction(ctx context.Context, params domain.PerformActionParams) domain.ActionResult {
	if params.ActionType != "ping" {
		return domain.ActionResult{Success: false, Message: "unknown action"}
	}

	return domain.ActionResult{Success: true, Message: "pong", Data: params.Params}
}

func (stubExecutor) InvokeCapability(ctx context.Context, params domain.InvokeCapabilityParams) domain.CapabilityResult {
	return domain.CapabilityResult{Success: true, Data: map[string]any{"endpoint": params.Endpoint}}
}

type stubCreator struct{}

func (stubCreator) CreateIntegration(ctx context.Context, p domain.CreateIntegrationParams) (domain.IntegrationExecutor, error) {
	return stubExecutor{}, nil
}

type stubTester struct{}

func (stubTester) TestConnection(ctx context.Context, params domain.ConnectionTestParams) domain.ConnectionTestResult {
	return domain.ConnectionTestResult{Success: true, Message: "connected"}
}

func buildApp(t *testing.T) *fiber.App {
	t.Helper()

	selector := domain.NewIntegrationSelector()
	selector.RegisterSchema(domain.Integration{
		ID:          "stub",
		Name:        "Stub",
		AuthVariant: domain.AuthVariantStatic,
		Metrics: []domain.IntegrationMetric{
			{ID: "pulse", MetricType: "pulse", Name: "Pulse"},
		},
		Capabilities: []domain.Capability{
			{ID: "get_ready", Method: "GET", Endpoint: "/ready", Implemented: true},
			{ID: "get_future", Method: "GET", Endpoint: "/future", Implemented: false},
		},
	})
	selector.RegisterCreator("stub", stubCreator{})
	selector.RegisterConnectionTester("stub", stubTester{})

	store := managers.NewInstanceStore([]domain.IntegrationConfig{
		{ID: "stub-1", Type: "stub", Host: "stub.local"},
	})

	controller := controllers.NewDashboardController(controllers.DashboardControllerDependencies{
		IntegrationSelector: selector,
		InstanceStore:       store,
	})

	return NewHTTPServer(context.Background(), HTTPServerDependencies{DashboardController: controller})
}

func doRequest(t *testing.T, method, target string, body string) (int, map[string]any) {
	t.Helper()

	app := buildApp(t)

	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reqBody)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	payload := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	if len(raw) > 0 && json.Valid(raw) {
		require.NoError(t, json.Unmarshal(raw, &payload))
	}

	return resp.StatusCode, payload
}

func TestHealthEndpoint(t *testing.T) {
	status, payload := doRequest(t, "GET", "/health", "")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", payload["status"])
	assert.Equal(t, "pulseboard", payload["service"])
}

func TestListIntegrations(t *testing.T) {
	status, payload := doRequest(t, "GET", "/api/integrations/", "")

	require.Equal(t, http.StatusOK, status)

	integrations := payload["integrations"].([]any)
	require.Len(t, integrations, 1)

	entry := integrations[0].(map[string]any)
	assert.Equal(t, "stub", entry["id"])
}

func TestListMetricsAndCapabilities(t *testing.T) {
	status, payload := doRequest(t, "GET", "/api/integrations/stub/metrics", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, payload["metrics"].([]any), 1)

	status, payload = doRequest(t, "GET", "/api/integrations/stub/capabilities", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, payload["capabilities"].([]any), 2)

	status, _ = doRequest(t, "GET", "/api/integrations/nope/metrics", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestInstanceRoutes(t *testing.T) {
	t.Run("connection test", func(t *testing.T) {
		status, payload := doRequest(t, "POST", "/api/instances/stub-1/test", "")

		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, true, payload["success"])
	})

	t.Run("metric fetch", func(t *testing.T) {
		status, payload := doRequest(t, "GET", "/api/instances/stub-1/metrics/pulse", "")

		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, true, payload["success"])

		data := payload["data"].(map[string]any)
		assert.Equal(t, float64(42), data["value"])
	})

	t.Run("partial metric keeps 200 with warnings", func(t *testing.T) {
		status, payload := doRequest(t, "GET", "/api/instances/stub-1/metrics/flaky", "")

		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, true, payload["partial"])
		assert.Len(t, payload["warnings"].([]any), 1)
	})

	t.Run("unknown metric is 404 with taxonomy category", func(t *testing.T) {
		status, payload := doRequest(t, "GET", "/api/instances/stub-1/metrics/bogus", "")

		require.Equal(t, http.StatusNotFound, status)

		errBody := payload["error"].(map[string]any)
		assert.Equal(t, string(domain.ErrorCategoryUnknownMetric), errBody["category"])
	})

	t.Run("unknown instance is 404", func(t *testing.T) {
		status, _ := doRequest(t, "GET", "/api/instances/ghost/metrics/pulse", "")

		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("action", func(t *testing.T) {
		status, payload := doRequest(t, "POST", "/api/instances/stub-1/actions/ping", `{"params":{"target":"x"}}`)

		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, true, payload["success"])
		assert.Equal(t, "pong", payload["message"])
	})

	t.Run("implemented capability", func(t *testing.T) {
		status, payload := doRequest(t, "POST", "/api/instances/stub-1/capabilities/get_ready", "")

		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, true, payload["success"])
	})

	t.Run("unimplemented capability is 501", func(t *testing.T) {
		status, _ := doRequest(t, "POST", "/api/instances/stub-1/capabilities/get_future", "")

		assert.Equal(t, http.StatusNotImplemented, status)
	})

	t.Run("unknown capability is 404", func(t *testing.T) {
		status, _ := doRequest(t, "POST", "/api/instances/stub-1/capabilities/missing", "")

		assert.Equal(t, http.StatusNotFound, status)
	})
}

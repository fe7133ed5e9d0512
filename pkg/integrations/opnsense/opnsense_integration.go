package opnsense

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/pulseboard/pulseboard/internal/managers"
	"github.com/pulseboard/pulseboard/pkg/domain"
)

const (
	OPNsenseMetricType_Gateways         domain.MetricType = "gateways"
	OPNsenseMetricType_FirewallOverview domain.MetricType = "firewall-overview"
)

type OPNsenseIntegrationCreator struct {
	deps domain.IntegrationDeps
}

func NewOPNsenseIntegrationCreator(deps domain.IntegrationDeps) domain.IntegrationCreator {
	return &OPNsenseIntegrationCreator{deps: deps}
}

func (c *OPNsenseIntegrationCreator) CreateIntegration(ctx context.Context, p domain.CreateIntegrationParams) (domain.IntegrationExecutor, error) {
	return NewOPNsenseIntegration(ctx, OPNsenseIntegrationDependencies{
		Config: p.Config,
		Deps:   c.deps,
	})
}

type OPNsenseIntegration struct {
	config  domain.IntegrationConfig
	session *managers.SessionClient

	metricManager *domain.MetricHandlerManager
}

type OPNsenseIntegrationDependencies struct {
	Config domain.IntegrationConfig
	Deps   domain.IntegrationDeps
}

// keyPairStrategy joins the API key and secret into basic-auth material.
// Both halves are static config; nothing is exchanged and nothing expires.
type keyPairStrategy struct{}

func (keyPairStrategy) Authenticate(ctx context.Context, config domain.IntegrationConfig) (domain.CachedCredential, error) {
	if config.APIKey == "" || config.ClientSecret == "" {
		return domain.CachedCredential{}, &domain.ConfigurationError{Field: "api_key"}
	}

	return domain.CachedCredential{
		Material: config.APIKey + ":" + config.ClientSecret,
		Kind:     domain.CredentialKindAPIKey,
	}, nil
}

func NewOPNsenseIntegration(ctx context.Context, deps OPNsenseIntegrationDependencies) (*OPNsenseIntegration, error) {
	if deps.Config.APIKey == "" || deps.Config.ClientSecret == "" {
		return nil, &domain.ConfigurationError{Field: "api_key"}
	}

	authenticator := managers.NewSessionAuthenticator(managers.SessionAuthenticatorDependencies{
		Cache:    deps.Deps.CredentialCache,
		Strategy: keyPairStrategy{},
	})

	integration := &OPNsenseIntegration{
		config: deps.Config,
		session: managers.NewSessionClient(managers.SessionClientDependencies{
			Authenticator:      authenticator,
			HTTPClientProvider: deps.Deps.HTTPClientProvider,
			ApplyCredential:    managers.ApplyBasicPair,
		}),
	}

	integration.metricManager = domain.NewMetricHandlerManager().
		Add(OPNsenseMetricType_Gateways, integration.Gateways).
		Add(OPNsenseMetricType_FirewallOverview, integration.FirewallOverview)

	return integration, nil
}

func (i *OPNsenseIntegration) GetData(ctx context.Context, params domain.GetDataParams) (domain.MetricResult, error) {
	return i.metricManager.Run(ctx, params.MetricType, params)
}

type gatewayStatus struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	Status     string `json:"status"`
	Delay      string `json:"delay"`
	Loss       string `json:"loss"`
	StatusText string `json:"status_translated"`
}

// Gateways reports per-gateway reachability from the routing subsystem.
func (i *OPNsenseIntegration) Gateways(ctx context.Context, params domain.GetDataParams) (domain.MetricResult, error) {
	var statusResp struct {
		Items []gatewayStatus `json:"items"`
	}

	err := i.session.DoJSON(ctx, i.config, managers.Request{
		Method: "GET",
		Path:   "/api/routes/gateway/status",
	}, &statusResp)
	if err != nil {
		return domain.MetricResult{}, err
	}

	online := 0
	entries := make([]map[string]any, 0, len(statusResp.Items))

	for _, gateway := range statusResp.Items {
		if strings.EqualFold(gateway.Status, "none") || strings.EqualFold(gateway.StatusText, "online") {
			online++
		}

		entries = append(entries, map[string]any{
			"name":    gateway.Name,
			"address": gateway.Address,
			"status":  gateway.StatusText,
			"delay":   gateway.Delay,
			"loss":    gateway.Loss,
		})
	}

	return domain.NewMetricResult(map[string]any{
		"total":    len(entries),
		"online":   online,
		"gateways": entries,
	}, nil), nil
}

// FirewallOverview aggregates system resources with service and firmware
// state. Resources are required; the other two only degrade the panel.
func (i *OPNsenseIntegration) FirewallOverview(ctx context.Context, params domain.GetDataParams) (domain.MetricResult, error) {
	calls := []domain.SubCall{
		{
			Name: "system",
			Run: func(ctx context.Context) (any, error) {
				var resourcesResp struct {
					Memory struct {
						Total string `json:"total"`
						Used  string `json:"used"`
					} `json:"memory"`
				}

				err := i.session.DoJSON(ctx, i.config, managers.Request{
					Method: "GET",
					Path:   "/api/diagnostics/system/systemResources",
				}, &resourcesResp)
				if err != nil {
					return nil, err
				}

				return map[string]any{"memory": resourcesResp.Memory}, nil
			},
		},
		{
			Name:     "services",
			Optional: true,
			Fallback: map[string]any{"total": 0, "running": 0},
			Run: func(ctx context.Context) (any, error) {
				var searchResp struct {
					Rows []struct {
						Name    string `json:"name"`
						Running int    `json:"running"`
					} `json:"rows"`
					Total int `json:"total"`
				}

				err := i.session.DoJSON(ctx, i.config, managers.Request{
					Method: "POST",
					Path:   "/api/core/service/search",
					Body:   map[string]any{},
				}, &searchResp)
				if err != nil {
					return nil, err
				}

				running := 0
				for _, service := range searchResp.Rows {
					if service.Running == 1 {
						running++
					}
				}

				return map[string]any{"total": searchResp.Total, "running": running}, nil
			},
		},
		{
			Name:     "firmware",
			Optional: true,
			Fallback: map[string]any{},
			Run: func(ctx context.Context) (any, error) {
				var firmwareResp struct {
					ProductVersion string `json:"product_version"`
					Status         string `json:"status"`
				}

				err := i.session.DoJSON(ctx, i.config, managers.Request{
					Method: "GET",
					Path:   "/api/core/firmware/status",
				}, &firmwareResp)
				if err != nil {
					return nil, err
				}

				return map[string]any{
					"version":      firmwareResp.ProductVersion,
					"updateStatus": firmwareResp.Status,
				}, nil
			},
		},
	}

	outcomes := domain.FanOut(ctx, calls, len(calls))

	data, warnings, err := domain.Reduce(outcomes)
	if err != nil {
		return domain.MetricResult{}, err
	}

	return domain.NewMetricResult(data, warnings), nil
}

// InvokeCapability executes a cataloged endpoint verbatim. The controller
// resolves the capability from the published catalog, so by the time this
// runs the method and endpoint are trusted; path placeholders are filled
// from the params and anything left over is sent as query or body.
func (i *OPNsenseIntegration) InvokeCapability(ctx context.Context, params domain.InvokeCapabilityParams) domain.CapabilityResult {
	if params.Method != http.MethodGet && params.Method != http.MethodPost {
		return domain.CapabilityResult{Success: false, Error: fmt.Sprintf("unsupported method %s", params.Method)}
	}

	path, remaining := fillPlaceholders(params.Endpoint, params.Params)

	if strings.Contains(path, "{") {
		return domain.CapabilityResult{Success: false, Error: fmt.Sprintf("unresolved placeholder in endpoint %s", path)}
	}

	req := managers.Request{Method: params.Method, Path: path}

	if params.Method == http.MethodPost {
		req.Body = remaining
	} else if len(remaining) > 0 {
		req.Query = queryFromParams(remaining)
	}

	var data map[string]any

	err := i.session.DoJSON(ctx, i.config, req, &data)
	if err != nil {
		return domain.CapabilityResult{Success: false, Error: err.Error()}
	}

	return domain.CapabilityResult{Success: true, Data: data}
}

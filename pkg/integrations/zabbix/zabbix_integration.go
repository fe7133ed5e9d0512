package zabbix

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pulseboard/pulseboard/internal/managers"
	"github.com/pulseboard/pulseboard/pkg/domain"

	"github.com/rs/zerolog/log"
)

const (
	ZabbixMetricType_Problems         domain.MetricType = "problems"
	ZabbixMetricType_HostAvailability domain.MetricType = "host-availability"
)

const (
	rpcPath = "/api_jsonrpc.php"

	// Zabbix does not report a token lifetime; sessions default to much
	// longer server-side, so an hour of caching is safely conservative.
	tokenTTL = time.Hour

	problemLimit = 50
)

var severityNames = map[string]string{
	"0": "not_classified",
	"1": "information",
	"2": "warning",
	"3": "average",
	"4": "high",
	"5": "disaster",
}

type ZabbixIntegrationCreator struct {
	deps domain.IntegrationDeps
}

func NewZabbixIntegrationCreator(deps domain.IntegrationDeps) domain.IntegrationCreator {
	return &ZabbixIntegrationCreator{deps: deps}
}

func (c *ZabbixIntegrationCreator) CreateIntegration(ctx context.Context, p domain.CreateIntegrationParams) (domain.IntegrationExecutor, error) {
	return NewZabbixIntegration(ctx, ZabbixIntegrationDependencies{
		Config: p.Config,
		Deps:   c.deps,
	})
}

type ZabbixIntegration struct {
	config        domain.IntegrationConfig
	authenticator domain.SessionAuthenticator
	session       *managers.SessionClient

	requestID atomic.Int64

	metricManager *domain.MetricHandlerManager
}

type ZabbixIntegrationDependencies struct {
	Config domain.IntegrationConfig
	Deps   domain.IntegrationDeps
}

// NewLoginStrategy exchanges the configured username and password for an API
// session token through the user.login RPC.
func NewLoginStrategy(provider domain.HTTPClientProvider) managers.BearerExchangeStrategy {
	return managers.BearerExchangeStrategy{
		HTTPClientProvider: provider,
		FallbackTTL:        tokenTTL,
		TokenURL: func(config domain.IntegrationConfig) string {
			return config.BaseURL() + rpcPath
		},
		BuildRequest: func(config domain.IntegrationConfig) (string, []byte, error) {
			if config.Username == "" || config.Password == "" {
				return "", nil, &domain.ConfigurationError{Field: "username"}
			}

			body, err := json.Marshal(map[string]any{
				"jsonrpc": "2.0",
				"method":  "user.login",
				"params": map[string]any{
					"username": config.Username,
					"password": config.Password,
				},
				"id": 1,
			})
			if err != nil {
				return "", nil, err
			}

			return "application/json", body, nil
		},
		ExtractToken: func(body []byte) (string, time.Duration, error) {
			var loginResp struct {
				Result string    `json:"result"`
				Error  *rpcError `json:"error"`
			}

			if err := json.Unmarshal(body, &loginResp); err != nil {
				return "", 0, fmt.Errorf("failed to decode login response: %w", err)
			}

			if loginResp.Error != nil {
				return "", 0, fmt.Errorf("login rejected: %s", loginResp.Error.Error())
			}

			return loginResp.Result, 0, nil
		},
	}
}

func NewZabbixIntegration(ctx context.Context, deps ZabbixIntegrationDependencies) (*ZabbixIntegration, error) {
	if deps.Config.Username == "" || deps.Config.Password == "" {
		return nil, &domain.ConfigurationError{Field: "username"}
	}

	authenticator := managers.NewSessionAuthenticator(managers.SessionAuthenticatorDependencies{
		Cache:    deps.Deps.CredentialCache,
		Strategy: NewLoginStrategy(deps.Deps.HTTPClientProvider),
	})

	integration := &ZabbixIntegration{
		config:        deps.Config,
		authenticator: authenticator,
		session: managers.NewSessionClient(managers.SessionClientDependencies{
			Authenticator:      authenticator,
			HTTPClientProvider: deps.Deps.HTTPClientProvider,
			ApplyCredential:    managers.ApplyBearer,
		}),
	}

	integration.metricManager = domain.NewMetricHandlerManager().
		Add(ZabbixMetricType_Problems, integration.Problems).
		Add(ZabbixMetricType_HostAvailability, integration.HostAvailability)

	return integration, nil
}

func (i *ZabbixIntegration) GetData(ctx context.Context, params domain.GetDataParams) (domain.MetricResult, error) {
	return i.metricManager.Run(ctx, params.MetricType, params)
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("%s %s (code %d)", e.Message, e.Data, e.Code)
}

func (e *rpcError) sessionExpired() bool {
	return strings.Contains(e.Data, "re-login") || strings.Contains(e.Data, "Not authorized")
}

// rpc runs one API call with the cached session token. The transport-level
// 401 retry lives in the session client; Zabbix additionally reports expired
// sessions in-band with HTTP 200, so those get one invalidate-and-retry here.
func (i *ZabbixIntegration) rpc(ctx context.Context, method string, params any, result any) error {
	resp, err := i.post(ctx, method, params)
	if err != nil {
		return err
	}

	if resp.Error != nil && resp.Error.sessionExpired() {
		log.Debug().Str("instance", i.config.ID).Str("method", method).Msg("session rejected in-band, re-authenticating once")

		i.authenticator.InvalidateCredential(i.config)

		resp, err = i.post(ctx, method, params)
		if err != nil {
			return err
		}

		if resp.Error != nil && resp.Error.sessionExpired() {
			return &domain.AuthenticationError{Reason: domain.AuthFailureTokenExpired, Err: resp.Error}
		}
	}

	if resp.Error != nil {
		return &domain.UpstreamError{StatusCode: 200, Body: resp.Error.Error()}
	}

	if result == nil || len(resp.Result) == 0 {
		return nil
	}

	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}

	return nil
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (i *ZabbixIntegration) post(ctx context.Context, method string, params any) (rpcResponse, error) {
	if params == nil {
		params = map[string]any{}
	}

	var resp rpcResponse

	err := i.session.DoJSON(ctx, i.config, managers.Request{
		Method: "POST",
		Path:   rpcPath,
		Body: map[string]any{
			"jsonrpc": "2.0",
			"method":  method,
			"params":  params,
			"id":      i.requestID.Add(1),
		},
	}, &resp)
	if err != nil {
		return rpcResponse{}, err
	}

	return resp, nil
}

type problem struct {
	EventID  string `json:"eventid"`
	Name     string `json:"name"`
	Severity string `json:"severity"`
	Clock    string `json:"clock"`
	Ack      string `json:"acknowledged"`
}

// Problems lists current problems newest first with per-severity counts.
func (i *ZabbixIntegration) Problems(ctx context.Context, params domain.GetDataParams) (domain.MetricResult, error) {
	var problems []problem

	err := i.rpc(ctx, "problem.get", map[string]any{
		"output":    "extend",
		"recent":    false,
		"sortfield": []string{"eventid"},
		"sortorder": "DESC",
		"limit":     problemLimit,
	}, &problems)
	if err != nil {
		return domain.MetricResult{}, err
	}

	bySeverity := map[string]int{}
	entries := make([]map[string]any, 0, len(problems))

	for _, p := range problems {
		severity := severityNames[p.Severity]
		if severity == "" {
			severity = "not_classified"
		}

		bySeverity[severity]++

		entries = append(entries, map[string]any{
			"eventId":      p.EventID,
			"name":         p.Name,
			"severity":     severity,
			"clock":        p.Clock,
			"acknowledged": p.Ack == "1",
		})
	}

	return domain.NewMetricResult(map[string]any{
		"total":      len(entries),
		"bySeverity": bySeverity,
		"problems":   entries,
	}, nil), nil
}

type host struct {
	HostID     string `json:"hostid"`
	Host       string `json:"host"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Interfaces []struct {
		Type      string `json:"type"`
		Available string `json:"available"`
	} `json:"interfaces"`
}

// HostAvailability reports monitored hosts with their interface
// availability rolled up to available, unavailable or unknown.
func (i *ZabbixIntegration) HostAvailability(ctx context.Context, params domain.GetDataParams) (domain.MetricResult, error) {
	var hosts []host

	err := i.rpc(ctx, "host.get", map[string]any{
		"output":           []string{"hostid", "host", "name", "status"},
		"selectInterfaces": []string{"type", "available"},
		"filter":           map[string]any{"status": "0"},
	}, &hosts)
	if err != nil {
		return domain.MetricResult{}, err
	}

	available, unavailable, unknown := 0, 0, 0
	entries := make([]map[string]any, 0, len(hosts))

	for _, h := range hosts {
		availability := hostAvailability(h)

		switch availability {
		case "available":
			available++
		case "unavailable":
			unavailable++
		default:
			unknown++
		}

		entries = append(entries, map[string]any{
			"hostId":       h.HostID,
			"host":         h.Host,
			"name":         h.Name,
			"availability": availability,
		})
	}

	return domain.NewMetricResult(map[string]any{
		"total":       len(entries),
		"available":   available,
		"unavailable": unavailable,
		"unknown":     unknown,
		"hosts":       entries,
	}, nil), nil
}

func hostAvailability(h host) string {
	for _, iface := range h.Interfaces {
		switch iface.Available {
		case "1":
			return "available"
		case "2":
			return "unavailable"
		}
	}

	return "unknown"
}

package proxmox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/pulseboard/pulseboard/internal/managers"
	"github.com/pulseboard/pulseboard/pkg/domain"

	"github.com/rs/zerolog/log"
)

const (
	ProxmoxMetricType_NodeStatus      domain.MetricType = "node-status"
	ProxmoxMetricType_VirtualMachines domain.MetricType = "virtual-machines"

	ProxmoxActionType_VMStart  domain.ActionType = "vm-start"
	ProxmoxActionType_VMStop   domain.ActionType = "vm-stop"
	ProxmoxActionType_VMReboot domain.ActionType = "vm-reboot"
)

const (
	authCookieName = "PVEAuthCookie"
	csrfHeaderName = "CSRFPreventionToken"

	// PVE tickets are valid for two hours server-side; cache for less so a
	// ticket is never served near its real expiry.
	ticketTTL = 90 * time.Minute

	// Enrichment bounds for the virtual-machines metric.
	maxTrackedVMs    = 20
	enrichConcurrent = 4
)

var actionTypes = []domain.ActionType{
	ProxmoxActionType_VMReboot,
	ProxmoxActionType_VMStart,
	ProxmoxActionType_VMStop,
}

type ProxmoxIntegrationCreator struct {
	deps domain.IntegrationDeps
}

func NewProxmoxIntegrationCreator(deps domain.IntegrationDeps) domain.IntegrationCreator {
	return &ProxmoxIntegrationCreator{deps: deps}
}

func (c *ProxmoxIntegrationCreator) CreateIntegration(ctx context.Context, p domain.CreateIntegrationParams) (domain.IntegrationExecutor, error) {
	return NewProxmoxIntegration(ctx, ProxmoxIntegrationDependencies{
		Config: p.Config,
		Deps:   c.deps,
	})
}

type ProxmoxIntegration struct {
	config  domain.IntegrationConfig
	node    string
	session *managers.SessionClient

	metricManager *domain.MetricHandlerManager
}

type ProxmoxIntegrationDependencies struct {
	Config domain.IntegrationConfig
	Deps   domain.IntegrationDeps
}

// NewTicketStrategy builds the form-login strategy for the PVE ticket
// endpoint. The ticket arrives in the JSON body rather than a Set-Cookie
// header, together with the CSRF prevention token write calls must echo.
func NewTicketStrategy(provider domain.HTTPClientProvider) managers.SessionCookieStrategy {
	return managers.SessionCookieStrategy{
		HTTPClientProvider: provider,
		CookieName:         authCookieName,
		TTL:                ticketTTL,
		LoginURL: func(config domain.IntegrationConfig) string {
			return config.BaseURL() + "/api2/json/access/ticket"
		},
		BuildForm: func(config domain.IntegrationConfig) url.Values {
			return url.Values{
				"username": []string{config.Username},
				"password": []string{config.Password},
			}
		},
		ExtractSession: func(resp *http.Response, body []byte) (string, map[string]string, error) {
			var ticketResp struct {
				Data struct {
					Ticket    string `json:"ticket"`
					CSRFToken string `json:"CSRFPreventionToken"`
				} `json:"data"`
			}

			if err := json.Unmarshal(body, &ticketResp); err != nil {
				return "", nil, fmt.Errorf("failed to decode ticket response: %w", err)
			}

			if ticketResp.Data.Ticket == "" {
				return "", nil, fmt.Errorf("ticket response did not contain a ticket")
			}

			cookie := fmt.Sprintf("%s=%s", authCookieName, ticketResp.Data.Ticket)

			return cookie, map[string]string{csrfHeaderName: ticketResp.Data.CSRFToken}, nil
		},
	}
}

func NewProxmoxIntegration(ctx context.Context, deps ProxmoxIntegrationDependencies) (*ProxmoxIntegration, error) {
	if deps.Config.Username == "" || deps.Config.Password == "" {
		return nil, &domain.ConfigurationError{Field: "username"}
	}

	node := deps.Config.Extra["node"]
	if node == "" {
		return nil, &domain.ConfigurationError{Field: "node"}
	}

	authenticator := managers.NewSessionAuthenticator(managers.SessionAuthenticatorDependencies{
		Cache:    deps.Deps.CredentialCache,
		Strategy: NewTicketStrategy(deps.Deps.HTTPClientProvider),
	})

	integration := &ProxmoxIntegration{
		config: deps.Config,
		node:   node,
		session: managers.NewSessionClient(managers.SessionClientDependencies{
			Authenticator:      authenticator,
			HTTPClientProvider: deps.Deps.HTTPClientProvider,
			ApplyCredential:    managers.ApplyCookie,
		}),
	}

	integration.metricManager = domain.NewMetricHandlerManager().
		Add(ProxmoxMetricType_NodeStatus, integration.NodeStatus).
		Add(ProxmoxMetricType_VirtualMachines, integration.VirtualMachines)

	return integration, nil
}

func (i *ProxmoxIntegration) GetData(ctx context.Context, params domain.GetDataParams) (domain.MetricResult, error) {
	return i.metricManager.Run(ctx, params.MetricType, params)
}

func (i *ProxmoxIntegration) NodeStatus(ctx context.Context, params domain.GetDataParams) (domain.MetricResult, error) {
	var statusResp struct {
		Data struct {
			Uptime  int64     `json:"uptime"`
			CPU     float64   `json:"cpu"`
			LoadAvg []any     `json:"loadavg"`
			Memory  memoryUse `json:"memory"`
			RootFS  memoryUse `json:"rootfs"`
		} `json:"data"`
	}

	err := i.session.DoJSON(ctx, i.config, managers.Request{
		Method: "GET",
		Path:   fmt.Sprintf("/api2/json/nodes/%s/status", i.node),
	}, &statusResp)
	if err != nil {
		return domain.MetricResult{}, err
	}

	return domain.NewMetricResult(map[string]any{
		"node":    i.node,
		"uptime":  statusResp.Data.Uptime,
		"cpu":     statusResp.Data.CPU,
		"loadavg": statusResp.Data.LoadAvg,
		"memory":  statusResp.Data.Memory,
		"rootfs":  statusResp.Data.RootFS,
	}, nil), nil
}

type memoryUse struct {
	Total int64 `json:"total"`
	Used  int64 `json:"used"`
}

type vmSummary struct {
	VMID   int64  `json:"vmid"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// VirtualMachines lists the node's VMs and enriches each with its current
// resource usage. The listing is required; a failed per-VM detail call only
// degrades that VM's entry. Enrichment is capped to bound upstream load.
func (i *ProxmoxIntegration) VirtualMachines(ctx context.Context, params domain.GetDataParams) (domain.MetricResult, error) {
	var listResp struct {
		Data []vmSummary `json:"data"`
	}

	err := i.session.DoJSON(ctx, i.config, managers.Request{
		Method: "GET",
		Path:   fmt.Sprintf("/api2/json/nodes/%s/qemu", i.node),
	}, &listResp)
	if err != nil {
		return domain.MetricResult{}, err
	}

	vms := listResp.Data

	sort.Slice(vms, func(a, b int) bool { return vms[a].VMID < vms[b].VMID })

	if len(vms) > maxTrackedVMs {
		vms = vms[:maxTrackedVMs]
	}

	outcomes := domain.EnrichEach(ctx, vms, enrichConcurrent, func(ctx context.Context, vm vmSummary) (map[string]any, error) {
		var currentResp struct {
			Data map[string]any `json:"data"`
		}

		err := i.session.DoJSON(ctx, i.config, managers.Request{
			Method: "GET",
			Path:   fmt.Sprintf("/api2/json/nodes/%s/qemu/%d/status/current", i.node, vm.VMID),
		}, &currentResp)
		if err != nil {
			return nil, err
		}

		return currentResp.Data, nil
	})

	var warnings []domain.Warning

	entries := make([]map[string]any, 0, len(outcomes))
	running := 0

	for _, outcome := range outcomes {
		entry := map[string]any{
			"vmid":   outcome.Item.VMID,
			"name":   outcome.Item.Name,
			"status": outcome.Item.Status,
		}

		if outcome.Item.Status == "running" {
			running++
		}

		if outcome.Err != nil {
			warnings = append(warnings, domain.Warning{
				Source:  fmt.Sprintf("vm-%d", outcome.Item.VMID),
				Message: outcome.Err.Error(),
			})

			log.Warn().Err(outcome.Err).Int64("vmid", outcome.Item.VMID).Msg("VM detail fetch degraded")
		} else {
			entry["cpu"] = outcome.Detail["cpu"]
			entry["mem"] = outcome.Detail["mem"]
			entry["maxmem"] = outcome.Detail["maxmem"]
			entry["uptime"] = outcome.Detail["uptime"]
		}

		entries = append(entries, entry)
	}

	return domain.NewMetricResult(map[string]any{
		"node":    i.node,
		"total":   len(listResp.Data),
		"running": running,
		"vms":     entries,
	}, warnings), nil
}

// PerformAction powers VMs on and off. Unknown actions and upstream
// failures come back as structured results, never as errors.
func (i *ProxmoxIntegration) PerformAction(ctx context.Context, params domain.PerformActionParams) domain.ActionResult {
	var operation string

	switch params.ActionType {
	case ProxmoxActionType_VMStart:
		operation = "start"
	case ProxmoxActionType_VMStop:
		operation = "stop"
	case ProxmoxActionType_VMReboot:
		operation = "reboot"
	default:
		unknownErr := &domain.UnknownActionError{Action: params.ActionType, Known: actionTypes}

		return domain.ActionResult{Success: false, Message: unknownErr.Error()}
	}

	vmid, ok := vmidParam(params.Params)
	if !ok {
		return domain.ActionResult{Success: false, Message: "missing required parameter: vmid"}
	}

	var taskResp struct {
		Data string `json:"data"`
	}

	err := i.session.DoJSON(ctx, i.config, managers.Request{
		Method: "POST",
		Path:   fmt.Sprintf("/api2/json/nodes/%s/qemu/%d/status/%s", i.node, vmid, operation),
	}, &taskResp)
	if err != nil {
		return domain.ActionResult{Success: false, Message: err.Error()}
	}

	return domain.ActionResult{
		Success: true,
		Message: fmt.Sprintf("%s requested for VM %d", operation, vmid),
		Data:    map[string]any{"task": taskResp.Data},
	}
}

func vmidParam(params map[string]any) (int64, bool) {
	switch v := params["vmid"].(type) {
	case float64:
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	}

	return 0, false
}

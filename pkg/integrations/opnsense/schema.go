package opnsense

import (
	"github.com/pulseboard/pulseboard/pkg/domain"
)

var (
	Schema = schema

	schema = domain.Integration{
		ID:                domain.IntegrationType_OPNsense,
		Name:              "OPNsense",
		Description:       "Firewall and router. Shows gateway health and system state, with raw API access.",
		AuthVariant:       domain.AuthVariantStatic,
		CanTestConnection: true,
		CredentialProperties: []domain.CredentialProperty{
			{
				Key:         "host",
				Name:        "Host",
				Description: "Hostname or IP of the firewall",
				Required:    true,
				Type:        domain.PropertyType_String,
			},
			{
				Key:         "port",
				Name:        "Port",
				Description: "Web UI port (default 443)",
				Required:    false,
				Type:        domain.PropertyType_Number,
			},
			{
				Key:         "api_key",
				Name:        "API Key",
				Description: "Key from System > Access > Users",
				Required:    true,
				Type:        domain.PropertyType_Password,
			},
			{
				Key:         "api_secret",
				Name:        "API Secret",
				Description: "Secret paired with the API key",
				Required:    true,
				Type:        domain.PropertyType_Password,
			},
		},
		Metrics: []domain.IntegrationMetric{
			{
				ID:          "gateways",
				MetricType:  OPNsenseMetricType_Gateways,
				Name:        "Gateways",
				Description: "Per-gateway reachability with delay and loss",
				WidgetTypes: []string{"list", "stat"},
			},
			{
				ID:          "firewall-overview",
				MetricType:  OPNsenseMetricType_FirewallOverview,
				Name:        "Firewall Overview",
				Description: "System resources, running services and firmware state",
				WidgetTypes: []string{"stat"},
			},
		},
		Capabilities: []domain.Capability{
			{
				ID:          "get_firmware_status",
				Name:        "Firmware Status",
				Method:      "GET",
				Endpoint:    "/api/core/firmware/status",
				Implemented: true,
				Category:    "system",
			},
			{
				ID:          "get_gateway_status",
				Name:        "Gateway Status",
				Method:      "GET",
				Endpoint:    "/api/routes/gateway/status",
				Implemented: true,
				Category:    "network",
			},
			{
				ID:          "get_system_resources",
				Name:        "System Resources",
				Method:      "GET",
				Endpoint:    "/api/diagnostics/system/systemResources",
				Implemented: true,
				Category:    "monitoring",
			},
			{
				ID:          "search_services",
				Name:        "Search Services",
				Method:      "POST",
				Endpoint:    "/api/core/service/search",
				Implemented: true,
				Category:    "system",
			},
			{
				ID:          "get_interface_statistics",
				Name:        "Interface Statistics",
				Method:      "GET",
				Endpoint:    "/api/diagnostics/interface/getInterfaceStatistics",
				Implemented: true,
				Category:    "network",
			},
			{
				ID:          "restart_service",
				Name:        "Restart Service",
				Method:      "POST",
				Endpoint:    "/api/core/service/restart/{name}",
				Implemented: true,
				Category:    "actions",
				Parameters: []domain.CapabilityParameter{
					{Name: "name", Type: "string", Required: true, Description: "Service name, e.g. unbound"},
				},
			},
			{
				ID:          "get_firewall_log",
				Name:        "Firewall Log",
				Method:      "GET",
				Endpoint:    "/api/diagnostics/firewall/log",
				Implemented: false,
				Category:    "logs",
			},
		},
	}
)

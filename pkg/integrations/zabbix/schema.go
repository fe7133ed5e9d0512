package zabbix

import (
	"github.com/pulseboard/pulseboard/pkg/domain"
)

var (
	Schema = schema

	schema = domain.Integration{
		ID:                domain.IntegrationType_Zabbix,
		Name:              "Zabbix",
		Description:       "Infrastructure monitoring. Shows open problems and host availability.",
		AuthVariant:       domain.AuthVariantBearerExchange,
		CanTestConnection: true,
		CredentialProperties: []domain.CredentialProperty{
			{
				Key:         "host",
				Name:        "Host",
				Description: "Hostname or IP of the Zabbix frontend",
				Required:    true,
				Type:        domain.PropertyType_String,
			},
			{
				Key:         "port",
				Name:        "Port",
				Description: "Frontend port (default 443)",
				Required:    false,
				Type:        domain.PropertyType_Number,
			},
			{
				Key:         "username",
				Name:        "Username",
				Description: "API user name",
				Required:    true,
				Type:        domain.PropertyType_String,
			},
			{
				Key:         "password",
				Name:        "Password",
				Description: "API user password",
				Required:    true,
				Type:        domain.PropertyType_Password,
			},
		},
		Metrics: []domain.IntegrationMetric{
			{
				ID:          "problems",
				MetricType:  ZabbixMetricType_Problems,
				Name:        "Problems",
				Description: "Open problems newest first with per-severity counts",
				WidgetTypes: []string{"list", "stat"},
			},
			{
				ID:          "host-availability",
				MetricType:  ZabbixMetricType_HostAvailability,
				Name:        "Host Availability",
				Description: "Monitored hosts rolled up by interface availability",
				WidgetTypes: []string{"stat", "list"},
			},
		},
		Capabilities: []domain.Capability{
			{
				ID:          "problem_get",
				Name:        "Get Problems",
				Method:      "POST",
				Endpoint:    "problem.get",
				Implemented: true,
				Category:    "monitoring",
			},
			{
				ID:          "host_get",
				Name:        "Get Hosts",
				Method:      "POST",
				Endpoint:    "host.get",
				Implemented: true,
				Category:    "monitoring",
			},
			{
				ID:          "trigger_get",
				Name:        "Get Triggers",
				Method:      "POST",
				Endpoint:    "trigger.get",
				Implemented: false,
				Category:    "monitoring",
			},
			{
				ID:          "event_acknowledge",
				Name:        "Acknowledge Event",
				Method:      "POST",
				Endpoint:    "event.acknowledge",
				Implemented: false,
				Category:    "actions",
			},
		},
	}
)

package kasa

import (
	"github.com/pulseboard/pulseboard/pkg/domain"
)

var (
	Schema = schema

	schema = domain.Integration{
		ID:                domain.IntegrationType_Kasa,
		Name:              "TP-Link Kasa",
		Description:       "Smart home devices through the Kasa cloud. Shows device and energy state, with relay control.",
		AuthVariant:       domain.AuthVariantKeygenExchange,
		CanTestConnection: true,
		CredentialProperties: []domain.CredentialProperty{
			{
				Key:         "host",
				Name:        "Cloud Host",
				Description: "Kasa cloud endpoint (default wap.tplinkcloud.com)",
				Required:    false,
				Type:        domain.PropertyType_String,
			},
			{
				Key:         "username",
				Name:        "Email",
				Description: "Kasa cloud account email",
				Required:    true,
				Type:        domain.PropertyType_String,
			},
			{
				Key:         "password",
				Name:        "Password",
				Description: "Kasa cloud account password",
				Required:    true,
				Type:        domain.PropertyType_Password,
			},
		},
		Metrics: []domain.IntegrationMetric{
			{
				ID:          "devices",
				MetricType:  KasaMetricType_Devices,
				Name:        "Devices",
				Description: "All devices on the account with online and relay state",
				WidgetTypes: []string{"list", "stat"},
			},
			{
				ID:          "energy",
				MetricType:  KasaMetricType_Energy,
				Name:        "Energy",
				Description: "Realtime power draw with day and month consumption per energy-monitoring device",
				WidgetTypes: []string{"stat", "gauge"},
			},
		},
		Actions: []domain.IntegrationAction{
			{
				ID:          "power-on",
				ActionType:  KasaActionType_PowerOn,
				Name:        "Power On",
				Description: "Switch a device relay on",
				Parameters: []domain.CapabilityParameter{
					{Name: "deviceId", Type: "string", Required: true, Description: "Cloud device id"},
				},
			},
			{
				ID:          "power-off",
				ActionType:  KasaActionType_PowerOff,
				Name:        "Power Off",
				Description: "Switch a device relay off",
				Parameters: []domain.CapabilityParameter{
					{Name: "deviceId", Type: "string", Required: true, Description: "Cloud device id"},
				},
			},
		},
		Capabilities: []domain.Capability{
			{
				ID:          "get_device_list",
				Name:        "List Devices",
				Method:      "POST",
				Endpoint:    "getDeviceList",
				Implemented: true,
				Category:    "devices",
			},
			{
				ID:          "get_sysinfo",
				Name:        "Device Info",
				Method:      "POST",
				Endpoint:    "passthrough:system.get_sysinfo",
				Implemented: true,
				Category:    "devices",
			},
			{
				ID:          "get_emeter_realtime",
				Name:        "Realtime Energy",
				Method:      "POST",
				Endpoint:    "passthrough:emeter.get_realtime",
				Implemented: true,
				Category:    "energy",
			},
			{
				ID:          "set_relay_state",
				Name:        "Set Relay State",
				Method:      "POST",
				Endpoint:    "passthrough:system.set_relay_state",
				Implemented: true,
				Category:    "actions",
				Parameters: []domain.CapabilityParameter{
					{Name: "deviceId", Type: "string", Required: true, Description: "Cloud device id"},
					{Name: "state", Type: "number", Required: true, Description: "1 for on, 0 for off"},
				},
			},
			{
				ID:          "get_emeter_daystat",
				Name:        "Daily Energy Stats",
				Method:      "POST",
				Endpoint:    "passthrough:emeter.get_daystat",
				Implemented: true,
				Category:    "energy",
			},
			{
				ID:          "get_emeter_monthstat",
				Name:        "Monthly Energy Stats",
				Method:      "POST",
				Endpoint:    "passthrough:emeter.get_monthstat",
				Implemented: true,
				Category:    "energy",
			},
		},
	}
)

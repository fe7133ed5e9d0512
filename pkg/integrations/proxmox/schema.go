package proxmox

import (
	"github.com/pulseboard/pulseboard/pkg/domain"
)

var (
	Schema = schema

	schema = domain.Integration{
		ID:                domain.IntegrationType_Proxmox,
		Name:              "Proxmox VE",
		Description:       "Virtualization host. Shows node load and virtual machines, with power control.",
		AuthVariant:       domain.AuthVariantSessionCookie,
		CanTestConnection: true,
		CredentialProperties: []domain.CredentialProperty{
			{
				Key:         "host",
				Name:        "Host",
				Description: "Hostname or IP of the Proxmox server",
				Required:    true,
				Type:        domain.PropertyType_String,
			},
			{
				Key:         "port",
				Name:        "Port",
				Description: "API port (default 8006)",
				Required:    false,
				Type:        domain.PropertyType_Number,
			},
			{
				Key:         "username",
				Name:        "Username",
				Description: "User with realm, e.g. monitor@pve",
				Required:    true,
				Type:        domain.PropertyType_String,
			},
			{
				Key:         "password",
				Name:        "Password",
				Description: "Password for the user",
				Required:    true,
				Type:        domain.PropertyType_Password,
			},
			{
				Key:         "node",
				Name:        "Node",
				Description: "Name of the node to monitor",
				Required:    true,
				Type:        domain.PropertyType_String,
			},
		},
		Metrics: []domain.IntegrationMetric{
			{
				ID:          "node-status",
				MetricType:  ProxmoxMetricType_NodeStatus,
				Name:        "Node Status",
				Description: "Uptime, CPU, load and memory of the node",
				WidgetTypes: []string{"stat", "gauge"},
			},
			{
				ID:          "virtual-machines",
				MetricType:  ProxmoxMetricType_VirtualMachines,
				Name:        "Virtual Machines",
				Description: "VM list with per-VM resource usage",
				WidgetTypes: []string{"list"},
			},
		},
		Actions: []domain.IntegrationAction{
			{
				ID:          "vm-start",
				ActionType:  ProxmoxActionType_VMStart,
				Name:        "Start VM",
				Description: "Start a stopped virtual machine",
				Parameters: []domain.CapabilityParameter{
					{Name: "vmid", Type: "number", Required: true, Description: "Numeric VM id"},
				},
			},
			{
				ID:          "vm-stop",
				ActionType:  ProxmoxActionType_VMStop,
				Name:        "Stop VM",
				Description: "Stop a running virtual machine",
				Parameters: []domain.CapabilityParameter{
					{Name: "vmid", Type: "number", Required: true, Description: "Numeric VM id"},
				},
			},
			{
				ID:          "vm-reboot",
				ActionType:  ProxmoxActionType_VMReboot,
				Name:        "Reboot VM",
				Description: "Reboot a running virtual machine",
				Parameters: []domain.CapabilityParameter{
					{Name: "vmid", Type: "number", Required: true, Description: "Numeric VM id"},
				},
			},
		},
		Capabilities: []domain.Capability{
			{
				ID:          "get_version",
				Name:        "API Version",
				Method:      "GET",
				Endpoint:    "/api2/json/version",
				Implemented: true,
				Category:    "system",
			},
			{
				ID:          "get_node_status",
				Name:        "Node Status",
				Method:      "GET",
				Endpoint:    "/api2/json/nodes/{node}/status",
				Implemented: true,
				Category:    "monitoring",
			},
			{
				ID:          "get_qemu",
				Name:        "List QEMU VMs",
				Method:      "GET",
				Endpoint:    "/api2/json/nodes/{node}/qemu",
				Implemented: true,
				Category:    "virtualization",
			},
			{
				ID:          "get_qemu_current",
				Name:        "VM Current Status",
				Method:      "GET",
				Endpoint:    "/api2/json/nodes/{node}/qemu/{vmid}/status/current",
				Implemented: true,
				Category:    "virtualization",
			},
			{
				ID:          "post_qemu_power",
				Name:        "VM Power Control",
				Method:      "POST",
				Endpoint:    "/api2/json/nodes/{node}/qemu/{vmid}/status/{command}",
				Implemented: true,
				Category:    "actions",
				Parameters: []domain.CapabilityParameter{
					{Name: "command", Type: "string", Required: true, Description: "start, stop or reboot"},
				},
			},
			{
				ID:          "get_lxc",
				Name:        "List Containers",
				Method:      "GET",
				Endpoint:    "/api2/json/nodes/{node}/lxc",
				Implemented: false,
				Category:    "virtualization",
			},
			{
				ID:          "get_storage",
				Name:        "Storage Status",
				Method:      "GET",
				Endpoint:    "/api2/json/nodes/{node}/storage",
				Implemented: false,
				Category:    "monitoring",
			},
		},
	}
)

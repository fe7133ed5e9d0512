package radarr

import (
	"github.com/pulseboard/pulseboard/pkg/domain"
)

var (
	Schema = schema

	schema = domain.Integration{
		ID:                domain.IntegrationType_Radarr,
		Name:              "Radarr",
		Description:       "Movie library manager. Shows library size, download queue and health issues.",
		AuthVariant:       domain.AuthVariantStatic,
		CanTestConnection: true,
		CredentialProperties: []domain.CredentialProperty{
			{
				Key:         "host",
				Name:        "Host",
				Description: "Hostname or IP of the Radarr server",
				Required:    true,
				Type:        domain.PropertyType_String,
			},
			{
				Key:         "port",
				Name:        "Port",
				Description: "Port of the Radarr server (default 7878)",
				Required:    false,
				Type:        domain.PropertyType_Number,
			},
			{
				Key:         "api_key",
				Name:        "API Key",
				Description: "API key from Settings > General",
				Required:    true,
				Type:        domain.PropertyType_Password,
			},
		},
		Metrics: []domain.IntegrationMetric{
			{
				ID:          "library",
				MetricType:  RadarrMetricType_Library,
				Name:        "Library",
				Description: "Movie counts, disk usage, download queue and health checks",
				WidgetTypes: []string{"stat", "list"},
			},
			{
				ID:          "activity",
				MetricType:  RadarrMetricType_Activity,
				Name:        "Activity",
				Description: "Recent history and active downloads, newest first",
				WidgetTypes: []string{"timeline"},
			},
		},
		Capabilities: []domain.Capability{
			{
				ID:               "get_movies",
				Name:             "List Movies",
				Method:           "GET",
				Endpoint:         "/api/v3/movie",
				Implemented:      true,
				Category:         "library",
				DocumentationURL: "https://radarr.video/docs/api/#/Movie/get_api_v3_movie",
			},
			{
				ID:          "get_queue",
				Name:        "Download Queue",
				Method:      "GET",
				Endpoint:    "/api/v3/queue",
				Implemented: true,
				Category:    "activity",
			},
			{
				ID:          "get_history",
				Name:        "History",
				Method:      "GET",
				Endpoint:    "/api/v3/history",
				Implemented: true,
				Category:    "activity",
			},
			{
				ID:          "get_health",
				Name:        "Health Checks",
				Method:      "GET",
				Endpoint:    "/api/v3/health",
				Implemented: true,
				Category:    "system",
			},
			{
				ID:          "get_system_status",
				Name:        "System Status",
				Method:      "GET",
				Endpoint:    "/api/v3/system/status",
				Implemented: true,
				Category:    "system",
			},
			{
				ID:          "get_diskspace",
				Name:        "Disk Space",
				Method:      "GET",
				Endpoint:    "/api/v3/diskspace",
				Implemented: false,
				Category:    "system",
			},
			{
				ID:          "post_command",
				Name:        "Run Command",
				Method:      "POST",
				Endpoint:    "/api/v3/command",
				Implemented: false,
				Category:    "actions",
				Parameters: []domain.CapabilityParameter{
					{Name: "name", Type: "string", Required: true, Description: "Command name, e.g. MoviesSearch"},
				},
			},
		},
	}
)

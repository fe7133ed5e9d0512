package slack

import (
	"github.com/pulseboard/pulseboard/pkg/domain"
)

var (
	Schema = schema

	schema = domain.Integration{
		ID:                domain.IntegrationType_Slack,
		Name:              "Slack",
		Description:       "Workspace chat. Shows channel overview and posts messages from widgets.",
		AuthVariant:       domain.AuthVariantStatic,
		CanTestConnection: true,
		CredentialProperties: []domain.CredentialProperty{
			{
				Key:         "api_key",
				Name:        "Bot Token",
				Description: "Bot token starting with xoxb-",
				Required:    true,
				Type:        domain.PropertyType_Password,
			},
		},
		Metrics: []domain.IntegrationMetric{
			{
				ID:          "channels",
				MetricType:  SlackMetricType_Channels,
				Name:        "Channels",
				Description: "Public channels sorted by member count, with team profile",
				WidgetTypes: []string{"list"},
			},
			{
				ID:          "team",
				MetricType:  SlackMetricType_Team,
				Name:        "Team",
				Description: "Workspace profile and the authed bot identity",
				WidgetTypes: []string{"stat"},
			},
		},
		Actions: []domain.IntegrationAction{
			{
				ID:          "post-message",
				ActionType:  SlackActionType_PostMessage,
				Name:        "Post Message",
				Description: "Post a text message to a channel",
				Parameters: []domain.CapabilityParameter{
					{Name: "channel", Type: "string", Required: true, Description: "Channel id or name"},
					{Name: "text", Type: "string", Required: true, Description: "Message text"},
				},
			},
		},
		Capabilities: []domain.Capability{
			{
				ID:          "auth_test",
				Name:        "Auth Test",
				Method:      "POST",
				Endpoint:    "auth.test",
				Implemented: true,
				Category:    "system",
			},
			{
				ID:          "conversations_list",
				Name:        "List Conversations",
				Method:      "GET",
				Endpoint:    "conversations.list",
				Implemented: true,
				Category:    "channels",
			},
			{
				ID:          "team_info",
				Name:        "Team Info",
				Method:      "GET",
				Endpoint:    "team.info",
				Implemented: true,
				Category:    "system",
			},
			{
				ID:          "chat_post_message",
				Name:        "Post Message",
				Method:      "POST",
				Endpoint:    "chat.postMessage",
				Implemented: true,
				Category:    "actions",
			},
			{
				ID:          "users_list",
				Name:        "List Users",
				Method:      "GET",
				Endpoint:    "users.list",
				Implemented: false,
				Category:    "users",
			},
		},
	}
)

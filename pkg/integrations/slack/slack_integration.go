package slack

import (
	"context"
	"fmt"
	"sort"

	"github.com/pulseboard/pulseboard/internal/managers"
	"github.com/pulseboard/pulseboard/pkg/domain"

	"github.com/slack-go/slack"
)

const (
	SlackMetricType_Channels domain.MetricType = "channels"
	SlackMetricType_Team     domain.MetricType = "team"

	SlackActionType_PostMessage domain.ActionType = "post-message"
)

const channelPageSize = 100

var actionTypes = []domain.ActionType{
	SlackActionType_PostMessage,
}

type SlackIntegrationCreator struct {
	deps domain.IntegrationDeps
}

func NewSlackIntegrationCreator(deps domain.IntegrationDeps) domain.IntegrationCreator {
	return &SlackIntegrationCreator{deps: deps}
}

func (c *SlackIntegrationCreator) CreateIntegration(ctx context.Context, p domain.CreateIntegrationParams) (domain.IntegrationExecutor, error) {
	return NewSlackIntegration(ctx, SlackIntegrationDependencies{
		Config: p.Config,
		Deps:   c.deps,
	})
}

type SlackIntegration struct {
	config        domain.IntegrationConfig
	authenticator domain.SessionAuthenticator
	httpProvider  domain.HTTPClientProvider

	metricManager *domain.MetricHandlerManager
}

type SlackIntegrationDependencies struct {
	Config domain.IntegrationConfig
	Deps   domain.IntegrationDeps
}

func NewSlackIntegration(ctx context.Context, deps SlackIntegrationDependencies) (*SlackIntegration, error) {
	if deps.Config.APIKey == "" {
		return nil, &domain.ConfigurationError{Field: "api_key"}
	}

	integration := &SlackIntegration{
		config: deps.Config,
		authenticator: managers.NewSessionAuthenticator(managers.SessionAuthenticatorDependencies{
			Cache:    deps.Deps.CredentialCache,
			Strategy: managers.StaticTokenStrategy{Kind: domain.CredentialKindBearerToken},
		}),
		httpProvider: deps.Deps.HTTPClientProvider,
	}

	integration.metricManager = domain.NewMetricHandlerManager().
		Add(SlackMetricType_Channels, integration.Channels).
		Add(SlackMetricType_Team, integration.Team)

	return integration, nil
}

// client resolves the token through the credential cache so Slack follows
// the same lifecycle as the session-based services, then hands it to the
// SDK with the shared upstream HTTP client.
func (i *SlackIntegration) client(ctx context.Context) (*slack.Client, error) {
	credential, err := i.authenticator.EnsureCredential(ctx, i.config)
	if err != nil {
		return nil, err
	}

	return slack.New(
		credential.Material,
		slack.OptionHTTPClient(i.httpProvider.GetHTTPClient(i.config)),
	), nil
}

func (i *SlackIntegration) GetData(ctx context.Context, params domain.GetDataParams) (domain.MetricResult, error) {
	return i.metricManager.Run(ctx, params.MetricType, params)
}

// Channels aggregates the workspace channel list with the team profile. The
// conversation listing is required; the team lookup only annotates it.
func (i *SlackIntegration) Channels(ctx context.Context, params domain.GetDataParams) (domain.MetricResult, error) {
	client, err := i.client(ctx)
	if err != nil {
		return domain.MetricResult{}, err
	}

	calls := []domain.SubCall{
		{
			Name: "conversations",
			Run: func(ctx context.Context) (any, error) {
				channels, _, err := client.GetConversationsContext(ctx, &slack.GetConversationsParameters{
					ExcludeArchived: true,
					Limit:           channelPageSize,
					Types:           []string{"public_channel"},
				})
				if err != nil {
					return nil, wrapSlackError(err)
				}

				sort.Slice(channels, func(a, b int) bool {
					return channels[a].NumMembers > channels[b].NumMembers
				})

				entries := make([]map[string]any, 0, len(channels))
				for _, channel := range channels {
					entries = append(entries, map[string]any{
						"id":         channel.ID,
						"name":       channel.Name,
						"numMembers": channel.NumMembers,
						"topic":      channel.Topic.Value,
					})
				}

				return map[string]any{"total": len(entries), "channels": entries}, nil
			},
		},
		{
			Name:     "team",
			Optional: true,
			Fallback: map[string]any{},
			Run: func(ctx context.Context) (any, error) {
				info, err := client.GetTeamInfoContext(ctx)
				if err != nil {
					return nil, wrapSlackError(err)
				}

				return map[string]any{"name": info.Name, "domain": info.Domain}, nil
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

// Team reports the workspace profile and the authed bot identity.
func (i *SlackIntegration) Team(ctx context.Context, params domain.GetDataParams) (domain.MetricResult, error) {
	client, err := i.client(ctx)
	if err != nil {
		return domain.MetricResult{}, err
	}

	authResp, err := client.AuthTestContext(ctx)
	if err != nil {
		return domain.MetricResult{}, wrapSlackError(err)
	}

	info, err := client.GetTeamInfoContext(ctx)
	if err != nil {
		return domain.MetricResult{}, wrapSlackError(err)
	}

	return domain.NewMetricResult(map[string]any{
		"team":   info.Name,
		"domain": info.Domain,
		"bot":    authResp.User,
		"url":    authResp.URL,
	}, nil), nil
}

// PerformAction posts a message to a channel.
func (i *SlackIntegration) PerformAction(ctx context.Context, params domain.PerformActionParams) domain.ActionResult {
	if params.ActionType != SlackActionType_PostMessage {
		unknownErr := &domain.UnknownActionError{Action: params.ActionType, Known: actionTypes}

		return domain.ActionResult{Success: false, Message: unknownErr.Error()}
	}

	channel, _ := params.Params["channel"].(string)
	text, _ := params.Params["text"].(string)

	if channel == "" || text == "" {
		return domain.ActionResult{Success: false, Message: "missing required parameters: channel, text"}
	}

	client, err := i.client(ctx)
	if err != nil {
		return domain.ActionResult{Success: false, Message: err.Error()}
	}

	_, timestamp, err := client.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false))
	if err != nil {
		return domain.ActionResult{Success: false, Message: wrapSlackError(err).Error()}
	}

	return domain.ActionResult{
		Success: true,
		Message: fmt.Sprintf("message posted to %s", channel),
		Data:    map[string]any{"channel": channel, "ts": timestamp},
	}
}

// wrapSlackError maps the SDK's in-band auth failures onto the shared
// taxonomy so callers treat them like a 401.
func wrapSlackError(err error) error {
	if err == nil {
		return nil
	}

	switch err.Error() {
	case "invalid_auth", "not_authed", "account_inactive":
		return &domain.AuthenticationError{Reason: domain.AuthFailureInvalidCredentials, Err: err}
	case "token_expired", "token_revoked":
		return &domain.AuthenticationError{Reason: domain.AuthFailureTokenExpired, Err: err}
	case "missing_scope", "not_allowed_token_type":
		return &domain.AuthenticationError{Reason: domain.AuthFailureForbidden, Err: err}
	}

	return domain.WrapTransportError(err)
}

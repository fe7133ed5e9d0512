package slack

import (
	"context"
	"fmt"

	"github.com/pulseboard/pulseboard/pkg/domain"

	"github.com/rs/zerolog/log"
)

type SlackConnectionTester struct {
	deps domain.IntegrationDeps
}

func NewSlackConnectionTester(deps domain.IntegrationDeps) domain.IntegrationConnectionTester {
	return &SlackConnectionTester{deps: deps}
}

func (c *SlackConnectionTester) TestConnection(ctx context.Context, params domain.ConnectionTestParams) domain.ConnectionTestResult {
	log.Info().Str("instance", params.Config.ID).Msg("testing connection to Slack")

	integration, err := NewSlackIntegration(ctx, SlackIntegrationDependencies{
		Config: params.Config,
		Deps:   c.deps,
	})
	if err != nil {
		return domain.TestResultFromError(err)
	}

	client, err := integration.client(ctx)
	if err != nil {
		return domain.TestResultFromError(err)
	}

	authResp, err := client.AuthTestContext(ctx)
	if err != nil {
		log.Warn().Err(err).Str("instance", params.Config.ID).Msg("Slack connection test failed")

		return domain.TestResultFromError(wrapSlackError(err))
	}

	return domain.ConnectionTestResult{
		Success: true,
		Message: fmt.Sprintf("authenticated as %s in %s", authResp.User, authResp.Team),
		Details: map[string]any{"team": authResp.Team, "user": authResp.User, "url": authResp.URL},
	}
}

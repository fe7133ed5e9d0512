package radarr

import (
	"context"
	"fmt"

	"github.com/pulseboard/pulseboard/internal/managers"
	"github.com/pulseboard/pulseboard/pkg/domain"

	"github.com/rs/zerolog/log"
)

type RadarrConnectionTester struct {
	deps domain.IntegrationDeps
}

func NewRadarrConnectionTester(deps domain.IntegrationDeps) domain.IntegrationConnectionTester {
	return &RadarrConnectionTester{deps: deps}
}

func (c *RadarrConnectionTester) TestConnection(ctx context.Context, params domain.ConnectionTestParams) domain.ConnectionTestResult {
	log.Info().Str("instance", params.Config.ID).Msg("testing connection to Radarr")

	integration, err := NewRadarrIntegration(ctx, RadarrIntegrationDependencies{
		Config: params.Config,
		Deps:   c.deps,
	})
	if err != nil {
		return domain.TestResultFromError(err)
	}

	var status struct {
		AppName string `json:"appName"`
		Version string `json:"version"`
	}

	err = integration.session.DoJSON(ctx, params.Config, managers.Request{Method: "GET", Path: "/api/v3/system/status"}, &status)
	if err != nil {
		log.Warn().Err(err).Str("instance", params.Config.ID).Msg("Radarr connection test failed")

		return domain.TestResultFromError(err)
	}

	return domain.ConnectionTestResult{
		Success: true,
		Message: fmt.Sprintf("connected to %s %s", status.AppName, status.Version),
		Details: map[string]any{"version": status.Version},
	}
}

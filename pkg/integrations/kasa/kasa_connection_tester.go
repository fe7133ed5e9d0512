package kasa

import (
	"context"
	"fmt"

	"github.com/pulseboard/pulseboard/pkg/domain"

	"github.com/rs/zerolog/log"
)

type KasaConnectionTester struct {
	deps domain.IntegrationDeps
}

func NewKasaConnectionTester(deps domain.IntegrationDeps) domain.IntegrationConnectionTester {
	return &KasaConnectionTester{deps: deps}
}

func (c *KasaConnectionTester) TestConnection(ctx context.Context, params domain.ConnectionTestParams) domain.ConnectionTestResult {
	log.Info().Str("instance", params.Config.ID).Msg("testing connection to Kasa cloud")

	integration, err := NewKasaIntegration(ctx, KasaIntegrationDependencies{
		Config: params.Config,
		Deps:   c.deps,
	})
	if err != nil {
		return domain.TestResultFromError(err)
	}

	devices, err := integration.deviceList(ctx)
	if err != nil {
		log.Warn().Err(err).Str("instance", params.Config.ID).Msg("Kasa connection test failed")

		return domain.TestResultFromError(err)
	}

	return domain.ConnectionTestResult{
		Success: true,
		Message: fmt.Sprintf("signed in, %d device(s) on the account", len(devices)),
		Details: map[string]any{"deviceCount": len(devices)},
	}
}

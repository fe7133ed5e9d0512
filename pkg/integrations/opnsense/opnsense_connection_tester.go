package opnsense

import (
	"context"
	"fmt"

	"github.com/pulseboard/pulseboard/internal/managers"
	"github.com/pulseboard/pulseboard/pkg/domain"

	"github.com/rs/zerolog/log"
)

type OPNsenseConnectionTester struct {
	deps domain.IntegrationDeps
}

func NewOPNsenseConnectionTester(deps domain.IntegrationDeps) domain.IntegrationConnectionTester {
	return &OPNsenseConnectionTester{deps: deps}
}

func (c *OPNsenseConnectionTester) TestConnection(ctx context.Context, params domain.ConnectionTestParams) domain.ConnectionTestResult {
	log.Info().Str("instance", params.Config.ID).Msg("testing connection to OPNsense")

	integration, err := NewOPNsenseIntegration(ctx, OPNsenseIntegrationDependencies{
		Config: params.Config,
		Deps:   c.deps,
	})
	if err != nil {
		return domain.TestResultFromError(err)
	}

	var firmwareResp struct {
		ProductName    string `json:"product_name"`
		ProductVersion string `json:"product_version"`
	}

	err = integration.session.DoJSON(ctx, params.Config, managers.Request{
		Method: "GET",
		Path:   "/api/core/firmware/status",
	}, &firmwareResp)
	if err != nil {
		log.Warn().Err(err).Str("instance", params.Config.ID).Msg("OPNsense connection test failed")

		return domain.TestResultFromError(err)
	}

	return domain.ConnectionTestResult{
		Success: true,
		Message: fmt.Sprintf("connected to %s %s", firmwareResp.ProductName, firmwareResp.ProductVersion),
		Details: map[string]any{"product": firmwareResp.ProductName, "version": firmwareResp.ProductVersion},
	}
}

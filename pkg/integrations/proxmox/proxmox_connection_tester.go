package proxmox

import (
	"context"
	"fmt"

	"github.com/pulseboard/pulseboard/internal/managers"
	"github.com/pulseboard/pulseboard/pkg/domain"

	"github.com/rs/zerolog/log"
)

type ProxmoxConnectionTester struct {
	deps domain.IntegrationDeps
}

func NewProxmoxConnectionTester(deps domain.IntegrationDeps) domain.IntegrationConnectionTester {
	return &ProxmoxConnectionTester{deps: deps}
}

func (c *ProxmoxConnectionTester) TestConnection(ctx context.Context, params domain.ConnectionTestParams) domain.ConnectionTestResult {
	log.Info().Str("instance", params.Config.ID).Msg("testing connection to Proxmox VE")

	integration, err := NewProxmoxIntegration(ctx, ProxmoxIntegrationDependencies{
		Config: params.Config,
		Deps:   c.deps,
	})
	if err != nil {
		return domain.TestResultFromError(err)
	}

	var versionResp struct {
		Data struct {
			Version string `json:"version"`
			Release string `json:"release"`
		} `json:"data"`
	}

	err = integration.session.DoJSON(ctx, params.Config, managers.Request{Method: "GET", Path: "/api2/json/version"}, &versionResp)
	if err != nil {
		log.Warn().Err(err).Str("instance", params.Config.ID).Msg("Proxmox connection test failed")

		return domain.TestResultFromError(err)
	}

	return domain.ConnectionTestResult{
		Success: true,
		Message: fmt.Sprintf("connected to Proxmox VE %s", versionResp.Data.Version),
		Details: map[string]any{"version": versionResp.Data.Version, "release": versionResp.Data.Release},
	}
}

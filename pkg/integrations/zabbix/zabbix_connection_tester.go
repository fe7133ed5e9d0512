package zabbix

import (
	"context"
	"fmt"

	"github.com/pulseboard/pulseboard/pkg/domain"

	"github.com/rs/zerolog/log"
)

type ZabbixConnectionTester struct {
	deps domain.IntegrationDeps
}

func NewZabbixConnectionTester(deps domain.IntegrationDeps) domain.IntegrationConnectionTester {
	return &ZabbixConnectionTester{deps: deps}
}

func (c *ZabbixConnectionTester) TestConnection(ctx context.Context, params domain.ConnectionTestParams) domain.ConnectionTestResult {
	log.Info().Str("instance", params.Config.ID).Msg("testing connection to Zabbix")

	integration, err := NewZabbixIntegration(ctx, ZabbixIntegrationDependencies{
		Config: params.Config,
		Deps:   c.deps,
	})
	if err != nil {
		return domain.TestResultFromError(err)
	}

	// host.get with countOutput exercises the full login plus an authed
	// call without pulling host details.
	var hostCount string

	err = integration.rpc(ctx, "host.get", map[string]any{"countOutput": true}, &hostCount)
	if err != nil {
		log.Warn().Err(err).Str("instance", params.Config.ID).Msg("Zabbix connection test failed")

		return domain.TestResultFromError(err)
	}

	return domain.ConnectionTestResult{
		Success: true,
		Message: fmt.Sprintf("signed in, %s host(s) monitored", hostCount),
		Details: map[string]any{"hostCount": hostCount},
	}
}

package main

import (
	"context"

	"github.com/pulseboard/pulseboard/pkg/domain"
	"github.com/pulseboard/pulseboard/pkg/integrations/kasa"
	"github.com/pulseboard/pulseboard/pkg/integrations/opnsense"
	"github.com/pulseboard/pulseboard/pkg/integrations/proxmox"
	"github.com/pulseboard/pulseboard/pkg/integrations/radarr"
	"github.com/pulseboard/pulseboard/pkg/integrations/slack"
	"github.com/pulseboard/pulseboard/pkg/integrations/zabbix"

	"github.com/rs/zerolog/log"
)

type IntegrationRegisterParams struct {
	IntegrationType     domain.IntegrationType
	Schema              domain.Integration
	NewCreator          func(deps domain.IntegrationDeps) domain.IntegrationCreator
	NewConnectionTester func(deps domain.IntegrationDeps) domain.IntegrationConnectionTester
}

var integrationRegisterParams = []IntegrationRegisterParams{
	{
		IntegrationType:     domain.IntegrationType_Radarr,
		Schema:              radarr.Schema,
		NewCreator:          radarr.NewRadarrIntegrationCreator,
		NewConnectionTester: radarr.NewRadarrConnectionTester,
	},
	{
		IntegrationType:     domain.IntegrationType_Proxmox,
		Schema:              proxmox.Schema,
		NewCreator:          proxmox.NewProxmoxIntegrationCreator,
		NewConnectionTester: proxmox.NewProxmoxConnectionTester,
	},
	{
		IntegrationType:     domain.IntegrationType_Kasa,
		Schema:              kasa.Schema,
		NewCreator:          kasa.NewKasaIntegrationCreator,
		NewConnectionTester: kasa.NewKasaConnectionTester,
	},
	{
		IntegrationType:     domain.IntegrationType_Slack,
		Schema:              slack.Schema,
		NewCreator:          slack.NewSlackIntegrationCreator,
		NewConnectionTester: slack.NewSlackConnectionTester,
	},
	{
		IntegrationType:     domain.IntegrationType_OPNsense,
		Schema:              opnsense.Schema,
		NewCreator:          opnsense.NewOPNsenseIntegrationCreator,
		NewConnectionTester: opnsense.NewOPNsenseConnectionTester,
	},
	{
		IntegrationType:     domain.IntegrationType_Zabbix,
		Schema:              zabbix.Schema,
		NewCreator:          zabbix.NewZabbixIntegrationCreator,
		NewConnectionTester: zabbix.NewZabbixConnectionTester,
	},
}

type RegisterIntegrationParams struct {
	IntegrationSelector domain.IntegrationSelector
	Deps                domain.IntegrationDeps
}

func RegisterIntegrations(ctx context.Context, p RegisterIntegrationParams) error {
	integrationSelector := p.IntegrationSelector
	commonDeps := p.Deps

	for _, params := range integrationRegisterParams {
		integrationSelector.RegisterSchema(params.Schema)

		if params.NewCreator != nil {
			log.Info().Msgf("Registering creator for %s", params.IntegrationType)

			creator := params.NewCreator(commonDeps)
			integrationSelector.RegisterCreator(params.IntegrationType, creator)
		}

		if params.NewConnectionTester != nil {
			log.Info().Msgf("Registering connection tester for %s", params.IntegrationType)

			connectionTester := params.NewConnectionTester(commonDeps)
			integrationSelector.RegisterConnectionTester(params.IntegrationType, connectionTester)
		}
	}

	return nil
}

package main

import (
	"context"

	"github.com/pulseboard/pulseboard/internal/controllers"
	"github.com/pulseboard/pulseboard/internal/managers"
	"github.com/pulseboard/pulseboard/pkg/domain"

	"github.com/rs/zerolog/log"
)

// Dependencies contains everything the HTTP server needs.
type Dependencies struct {
	IntegrationSelector domain.IntegrationSelector
	InstanceStore       domain.InstanceStore
	DashboardController *controllers.DashboardController
}

// BuildDependencies creates and wires up the credential cache, HTTP client
// provider, adapter registry and controller.
func BuildDependencies(ctx context.Context, config *Config) (*Dependencies, error) {
	log.Info().Msg("Building dependencies")

	integrationSelector := domain.NewIntegrationSelector()

	credentialCache := managers.NewCredentialCache(managers.CredentialCacheOptions{
		SafetyBuffer: config.CredentialSafetyBuffer,
	})

	httpClientProvider := managers.NewHTTPClientProvider(config.UpstreamTimeout)

	integrationDeps := domain.IntegrationDeps{
		CredentialCache:    credentialCache,
		HTTPClientProvider: httpClientProvider,
	}

	if err := RegisterIntegrations(ctx, RegisterIntegrationParams{
		IntegrationSelector: integrationSelector,
		Deps:                integrationDeps,
	}); err != nil {
		return nil, err
	}

	instanceConfigs := make([]domain.IntegrationConfig, 0, len(config.Instances))

	for _, instance := range config.Instances {
		instanceConfig := instance.DomainConfig()

		schema, err := integrationSelector.SelectSchema(ctx, domain.SelectIntegrationParams{
			IntegrationType: instanceConfig.Type,
		})
		if err != nil {
			return nil, err
		}

		// The auth variant is declared by the adapter, never by the user.
		instanceConfig.AuthVariant = schema.AuthVariant

		instanceConfigs = append(instanceConfigs, instanceConfig)
	}

	instanceStore := managers.NewInstanceStore(instanceConfigs)

	dashboardController := controllers.NewDashboardController(controllers.DashboardControllerDependencies{
		IntegrationSelector: integrationSelector,
		InstanceStore:       instanceStore,
	})

	log.Info().Int("instances", len(instanceConfigs)).Msg("Dependencies built successfully")

	return &Dependencies{
		IntegrationSelector: integrationSelector,
		InstanceStore:       instanceStore,
		DashboardController: dashboardController,
	}, nil
}

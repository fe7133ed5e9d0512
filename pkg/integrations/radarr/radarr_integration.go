package radarr

import (
	"context"
	"fmt"
	"net/url"

	"github.com/pulseboard/pulseboard/internal/managers"
	"github.com/pulseboard/pulseboard/pkg/domain"
)

const (
	RadarrMetricType_Library  domain.MetricType = "library"
	RadarrMetricType_Activity domain.MetricType = "activity"
)

const apiKeyHeader = "X-Api-Key"

type RadarrIntegrationCreator struct {
	deps domain.IntegrationDeps
}

func NewRadarrIntegrationCreator(deps domain.IntegrationDeps) domain.IntegrationCreator {
	return &RadarrIntegrationCreator{deps: deps}
}

func (c *RadarrIntegrationCreator) CreateIntegration(ctx context.Context, p domain.CreateIntegrationParams) (domain.IntegrationExecutor, error) {
	return NewRadarrIntegration(ctx, RadarrIntegrationDependencies{
		Config: p.Config,
		Deps:   c.deps,
	})
}

type RadarrIntegration struct {
	config  domain.IntegrationConfig
	session *managers.SessionClient

	metricManager *domain.MetricHandlerManager
}

type RadarrIntegrationDependencies struct {
	Config domain.IntegrationConfig
	Deps   domain.IntegrationDeps
}

func NewRadarrIntegration(ctx context.Context, deps RadarrIntegrationDependencies) (*RadarrIntegration, error) {
	if deps.Config.APIKey == "" {
		return nil, &domain.ConfigurationError{Field: "api_key"}
	}

	authenticator := managers.NewSessionAuthenticator(managers.SessionAuthenticatorDependencies{
		Cache:    deps.Deps.CredentialCache,
		Strategy: managers.StaticTokenStrategy{Kind: domain.CredentialKindAPIKey},
	})

	integration := &RadarrIntegration{
		config: deps.Config,
		session: managers.NewSessionClient(managers.SessionClientDependencies{
			Authenticator:      authenticator,
			HTTPClientProvider: deps.Deps.HTTPClientProvider,
			ApplyCredential:    managers.ApplyHeaderKey(apiKeyHeader),
		}),
	}

	integration.metricManager = domain.NewMetricHandlerManager().
		Add(RadarrMetricType_Library, integration.Library).
		Add(RadarrMetricType_Activity, integration.Activity)

	return integration, nil
}

func (i *RadarrIntegration) GetData(ctx context.Context, params domain.GetDataParams) (domain.MetricResult, error) {
	return i.metricManager.Run(ctx, params.MetricType, params)
}

type movie struct {
	ID         int64 `json:"id"`
	HasFile    bool  `json:"hasFile"`
	Monitored  bool  `json:"monitored"`
	SizeOnDisk int64 `json:"sizeOnDisk"`
}

type queuePage struct {
	TotalRecords int              `json:"totalRecords"`
	Records      []map[string]any `json:"records"`
}

type historyPage struct {
	Records []map[string]any `json:"records"`
}

type healthCheck struct {
	Source  string `json:"source"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Library aggregates the movie library summary with the download queue and
// health checks. The library itself is required; queue and health degrade to
// empty defaults when their calls fail.
func (i *RadarrIntegration) Library(ctx context.Context, params domain.GetDataParams) (domain.MetricResult, error) {
	calls := []domain.SubCall{
		{
			Name: "movies",
			Run: func(ctx context.Context) (any, error) {
				var movies []movie

				err := i.session.DoJSON(ctx, i.config, managers.Request{Method: "GET", Path: "/api/v3/movie"}, &movies)
				if err != nil {
					return nil, err
				}

				summary := map[string]any{
					"total":      len(movies),
					"downloaded": 0,
					"missing":    0,
					"sizeOnDisk": int64(0),
				}

				downloaded, missing := 0, 0
				var size int64

				for _, m := range movies {
					if m.HasFile {
						downloaded++
						size += m.SizeOnDisk
					} else if m.Monitored {
						missing++
					}
				}

				summary["downloaded"] = downloaded
				summary["missing"] = missing
				summary["sizeOnDisk"] = size

				return summary, nil
			},
		},
		{
			Name:     "queue",
			Optional: true,
			Fallback: map[string]any{"totalRecords": 0, "records": []map[string]any{}},
			Run: func(ctx context.Context) (any, error) {
				var page queuePage

				err := i.session.DoJSON(ctx, i.config, managers.Request{
					Method: "GET",
					Path:   "/api/v3/queue",
					Query:  url.Values{"pageSize": []string{"10"}},
				}, &page)
				if err != nil {
					return nil, err
				}

				return map[string]any{"totalRecords": page.TotalRecords, "records": page.Records}, nil
			},
		},
		{
			Name:     "health",
			Optional: true,
			Fallback: []healthCheck{},
			Run: func(ctx context.Context) (any, error) {
				var checks []healthCheck

				err := i.session.DoJSON(ctx, i.config, managers.Request{Method: "GET", Path: "/api/v3/health"}, &checks)
				if err != nil {
					return nil, err
				}

				return checks, nil
			},
		},
	}

	outcomes := domain.FanOut(ctx, calls, 3)

	data, warnings, err := domain.Reduce(outcomes)
	if err != nil {
		return domain.MetricResult{}, err
	}

	return domain.NewMetricResult(data, warnings), nil
}

// Activity merges recent history with the active queue into one event list
// ordered by date descending, id as tie-break.
func (i *RadarrIntegration) Activity(ctx context.Context, params domain.GetDataParams) (domain.MetricResult, error) {
	calls := []domain.SubCall{
		{
			Name: "history",
			Run: func(ctx context.Context) (any, error) {
				var page historyPage

				err := i.session.DoJSON(ctx, i.config, managers.Request{
					Method: "GET",
					Path:   "/api/v3/history",
					Query:  url.Values{"pageSize": []string{"20"}, "sortKey": []string{"date"}, "sortDirection": []string{"descending"}},
				}, &page)
				if err != nil {
					return nil, err
				}

				return page.Records, nil
			},
		},
		{
			Name:     "queue",
			Optional: true,
			Fallback: []map[string]any{},
			Run: func(ctx context.Context) (any, error) {
				var page queuePage

				err := i.session.DoJSON(ctx, i.config, managers.Request{
					Method: "GET",
					Path:   "/api/v3/queue",
					Query:  url.Values{"pageSize": []string{"20"}},
				}, &page)
				if err != nil {
					return nil, err
				}

				return page.Records, nil
			},
		},
	}

	outcomes := domain.FanOut(ctx, calls, 2)

	data, warnings, err := domain.Reduce(outcomes)
	if err != nil {
		return domain.MetricResult{}, err
	}

	history, ok := data["history"].([]map[string]any)
	if !ok {
		return domain.MetricResult{}, fmt.Errorf("unexpected history payload shape")
	}

	queue, _ := data["queue"].([]map[string]any)

	events := domain.MergeSortedByTime([][]map[string]any{history, queue}, "date", "id")

	return domain.NewMetricResult(map[string]any{"events": events}, warnings), nil
}

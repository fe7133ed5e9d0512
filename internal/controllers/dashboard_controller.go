package controllers

import (
	"errors"

	"github.com/pulseboard/pulseboard/pkg/domain"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
)

// DashboardController handles widget-facing requests: the integration
// catalog, connection tests, metric reads, actions and raw capability calls.
type DashboardController struct {
	selector  domain.IntegrationSelector
	instances domain.InstanceStore
}

type DashboardControllerDependencies struct {
	IntegrationSelector domain.IntegrationSelector
	InstanceStore       domain.InstanceStore
}

func NewDashboardController(deps DashboardControllerDependencies) *DashboardController {
	return &DashboardController{
		selector:  deps.IntegrationSelector,
		instances: deps.InstanceStore,
	}
}

// ListIntegrations serves the full adapter catalog.
func (c *DashboardController) ListIntegrations(ctx fiber.Ctx) error {
	return ctx.JSON(fiber.Map{"integrations": c.selector.Schemas()})
}

// ListMetrics serves the metric catalog of one integration type.
func (c *DashboardController) ListMetrics(ctx fiber.Ctx) error {
	schema, err := c.selector.SelectSchema(ctx.RequestCtx(), domain.SelectIntegrationParams{
		IntegrationType: domain.IntegrationType(ctx.Params("type")),
	})
	if err != nil {
		return errorResponse(ctx, err)
	}

	return ctx.JSON(fiber.Map{"integration": schema.ID, "metrics": schema.Metrics})
}

// ListCapabilities serves the capability catalog of one integration type,
// implemented and unimplemented entries alike.
func (c *DashboardController) ListCapabilities(ctx fiber.Ctx) error {
	schema, err := c.selector.SelectSchema(ctx.RequestCtx(), domain.SelectIntegrationParams{
		IntegrationType: domain.IntegrationType(ctx.Params("type")),
	})
	if err != nil {
		return errorResponse(ctx, err)
	}

	return ctx.JSON(fiber.Map{"integration": schema.ID, "capabilities": schema.Capabilities})
}

// TestInstance runs the connection test of a configured instance. The result
// is always 200 with a structured body; only a missing instance or type is a
// transport-level error.
func (c *DashboardController) TestInstance(ctx fiber.Ctx) error {
	config, ok := c.instances.GetInstance(ctx.Params("id"))
	if !ok {
		return errorResponse(ctx, domain.ErrInstanceNotFound)
	}

	tester, err := c.selector.SelectConnectionTester(ctx.RequestCtx(), domain.SelectIntegrationParams{
		IntegrationType: config.Type,
	})
	if err != nil {
		return errorResponse(ctx, err)
	}

	requestID := xid.New().String()

	log.Info().
		Str("request_id", requestID).
		Str("instance", config.ID).
		Str("integration", string(config.Type)).
		Msg("running connection test")

	result := tester.TestConnection(ctx.RequestCtx(), domain.ConnectionTestParams{Config: config})

	return ctx.JSON(result)
}

// GetMetric fetches one metric from a configured instance. Query parameters
// pass through to the adapter untouched.
func (c *DashboardController) GetMetric(ctx fiber.Ctx) error {
	config, ok := c.instances.GetInstance(ctx.Params("id"))
	if !ok {
		return errorResponse(ctx, domain.ErrInstanceNotFound)
	}

	executor, err := c.createExecutor(ctx, config)
	if err != nil {
		return errorResponse(ctx, err)
	}

	requestID := xid.New().String()
	metricType := domain.MetricType(ctx.Params("metric"))

	log.Info().
		Str("request_id", requestID).
		Str("instance", config.ID).
		Str("metric", string(metricType)).
		Msg("fetching metric")

	result, err := executor.GetData(ctx.RequestCtx(), domain.GetDataParams{
		Config:     config,
		MetricType: metricType,
		Params:     queryParams(ctx),
	})
	if err != nil {
		log.Warn().
			Err(err).
			Str("request_id", requestID).
			Str("instance", config.ID).
			Str("metric", string(metricType)).
			Msg("metric fetch failed")

		return errorResponse(ctx, err)
	}

	return ctx.JSON(fiber.Map{
		"success":  true,
		"data":     result.Data,
		"warnings": result.Warnings,
		"partial":  result.Partial,
	})
}

// PerformAction runs one of the instance's cataloged actions. Action
// failures come back as 200 with success=false; only routing-level problems
// map to error statuses.
func (c *DashboardController) PerformAction(ctx fiber.Ctx) error {
	config, ok := c.instances.GetInstance(ctx.Params("id"))
	if !ok {
		return errorResponse(ctx, domain.ErrInstanceNotFound)
	}

	executor, err := c.createExecutor(ctx, config)
	if err != nil {
		return errorResponse(ctx, err)
	}

	actionExecutor, ok := executor.(domain.IntegrationActionExecutor)
	if !ok {
		return fiber.NewError(fiber.StatusNotImplemented, "integration does not support actions")
	}

	var body struct {
		Params map[string]any `json:"params"`
	}

	if len(ctx.Body()) > 0 {
		if err := ctx.Bind().Body(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}

	requestID := xid.New().String()
	actionType := domain.ActionType(ctx.Params("action"))

	log.Info().
		Str("request_id", requestID).
		Str("instance", config.ID).
		Str("action", string(actionType)).
		Msg("performing action")

	result := actionExecutor.PerformAction(ctx.RequestCtx(), domain.PerformActionParams{
		Config:     config,
		ActionType: actionType,
		Params:     body.Params,
	})

	return ctx.JSON(result)
}

// InvokeCapability executes a cataloged endpoint on an instance. The
// capability must exist in the catalog and be marked implemented before the
// adapter sees it.
func (c *DashboardController) InvokeCapability(ctx fiber.Ctx) error {
	config, ok := c.instances.GetInstance(ctx.Params("id"))
	if !ok {
		return errorResponse(ctx, domain.ErrInstanceNotFound)
	}

	schema, err := c.selector.SelectSchema(ctx.RequestCtx(), domain.SelectIntegrationParams{
		IntegrationType: config.Type,
	})
	if err != nil {
		return errorResponse(ctx, err)
	}

	capabilityID := ctx.Params("capabilityId")

	var capability *domain.Capability
	for idx := range schema.Capabilities {
		if schema.Capabilities[idx].ID == capabilityID {
			capability = &schema.Capabilities[idx]
			break
		}
	}

	if capability == nil {
		return fiber.NewError(fiber.StatusNotFound, "unknown capability "+capabilityID)
	}

	if !capability.Implemented {
		return fiber.NewError(fiber.StatusNotImplemented, "capability "+capabilityID+" is cataloged but not implemented")
	}

	executor, err := c.createExecutor(ctx, config)
	if err != nil {
		return errorResponse(ctx, err)
	}

	invoker, ok := executor.(domain.IntegrationCapabilityInvoker)
	if !ok {
		return fiber.NewError(fiber.StatusNotImplemented, "integration does not support raw capability calls")
	}

	var body struct {
		Params map[string]any `json:"params"`
	}

	if len(ctx.Body()) > 0 {
		if err := ctx.Bind().Body(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}

	requestID := xid.New().String()

	log.Info().
		Str("request_id", requestID).
		Str("instance", config.ID).
		Str("capability", capabilityID).
		Msg("invoking capability")

	result := invoker.InvokeCapability(ctx.RequestCtx(), domain.InvokeCapabilityParams{
		Config:       config,
		CapabilityID: capability.ID,
		Method:       capability.Method,
		Endpoint:     capability.Endpoint,
		Params:       body.Params,
	})

	return ctx.JSON(result)
}

func (c *DashboardController) createExecutor(ctx fiber.Ctx, config domain.IntegrationConfig) (domain.IntegrationExecutor, error) {
	creator, err := c.selector.SelectCreator(ctx.RequestCtx(), domain.SelectIntegrationParams{
		IntegrationType: config.Type,
	})
	if err != nil {
		return nil, err
	}

	return creator.CreateIntegration(ctx.RequestCtx(), domain.CreateIntegrationParams{Config: config})
}

func queryParams(ctx fiber.Ctx) map[string]any {
	queries := ctx.Queries()
	if len(queries) == 0 {
		return nil
	}

	params := make(map[string]any, len(queries))
	for name, value := range queries {
		params[name] = value
	}

	return params
}

// errorResponse maps the shared error taxonomy onto HTTP statuses with a
// structured body the dashboard can categorize.
func errorResponse(ctx fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError

	var configErr *domain.ConfigurationError
	var unknownMetricErr *domain.UnknownMetricError
	var unknownActionErr *domain.UnknownActionError

	switch {
	case errors.Is(err, domain.ErrIntegrationNotFound), errors.Is(err, domain.ErrInstanceNotFound):
		status = fiber.StatusNotFound
	case errors.As(err, &unknownMetricErr), errors.As(err, &unknownActionErr):
		status = fiber.StatusNotFound
	case errors.As(err, &configErr):
		status = fiber.StatusBadRequest
	default:
		switch domain.Categorize(err) {
		case domain.ErrorCategoryAuthentication:
			status = fiber.StatusBadGateway
		case domain.ErrorCategoryNetwork:
			status = fiber.StatusBadGateway
		case domain.ErrorCategoryUpstream:
			status = fiber.StatusBadGateway
		}
	}

	return ctx.Status(status).JSON(fiber.Map{
		"success": false,
		"error": fiber.Map{
			"category": domain.Categorize(err),
			"message":  err.Error(),
		},
	})
}

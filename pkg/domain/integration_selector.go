package domain

import (
	"context"
	"fmt"
	"sort"
)

type SelectIntegrationParams struct {
	IntegrationType IntegrationType
}

type IntegrationSelector interface {
	SelectCreator(ctx context.Context, params SelectIntegrationParams) (IntegrationCreator, error)
	RegisterCreator(integrationType IntegrationType, creator IntegrationCreator)
	SelectConnectionTester(ctx context.Context, params SelectIntegrationParams) (IntegrationConnectionTester, error)
	RegisterConnectionTester(integrationType IntegrationType, connectionTester IntegrationConnectionTester)
	SelectSchema(ctx context.Context, params SelectIntegrationParams) (Integration, error)
	RegisterSchema(schema Integration)
	Schemas() []Integration
}

type integrationSelector struct {
	creatorsByType          map[IntegrationType]IntegrationCreator
	connectionTestersByType map[IntegrationType]IntegrationConnectionTester
	schemasByType           map[IntegrationType]Integration
}

func NewIntegrationSelector() IntegrationSelector {
	return &integrationSelector{
		creatorsByType:          make(map[IntegrationType]IntegrationCreator),
		connectionTestersByType: make(map[IntegrationType]IntegrationConnectionTester),
		schemasByType:           make(map[IntegrationType]Integration),
	}
}

func (s *integrationSelector) RegisterCreator(integrationType IntegrationType, creator IntegrationCreator) {
	s.creatorsByType[integrationType] = creator
}

func (s *integrationSelector) SelectCreator(ctx context.Context, params SelectIntegrationParams) (IntegrationCreator, error) {
	creator, ok := s.creatorsByType[params.IntegrationType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIntegrationNotFound, params.IntegrationType)
	}

	return creator, nil
}

func (s *integrationSelector) RegisterConnectionTester(integrationType IntegrationType, connectionTester IntegrationConnectionTester) {
	s.connectionTestersByType[integrationType] = connectionTester
}

func (s *integrationSelector) SelectConnectionTester(ctx context.Context, params SelectIntegrationParams) (IntegrationConnectionTester, error) {
	connectionTester, ok := s.connectionTestersByType[params.IntegrationType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIntegrationNotFound, params.IntegrationType)
	}

	return connectionTester, nil
}

func (s *integrationSelector) RegisterSchema(schema Integration) {
	s.schemasByType[schema.ID] = schema
}

func (s *integrationSelector) SelectSchema(ctx context.Context, params SelectIntegrationParams) (Integration, error) {
	schema, ok := s.schemasByType[params.IntegrationType]
	if !ok {
		return Integration{}, fmt.Errorf("%w: %s", ErrIntegrationNotFound, params.IntegrationType)
	}

	return schema, nil
}

// Schemas returns every registered schema in stable id order, so repeated
// catalog reads are identical.
func (s *integrationSelector) Schemas() []Integration {
	schemas := make([]Integration, 0, len(s.schemasByType))
	for _, schema := range s.schemasByType {
		schemas = append(schemas, schema)
	}

	sort.Slice(schemas, func(i, j int) bool { return schemas[i].ID < schemas[j].ID })

	return schemas
}

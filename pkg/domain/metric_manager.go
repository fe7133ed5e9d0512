package domain

import (
	"context"
	"sort"
	"sync"
)

type MetricHandler func(ctx context.Context, params GetDataParams) (MetricResult, error)

// MetricHandlerManager maps metric types to handlers inside one adapter. The
// registry is built once at adapter construction, so an unknown metric is
// rejected against a concrete, enumerable set.
type MetricHandlerManager struct {
	mtx      sync.RWMutex
	handlers map[MetricType]MetricHandler
}

func NewMetricHandlerManager() *MetricHandlerManager {
	return &MetricHandlerManager{
		handlers: make(map[MetricType]MetricHandler),
	}
}

func (m *MetricHandlerManager) Add(metricType MetricType, handler MetricHandler) *MetricHandlerManager {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.handlers[metricType] = handler

	return m
}

func (m *MetricHandlerManager) Get(metricType MetricType) (MetricHandler, bool) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	handler, ok := m.handlers[metricType]
	return handler, ok
}

// MetricTypes returns the registered metric types in stable sorted order.
func (m *MetricHandlerManager) MetricTypes() []MetricType {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	types := make([]MetricType, 0, len(m.handlers))
	for metricType := range m.handlers {
		types = append(types, metricType)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

func (m *MetricHandlerManager) Run(ctx context.Context, metricType MetricType, params GetDataParams) (MetricResult, error) {
	handler, ok := m.Get(metricType)
	if !ok {
		return MetricResult{}, &UnknownMetricError{Metric: metricType, Known: m.MetricTypes()}
	}

	return handler(ctx, params)
}

package managers

import (
	"sort"

	"github.com/pulseboard/pulseboard/pkg/domain"
)

type instanceStore struct {
	instancesByID map[string]domain.IntegrationConfig
}

// NewInstanceStore wraps the configured integration instances. The store is
// read-only after construction; how the config is persisted is out of scope.
func NewInstanceStore(instances []domain.IntegrationConfig) domain.InstanceStore {
	instancesByID := make(map[string]domain.IntegrationConfig, len(instances))
	for _, instance := range instances {
		instancesByID[instance.ID] = instance
	}

	return &instanceStore{instancesByID: instancesByID}
}

func (s *instanceStore) GetInstance(id string) (domain.IntegrationConfig, bool) {
	instance, ok := s.instancesByID[id]
	return instance, ok
}

func (s *instanceStore) ListInstances() []domain.IntegrationConfig {
	instances := make([]domain.IntegrationConfig, 0, len(s.instancesByID))
	for _, instance := range s.instancesByID {
		instances = append(instances, instance)
	}

	sort.Slice(instances, func(i, j int) bool { return instances[i].ID < instances[j].ID })

	return instances
}

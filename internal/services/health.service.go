package services

import (
	"context"
	"fmt"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthService struct {
	deps map[string]Pinger
}

func NewHealthService(deps map[string]Pinger) *HealthService {
	return &HealthService{deps: deps}
}

// Get returns the first dependency that does not answer.
func (s *HealthService) Get(ctx context.Context) error {
	for name, p := range s.deps {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

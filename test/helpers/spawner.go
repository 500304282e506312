package helpers

import (
	"context"
	"sync"

	"github.com/andrescamacho/fleetd/internal/domain/container"
)

// FakeSpawner records the containers a coordinator asked to start
// without running them
type FakeSpawner struct {
	mu      sync.Mutex
	Started []*container.Container
	Err     error
}

func (s *FakeSpawner) StartContainer(ctx context.Context, c *container.Container) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Started = append(s.Started, c)
	return nil
}

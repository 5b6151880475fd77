package tags

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"memories/storage"
)

const (
	DefaultTopLimit = 10
	MaxTopLimit     = 100
)

// Manager keeps per-tag post counts in sync with the post store.
type Manager struct {
	counter storage.TagCounter
	stats   StatsStorage
}

func NewManager(counter storage.TagCounter, stats StatsStorage) *Manager {
	return &Manager{
		counter: counter,
		stats:   stats,
	}
}

func (m *Manager) Refresh(ctx context.Context, tags []string) error {
	for _, tag := range lo.Uniq(tags) {
		count, err := m.counter.CountTagged(ctx, tag)
		if err != nil {
			return fmt.Errorf("count tag %q: %w", tag, err)
		}
		if err = m.stats.SetCount(ctx, tag, count); err != nil {
			return fmt.Errorf("store tag %q: %w", tag, err)
		}
	}
	return nil
}

func (m *Manager) Top(ctx context.Context, limit int) ([]TagStat, error) {
	switch {
	case limit <= 0:
		limit = DefaultTopLimit
	case limit > MaxTopLimit:
		limit = MaxTopLimit
	}
	return m.stats.Top(ctx, limit)
}

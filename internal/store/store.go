package store

import (
	"context"
	"errors"

	"github.com/seantiz/topoctl/internal/model"
)

var (
	// ErrNotFound is returned when no entity exists for a partition, family and key.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when a concurrent modification is detected at commit time.
	ErrConflict = errors.New("concurrent modification")
)

// WriteMode selects how Put combines an entity with the stored one.
type WriteMode int

const (
	// Merge unions the incoming data with the stored data and keeps the
	// stored status when the incoming one is nil.
	Merge WriteMode = iota
	// Replace overwrites data and status.
	Replace
)

func (m WriteMode) String() string {
	if m == Replace {
		return "replace"
	}
	return "merge"
}

// EntityStats holds entity counts.
type EntityStats struct {
	Total            int            `json:"total"`
	CountByPartition map[string]int `json:"count_by_partition"`
	CountByFamily    map[string]int `json:"count_by_family"`
}

// Store defines the persistence operations for entities. Implementations
// report ErrConflict when a write loses a race with another commit.
type Store interface {
	Get(ctx context.Context, p model.Partition, family, key string) (*model.Entity, error)
	Put(ctx context.Context, p model.Partition, e *model.Entity, mode WriteMode) error
	Remove(ctx context.Context, p model.Partition, family, key string) error
	List(ctx context.Context, p model.Partition, family string, limit, offset int) ([]*model.Entity, int, error)
	Stats(ctx context.Context) (*EntityStats, error)
	Close() error
}

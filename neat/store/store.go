// Package store persists training runs: genomes, population checkpoints and
// per-generation statistics.
package store

import (
	"context"
	"errors"

	"github.com/baldhumanity/flappy-neat/neat"
)

// ErrUnknownRun is returned when a record refers to a run that was never created.
var ErrUnknownRun = errors.New("unknown run")

// Store defines the persistence operations of a training run. Records are scoped by
// a run id returned from CreateRun.
type Store interface {
	Init(ctx context.Context) error
	CreateRun(ctx context.Context, name string) (string, error)
	SaveGenome(ctx context.Context, runID string, g *neat.Genome) error
	GetGenome(ctx context.Context, runID string, key int, config *neat.GenomeConfig) (*neat.Genome, bool, error)
	BestGenome(ctx context.Context, runID string, config *neat.GenomeConfig) (*neat.Genome, bool, error)
	SaveCheckpoint(ctx context.Context, runID string, p *neat.Population) error
	LoadCheckpoint(ctx context.Context, runID string, config *neat.Config, opts ...neat.Option) (*neat.Population, bool, error)
	SaveStats(ctx context.Context, runID string, stats neat.GenerationStats) error
	ListStats(ctx context.Context, runID string) ([]neat.GenerationStats, error)
	Close() error
}

// statsReporter forwards generation statistics to a store.
type statsReporter struct {
	ctx   context.Context
	store Store
	runID string
}

// Reporter returns a neat.Reporter that saves every generation's statistics under runID.
func Reporter(ctx context.Context, s Store, runID string) neat.Reporter {
	return &statsReporter{ctx: ctx, store: s, runID: runID}
}

func (r *statsReporter) Report(stats neat.GenerationStats) error {
	return r.store.SaveStats(r.ctx, r.runID, stats)
}

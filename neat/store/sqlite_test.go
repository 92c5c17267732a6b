package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/flappy-neat/neat"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s := NewSQLiteStore(":memory:")
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testConfig() *neat.Config {
	cfg := neat.DefaultConfig(3, 1)
	cfg.Neat.PopSize = 10
	cfg.Neat.Seed = 7
	cfg.Neat.Workers = 2
	return cfg
}

func constantFitness(_ context.Context, g *neat.Genome) (float64, error) {
	return float64(len(g.Connections)), nil
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	s := NewSQLiteStore(":memory:")
	_, err := s.CreateRun(context.Background(), "x")
	require.Error(t, err)

	require.Error(t, NewSQLiteStore("").Init(context.Background()))
	require.NoError(t, s.Close())
}

func TestSQLiteStoreGenomeRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	cfg := testConfig()

	p, err := neat.NewPopulation(cfg)
	require.NoError(t, err)
	runID, err := s.CreateRun(ctx, "genomes")
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	var best *neat.Genome
	for i, g := range p.Population {
		g.Fitness = float64(i)
		require.NoError(t, s.SaveGenome(ctx, runID, g))
		if best == nil || g.Fitness > best.Fitness || (g.Fitness == best.Fitness && g.Key < best.Key) {
			best = g
		}
	}

	for key, g := range p.Population {
		loaded, ok, err := s.GetGenome(ctx, runID, key, &cfg.Genome)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, g.Key, loaded.Key)
		assert.Equal(t, g.Fitness, loaded.Fitness)
		assert.Equal(t, g.Connections, loaded.Connections)
		assert.Equal(t, g.Nodes, loaded.Nodes)
	}

	top, ok, err := s.BestGenome(ctx, runID, &cfg.Genome)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, best.Key, top.Key)

	_, ok, err = s.GetGenome(ctx, runID, 99999, &cfg.Genome)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStoreUnknownRun(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	cfg := testConfig()
	p, err := neat.NewPopulation(cfg)
	require.NoError(t, err)

	for _, g := range p.Population {
		err := s.SaveGenome(ctx, "missing", g)
		require.ErrorIs(t, err, ErrUnknownRun)
		break
	}
	require.ErrorIs(t, s.SaveStats(ctx, "missing", neat.GenerationStats{}), ErrUnknownRun)
	require.ErrorIs(t, s.SaveCheckpoint(ctx, "missing", p), ErrUnknownRun)
}

func TestSQLiteStoreCheckpointResume(t *testing.T) {
	ctx := context.Background()
	s := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, s.Init(ctx))
	t.Cleanup(func() { _ = s.Close() })

	cfg := testConfig()
	p, err := neat.NewPopulation(cfg)
	require.NoError(t, err)
	runID, err := s.CreateRun(ctx, "checkpoint")
	require.NoError(t, err)

	_, ok, err := s.LoadCheckpoint(ctx, runID, cfg)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = p.RunGeneration(ctx, constantFitness)
	require.NoError(t, err)
	require.NoError(t, s.SaveCheckpoint(ctx, runID, p))

	restored, ok, err := s.LoadCheckpoint(ctx, runID, cfg)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, p.Generation, restored.Generation)
	assert.Equal(t, len(p.Population), len(restored.Population))
	assert.Equal(t, p.Registry.State(), restored.Registry.State())

	// Both continue identically from the shared reseed.
	_, err = p.RunGeneration(ctx, constantFitness)
	require.NoError(t, err)
	_, err = restored.RunGeneration(ctx, constantFitness)
	require.NoError(t, err)
	for key, g := range p.Population {
		r, ok := restored.Population[key]
		require.True(t, ok, "genome %d missing after resume", key)
		assert.Equal(t, g.Connections, r.Connections)
	}
}

func TestSQLiteStoreStatsReporter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	cfg := testConfig()
	cfg.Neat.MaxGenerations = 3
	cfg.Neat.NoFitnessTermination = true

	runID, err := s.CreateRun(ctx, "stats")
	require.NoError(t, err)
	p, err := neat.NewPopulation(cfg, neat.WithReporter(Reporter(ctx, s, runID)))
	require.NoError(t, err)
	_, err = p.Run(ctx, constantFitness)
	require.NoError(t, err)

	stats, err := s.ListStats(ctx, runID)
	require.NoError(t, err)
	require.Len(t, stats, 3)
	for i, st := range stats {
		assert.Equal(t, i, st.Generation)
		assert.Equal(t, cfg.Neat.PopSize, st.PopSize)
	}

	other, err := s.CreateRun(ctx, "empty")
	require.NoError(t, err)
	stats, err = s.ListStats(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, stats)
}

package neat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func speciesWithAdjusted(values ...float64) []*Species {
	out := make([]*Species, len(values))
	for i, v := range values {
		s := NewSpecies(i+1, 0)
		s.AdjustedFitness = v
		out[i] = s
	}
	return out
}

func TestQuotas(t *testing.T) {
	cfg := testConfig(t, 2, 1)
	r := NewReproduction(cfg, quietLogger)

	cfg.Reproduction.MinSpeciesSize = 2
	assert.Equal(t, []int{2, 3, 5}, r.Quotas(speciesWithAdjusted(1, 2, 3), 10))

	cfg.Reproduction.MinSpeciesSize = 1
	assert.Equal(t, []int{4, 3, 3}, r.Quotas(speciesWithAdjusted(5, 5, 5), 10))

	// Negative fitness is shifted, not clipped.
	q := r.Quotas(speciesWithAdjusted(-10, -5, 0), 31)
	assert.Equal(t, 31, q[0]+q[1]+q[2])
	assert.Less(t, q[0], q[1])
	assert.Less(t, q[1], q[2])
	assert.Equal(t, 1, q[0])

	assert.Empty(t, r.Quotas(nil, 10))
}

func TestQuotasAlwaysSumToPopSize(t *testing.T) {
	cfg := testConfig(t, 2, 1)
	r := NewReproduction(cfg, quietLogger)
	rng := testRNG()
	for trial := 0; trial < 200; trial++ {
		n := 1 + rng.Intn(12)
		values := make([]float64, n)
		for i := range values {
			values[i] = rng.NormFloat64() * 10
		}
		popSize := 1 + rng.Intn(200)
		cfg.Reproduction.MinSpeciesSize = 1 + rng.Intn(5)

		q := r.Quotas(speciesWithAdjusted(values...), popSize)
		sum := 0
		for _, v := range q {
			assert.GreaterOrEqual(t, v, 0)
			sum += v
		}
		require.Equal(t, popSize, sum, "values %v", values)
	}
}

func TestReproduceKeepsElitesAndSize(t *testing.T) {
	cfg := testConfig(t, 3, 1)
	cfg.Reproduction.Elitism = 2
	reg := NewRegistry(1)
	rng := testRNG()
	r := NewReproduction(cfg, quietLogger)

	pop, err := r.CreateNewPopulation(20, rng, reg)
	require.NoError(t, err)
	for k, g := range pop {
		g.Fitness = float64(k)
	}
	ss := NewSpeciesSet(&cfg.SpeciesSet, quietLogger)
	ss.Speciate(pop, 0)
	ss.AdjustFitness()
	var species []*Species
	for _, sid := range ss.SortedKeys() {
		species = append(species, ss.Species[sid])
	}

	reg.Reset()
	next, err := r.Reproduce(species, 20, rng, reg)
	require.NoError(t, err)
	assert.Len(t, next, 20)

	// The two fittest of a single species are carried over unchanged.
	if len(species) == 1 {
		assert.Same(t, pop[20], next[20])
		assert.Same(t, pop[19], next[19])
		assert.Equal(t, []int{20}, r.Ancestors[20])
	}

	all := make([]*Genome, 0, len(next))
	for key, g := range next {
		assert.Equal(t, key, g.Key)
		require.NoError(t, g.CheckAlignment(reg))
		all = append(all, g)
		if _, elite := pop[key]; !elite {
			assert.Greater(t, key, 20)
			assert.Len(t, r.Ancestors[key], 2)
		}
	}
	requireIdentity(t, all...)
	assert.Equal(t, 21+20-len(intersect(pop, next)), r.NextGenomeKey)
}

func TestReproduceCrossoverMaxDistanceClones(t *testing.T) {
	cfg := testConfig(t, 2, 1)
	cfg.Reproduction.CrossoverMaxDistance = 0.0001
	cfg.Genome.NodeAddProb = 0
	cfg.Genome.ConnAddProb = 0
	cfg.Genome.WeightPerturbProb = 0
	cfg.Genome.ToggleEnableProb = 0
	reg := NewRegistry(1)
	r := NewReproduction(cfg, quietLogger)

	a := genomeWith(1, &cfg.Genome, reg, [2]int{-1, 0})
	b := genomeWith(2, &cfg.Genome, reg, [2]int{-2, 0})
	a.Fitness, b.Fitness = 1, 5

	child, err := r.offspring(3, a, b, testRNG(), reg)
	require.NoError(t, err)
	assert.Equal(t, innovationsOf(b), innovationsOf(child))
}

func intersect(a, b map[int]*Genome) []int {
	var out []int
	for k := range a {
		if _, ok := b[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

package neat

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
)

// Stagnation manages the detection of stagnant species.
type Stagnation struct {
	Config             *StagnationConfig
	SpeciesFitnessFunc func([]float64) float64
	Logger             *slog.Logger
}

// NewStagnation creates a new stagnation manager.
func NewStagnation(config *StagnationConfig, logger *slog.Logger) (*Stagnation, error) {
	fn, ok := StatFunctions[strings.ToLower(config.SpeciesFitnessFunc)]
	if !ok {
		return nil, &ConfigError{"species_fitness_func", fmt.Sprintf("unknown function '%s'", config.SpeciesFitnessFunc)}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stagnation{
		Config:             config,
		SpeciesFitnessFunc: fn,
		Logger:             logger,
	}, nil
}

// StagnationInfo holds the results of the stagnation update for a single species.
type StagnationInfo struct {
	SpeciesID  int
	Species    *Species
	IsStagnant bool
}

// Update records each species' fitness for this generation and marks the species that
// have gone max_stagnation generations without improving. The species holding the
// population's best fitness and the top species_elitism species are never marked.
// Results are in species key order.
func (s *Stagnation) Update(speciesSet *SpeciesSet, generation int) []StagnationInfo {
	keys := speciesSet.SortedKeys()
	if len(keys) == 0 {
		return nil
	}

	best := math.Inf(-1)
	for _, sid := range keys {
		sp := speciesSet.Species[sid]
		fitnesses := sp.GetFitnesses()
		sp.Fitness = s.SpeciesFitnessFunc(fitnesses)
		sp.FitnessHistory = append(sp.FitnessHistory, sp.Fitness)
		if sp.Fitness > sp.BestFitness {
			sp.BestFitness = sp.Fitness
			sp.LastImproved = generation
		}
		best = math.Max(best, MaxFloat(fitnesses))
	}

	protected := make(map[int]bool, len(keys))
	for _, sid := range keys {
		if MaxFloat(speciesSet.Species[sid].GetFitnesses()) == best {
			protected[sid] = true
		}
	}
	ranked := append([]int(nil), keys...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return speciesSet.Species[ranked[i]].Fitness > speciesSet.Species[ranked[j]].Fitness
	})
	for i := 0; i < s.Config.SpeciesElitism && i < len(ranked); i++ {
		protected[ranked[i]] = true
	}

	result := make([]StagnationInfo, 0, len(keys))
	for _, sid := range keys {
		sp := speciesSet.Species[sid]
		stagnant := sp.Age(generation) >= s.Config.MaxStagnation
		if stagnant && protected[sid] {
			s.Logger.Debug("species spared from stagnation",
				"species", sid, "fitness", sp.Fitness, "age", sp.Age(generation))
			stagnant = false
		}
		result = append(result, StagnationInfo{SpeciesID: sid, Species: sp, IsStagnant: stagnant})
	}
	return result
}

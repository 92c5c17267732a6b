package neat

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
)

// Reproduction handles the creation of new genomes, either from scratch or through
// crossover and mutation.
type Reproduction struct {
	Config        *ReproductionConfig
	GenomeConfig  *GenomeConfig
	NextGenomeKey int
	Ancestors     map[int][]int // genome key -> parent keys
	Mutator       *Mutator
	Logger        *slog.Logger
}

// NewReproduction creates a new reproduction manager.
func NewReproduction(config *Config, logger *slog.Logger) *Reproduction {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reproduction{
		Config:        &config.Reproduction,
		GenomeConfig:  &config.Genome,
		NextGenomeKey: 1,
		Ancestors:     make(map[int][]int),
		Mutator:       NewMutator(&config.Genome, logger),
		Logger:        logger,
	}
}

func (r *Reproduction) getNextKey() int {
	key := r.NextGenomeKey
	r.NextGenomeKey++
	return key
}

// CreateNewPopulation creates popSize generation-zero genomes.
func (r *Reproduction) CreateNewPopulation(popSize int, rng *rand.Rand, reg *Registry) (map[int]*Genome, error) {
	genomes := make(map[int]*Genome, popSize)
	for i := 0; i < popSize; i++ {
		key := r.getNextKey()
		g := NewGenome(key, r.GenomeConfig)
		if err := g.ConfigureNew(rng, reg); err != nil {
			return nil, fmt.Errorf("configuring genome %d: %w", key, err)
		}
		genomes[key] = g
		r.Ancestors[key] = nil
	}
	return genomes, nil
}

// Quotas returns the number of offspring each species may produce. Shares are
// proportional to the species' adjusted fitness shifted so the lowest is zero, every
// species gets at least min_species_size, rounding uses the largest remainder and the
// quotas always sum to popSize.
func (r *Reproduction) Quotas(species []*Species, popSize int) []int {
	n := len(species)
	quotas := make([]int, n)
	if n == 0 {
		return quotas
	}

	floor := min(r.Config.MinSpeciesSize, popSize/n)
	remaining := popSize - floor*n

	minAdjusted := math.Inf(1)
	for _, s := range species {
		minAdjusted = math.Min(minAdjusted, s.AdjustedFitness)
	}
	weights := make([]float64, n)
	total := 0.0
	for i, s := range species {
		weights[i] = s.AdjustedFitness - minAdjusted
		total += weights[i]
	}
	if total <= 0 {
		for i := range weights {
			weights[i] = 1
		}
		total = float64(n)
	}

	type remainder struct {
		index int
		frac  float64
	}
	fracs := make([]remainder, n)
	assigned := 0
	for i := range species {
		exact := weights[i] / total * float64(remaining)
		whole := math.Floor(exact)
		quotas[i] = floor + int(whole)
		assigned += int(whole)
		fracs[i] = remainder{i, exact - whole}
	}
	sort.SliceStable(fracs, func(a, b int) bool { return fracs[a].frac > fracs[b].frac })
	for i := 0; assigned < remaining; i++ {
		quotas[fracs[i%n].index]++
		assigned++
	}
	return quotas
}

// Reproduce builds the next generation from the surviving species, which must be in
// species key order. The registry must already have been reset for this generation.
func (r *Reproduction) Reproduce(species []*Species, popSize int, rng *rand.Rand, reg *Registry) (map[int]*Genome, error) {
	quotas := r.Quotas(species, popSize)
	next := make(map[int]*Genome, popSize)
	ancestors := make(map[int][]int, popSize)

	for i, s := range species {
		spawn := quotas[i]
		if spawn <= 0 {
			continue
		}

		// Fittest first, genome key breaking ties.
		members := s.SortedMembers()
		sort.SliceStable(members, func(a, b int) bool { return members[a].Fitness > members[b].Fitness })

		for j := 0; j < r.Config.Elitism && j < len(members) && spawn > 0; j++ {
			elite := members[j]
			next[elite.Key] = elite
			ancestors[elite.Key] = []int{elite.Key}
			spawn--
		}
		if spawn == 0 {
			continue
		}

		cutoff := int(math.Ceil(r.Config.SurvivalThreshold * float64(len(members))))
		cutoff = min(max(cutoff, 2), len(members))
		parents := members[:cutoff]

		for ; spawn > 0; spawn-- {
			p1 := parents[rng.Intn(len(parents))]
			p2 := parents[rng.Intn(len(parents))]
			child, err := r.offspring(r.getNextKey(), p1, p2, rng, reg)
			if err != nil {
				return nil, err
			}
			next[child.Key] = child
			ancestors[child.Key] = []int{p1.Key, p2.Key}
		}
	}
	r.Ancestors = ancestors

	if len(next) != popSize {
		r.Logger.Warn("population size differs from target", "size", len(next), "target", popSize)
	}
	return next, nil
}

// offspring produces one mutated child. Two distinct parents are crossed over unless
// crossover_max_distance is set and they are further apart than that, in which case
// the fitter parent is cloned.
func (r *Reproduction) offspring(key int, p1, p2 *Genome, rng *rand.Rand, reg *Registry) (*Genome, error) {
	var child *Genome
	switch {
	case p1.Key == p2.Key:
		child = p1.Copy(key)
	case r.Config.CrossoverMaxDistance > 0 && p1.Distance(p2) > r.Config.CrossoverMaxDistance:
		if p2.Fitness > p1.Fitness {
			p1 = p2
		}
		child = p1.Copy(key)
	default:
		var err error
		child, err = Crossover(key, p1, p2, rng, reg)
		if err != nil {
			return nil, fmt.Errorf("crossover of %d and %d: %w", p1.Key, p2.Key, err)
		}
	}

	if _, err := r.Mutator.Mutate(child, rng, reg); err != nil {
		return nil, fmt.Errorf("mutating genome %d: %w", key, err)
	}
	if err := child.Validate(); err != nil {
		return nil, err
	}
	return child, nil
}

package neat

import (
	"log/slog"
	"math"
	"sort"
)

// Species represents a group of genetically similar genomes.
type Species struct {
	Key             int             // Stable identifier; never reused.
	Created         int             // Generation in which the species was founded.
	LastImproved    int             // Last generation in which BestFitness improved.
	Representative  *Genome         // Genome new members are compared against.
	Members         map[int]*Genome // Genome key -> genome.
	Fitness         float64         // Summary of member fitness via species_fitness_func.
	AdjustedFitness float64         // Sum of member adjusted fitness.
	BestFitness     float64         // Best Fitness ever recorded for the species.
	FitnessHistory  []float64
}

// NewSpecies creates a new species founded in the given generation.
func NewSpecies(key, generation int) *Species {
	return &Species{
		Key:          key,
		Created:      generation,
		LastImproved: generation,
		Members:      make(map[int]*Genome),
		BestFitness:  math.Inf(-1),
	}
}

// Age returns the number of generations since the species last improved.
func (s *Species) Age(generation int) int {
	return generation - s.LastImproved
}

// GetFitnesses returns the raw fitness of every member in genome key order.
func (s *Species) GetFitnesses() []float64 {
	members := s.SortedMembers()
	fitnesses := make([]float64, len(members))
	for i, g := range members {
		fitnesses[i] = g.Fitness
	}
	return fitnesses
}

// SortedMembers returns the members in genome key order.
func (s *Species) SortedMembers() []*Genome {
	members := make([]*Genome, 0, len(s.Members))
	for _, g := range s.Members {
		members = append(members, g)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Key < members[j].Key })
	return members
}

// --------------------------- GenomeDistanceCache ---------------------------

type genomePair struct{ a, b int }

// GenomeDistanceCache memoises distances between genome pairs for one speciation pass.
type GenomeDistanceCache struct {
	distances map[genomePair]float64
	Hits      int
	Misses    int
}

// NewGenomeDistanceCache creates a new distance cache.
func NewGenomeDistanceCache() *GenomeDistanceCache {
	return &GenomeDistanceCache{distances: make(map[genomePair]float64)}
}

// Distance calculates or retrieves the distance between two genomes.
func (dc *GenomeDistanceCache) Distance(g1, g2 *Genome) float64 {
	key := genomePair{g1.Key, g2.Key}
	if key.a > key.b {
		key.a, key.b = key.b, key.a
	}
	if d, ok := dc.distances[key]; ok {
		dc.Hits++
		return d
	}
	dc.Misses++
	d := g1.Distance(g2)
	dc.distances[key] = d
	return d
}

// Values returns every cached distance.
func (dc *GenomeDistanceCache) Values() []float64 {
	out := make([]float64, 0, len(dc.distances))
	for _, d := range dc.distances {
		out = append(out, d)
	}
	sort.Float64s(out)
	return out
}

// --------------------------- SpeciesSet ---------------------------

// SpeciesSet is the arena of species in a population, keyed by species id.
type SpeciesSet struct {
	Species         map[int]*Species
	GenomeToSpecies map[int]int
	Indexer         int // next species key
	Config          *SpeciesSetConfig
	Logger          *slog.Logger
}

// NewSpeciesSet creates a new species set manager.
func NewSpeciesSet(config *SpeciesSetConfig, logger *slog.Logger) *SpeciesSet {
	if logger == nil {
		logger = slog.Default()
	}
	return &SpeciesSet{
		Species:         make(map[int]*Species),
		GenomeToSpecies: make(map[int]int),
		Indexer:         1,
		Config:          config,
		Logger:          logger,
	}
}

// SortedKeys returns the species keys in ascending order.
func (ss *SpeciesSet) SortedKeys() []int {
	keys := make([]int, 0, len(ss.Species))
	for k := range ss.Species {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Speciate assigns every genome to a species. Genomes are visited in key order and
// join the first species, in key order, whose representative is closer than the
// compatibility threshold; otherwise they found a new species. Representatives stay
// fixed during assignment. Afterwards each surviving species takes the member closest
// to its old representative as the representative for the next generation, and
// species left without members are dropped.
func (ss *SpeciesSet) Speciate(population map[int]*Genome, generation int) {
	cache := NewGenomeDistanceCache()
	threshold := ss.Config.CompatibilityThreshold

	keys := make([]int, 0, len(population))
	for k := range population {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	order := ss.SortedKeys()
	members := make(map[int]map[int]*Genome, len(order))
	reps := make(map[int]*Genome, len(order))
	for _, sid := range order {
		members[sid] = make(map[int]*Genome)
		reps[sid] = ss.Species[sid].Representative
	}

	created := 0
	for _, gk := range keys {
		g := population[gk]
		assigned := -1
		for _, sid := range order {
			if cache.Distance(reps[sid], g) < threshold {
				assigned = sid
				break
			}
		}
		if assigned == -1 {
			assigned = ss.Indexer
			ss.Indexer++
			s := NewSpecies(assigned, generation)
			s.Representative = g
			ss.Species[assigned] = s
			order = append(order, assigned)
			members[assigned] = make(map[int]*Genome)
			reps[assigned] = g
			created++
		}
		members[assigned][gk] = g
	}

	ss.GenomeToSpecies = make(map[int]int, len(population))
	for _, sid := range order {
		s := ss.Species[sid]
		if len(members[sid]) == 0 {
			ss.Logger.Debug("species extinct", "species", sid, "generation", generation)
			delete(ss.Species, sid)
			continue
		}
		s.Members = members[sid]
		s.Representative = closestMember(cache, reps[sid], s.SortedMembers())
		for gk := range s.Members {
			ss.GenomeToSpecies[gk] = sid
		}
	}

	if d := cache.Values(); len(d) > 0 {
		ss.Logger.Debug("speciation",
			"generation", generation,
			"species", len(ss.Species),
			"created", created,
			"mean_distance", Mean(d),
			"stdev_distance", Stdev(d),
		)
	}
}

// closestMember returns the member nearest to rep, the lowest key winning ties.
func closestMember(cache *GenomeDistanceCache, rep *Genome, members []*Genome) *Genome {
	best := members[0]
	bestDist := math.Inf(1)
	for _, g := range members {
		if d := cache.Distance(rep, g); d < bestDist {
			best, bestDist = g, d
		}
	}
	return best
}

// AdjustFitness applies explicit fitness sharing: each member's adjusted fitness is its
// raw fitness divided by the species size, and the species' adjusted fitness is the
// sum over its members.
func (ss *SpeciesSet) AdjustFitness() {
	for _, sid := range ss.SortedKeys() {
		s := ss.Species[sid]
		size := float64(len(s.Members))
		s.AdjustedFitness = 0
		for _, g := range s.SortedMembers() {
			g.AdjustedFitness = g.Fitness / size
			s.AdjustedFitness += g.AdjustedFitness
		}
	}
}

// GetSpeciesID returns the species ID for a given genome ID.
func (ss *SpeciesSet) GetSpeciesID(genomeID int) (int, bool) {
	sid, exists := ss.GenomeToSpecies[genomeID]
	return sid, exists
}

// GetSpecies returns the Species object for a given genome ID.
func (ss *SpeciesSet) GetSpecies(genomeID int) (*Species, bool) {
	sid, exists := ss.GenomeToSpecies[genomeID]
	if !exists {
		return nil, false
	}
	s, exists := ss.Species[sid]
	return s, exists
}

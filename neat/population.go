package neat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"
)

// ErrExtinction is returned when every species stagnated and reset_on_extinction is off.
var ErrExtinction = errors.New("population extinct")

// Phase is the state of the generation cycle.
type Phase int

const (
	PhaseEvaluate Phase = iota
	PhaseSpeciate
	PhaseSelect
	PhaseReproduce
	PhaseReplace
	PhaseTerminal
)

func (p Phase) String() string {
	switch p {
	case PhaseEvaluate:
		return "evaluate"
	case PhaseSpeciate:
		return "speciate"
	case PhaseSelect:
		return "select"
	case PhaseReproduce:
		return "reproduce"
	case PhaseReplace:
		return "replace"
	case PhaseTerminal:
		return "terminal"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Population holds the state of the NEAT evolutionary process.
type Population struct {
	Config       *Config
	Population   map[int]*Genome
	SpeciesSet   *SpeciesSet
	Reproduction *Reproduction
	Stagnation   *Stagnation
	Registry     *Registry
	Generation   int
	Phase        Phase
	BestGenome   *Genome // best genome seen so far, copied when found
	Reporters    []Reporter
	Logger       *slog.Logger

	rng   *rand.Rand
	seeds []*Genome
}

// Option configures a Population.
type Option func(*Population)

// WithLogger sets the logger used by the population and its components.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Population) { p.Logger = logger }
}

// WithReporter adds a reporter receiving the statistics of each generation.
func WithReporter(r Reporter) Option {
	return func(p *Population) { p.Reporters = append(p.Reporters, r) }
}

// WithSeedGenomes starts the first generation from saved genomes, for instance winners
// loaded with LoadGenome. Each one replaces a freshly created genome, in key order,
// and keeps its innovation numbers. It has no effect on a population restored from a
// checkpoint.
func WithSeedGenomes(genomes ...*Genome) Option {
	return func(p *Population) { p.seeds = append(p.seeds, genomes...) }
}

// NewPopulation validates config and creates the first generation of genomes.
func NewPopulation(config *Config, opts ...Option) (*Population, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	p := &Population{Config: config, Logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}

	seed := config.Neat.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	p.rng = rand.New(rand.NewSource(seed))

	if err := p.wire(); err != nil {
		return nil, err
	}
	p.Registry = NewRegistry(config.Genome.NumOutputs + config.Genome.NumHidden)
	if len(p.seeds) > config.Neat.PopSize {
		return nil, fmt.Errorf("%d seed genomes do not fit a population of %d", len(p.seeds), config.Neat.PopSize)
	}
	// Seeded first so the fresh genomes reuse their innovations.
	for _, s := range p.seeds {
		if err := p.Registry.Seed(s); err != nil {
			return nil, fmt.Errorf("seeding genome %d: %w", s.Key, err)
		}
	}
	genomes, err := p.Reproduction.CreateNewPopulation(config.Neat.PopSize, p.rng, p.Registry)
	if err != nil {
		return nil, err
	}
	if err := p.plantSeeds(genomes); err != nil {
		return nil, err
	}
	p.Population = genomes
	p.SpeciesSet = NewSpeciesSet(&config.SpeciesSet, p.Logger)
	p.Logger.Info("population created", "size", len(genomes), "seed", seed)
	return p, nil
}

// plantSeeds replaces the lowest-keyed genomes with copies of the seed genomes.
func (p *Population) plantSeeds(genomes map[int]*Genome) error {
	gc := &p.Config.Genome
	keys := sortedKeys(genomes)
	for i, s := range p.seeds {
		c := s.Copy(keys[i])
		c.Config = gc
		for _, k := range c.SortedNodeKeys() {
			if k < 0 && !gc.IsInput(k) && !gc.IsBias(k) {
				return fmt.Errorf("seed genome %d: node %d does not fit %d inputs", s.Key, k, gc.NumInputs)
			}
		}
		for _, k := range gc.OutputKeys {
			c.ensureNode(k)
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("seed genome %d: %w", s.Key, err)
		}
		if err := c.CheckAlignment(p.Registry); err != nil {
			return err
		}
		genomes[c.Key] = c
		p.Logger.Info("seed genome planted", "seed", s.Key, "key", c.Key, "connections", len(c.Connections))
	}
	return nil
}

// wire creates the components that only depend on the config.
func (p *Population) wire() error {
	stagnation, err := NewStagnation(&p.Config.Stagnation, p.Logger)
	if err != nil {
		return err
	}
	p.Stagnation = stagnation
	p.Reproduction = NewReproduction(p.Config, p.Logger)
	return nil
}

// Run calls RunGeneration until a genome reaches the fitness threshold or
// max_generations generations have been run. It returns the winner, or the best
// genome seen when the generation limit stops the run.
func (p *Population) Run(ctx context.Context, fitness FitnessFunc) (*Genome, error) {
	for p.Phase != PhaseTerminal {
		winner, err := p.RunGeneration(ctx, fitness)
		if err != nil {
			return p.BestGenome, err
		}
		if winner != nil {
			return winner, nil
		}
	}
	p.Logger.Info("generation limit reached", "generations", p.Generation)
	return p.BestGenome, nil
}

// RunGeneration executes a single generation: Evaluate, Speciate, Select, Reproduce
// and Replace. It returns the best genome when the fitness threshold is met, in which
// case the population is left in PhaseTerminal with the evaluated genomes.
func (p *Population) RunGeneration(ctx context.Context, fitness FitnessFunc) (*Genome, error) {
	if p.Phase == PhaseTerminal {
		return nil, fmt.Errorf("population is terminal after generation %d", p.Generation)
	}
	start := time.Now()

	p.Phase = PhaseEvaluate
	evalErrs, err := evaluate(ctx, p.Population, fitness, p.Config.Neat.Workers)
	if err != nil {
		return nil, fmt.Errorf("evaluating generation %d: %w", p.Generation, err)
	}
	for _, e := range evalErrs {
		p.Logger.Warn("evaluation failed", "generation", p.Generation, "genome", e.GenomeKey, "err", e.Err)
	}
	best := p.trackBest()

	p.Phase = PhaseSpeciate
	p.SpeciesSet.Speciate(p.Population, p.Generation)
	p.SpeciesSet.AdjustFitness()

	stats := p.stats(best, len(evalErrs))
	if p.thresholdMet() {
		p.Phase = PhaseTerminal
		stats.Duration = time.Since(start)
		p.report(stats)
		p.Logger.Info("fitness threshold met", "generation", p.Generation, "genome", best.Key, "fitness", best.Fitness)
		return p.BestGenome, nil
	}

	p.Phase = PhaseSelect
	var survivors []*Species
	for _, info := range p.Stagnation.Update(p.SpeciesSet, p.Generation) {
		if info.IsStagnant {
			stats.Stagnated++
			p.Logger.Info("species stagnated", "species", info.SpeciesID, "generation", p.Generation,
				"members", len(info.Species.Members))
			delete(p.SpeciesSet.Species, info.SpeciesID)
			continue
		}
		survivors = append(survivors, info.Species)
	}

	var next map[int]*Genome
	if len(survivors) == 0 {
		if !p.Config.Neat.ResetOnExtinction {
			p.Phase = PhaseTerminal
			return nil, fmt.Errorf("generation %d: %w", p.Generation, ErrExtinction)
		}
		p.Logger.Warn("all species extinct, resetting population", "generation", p.Generation)
		p.Phase = PhaseReproduce
		p.Registry.Reset()
		next, err = p.Reproduction.CreateNewPopulation(p.Config.Neat.PopSize, p.rng, p.Registry)
		if err != nil {
			return nil, err
		}
		p.SpeciesSet = NewSpeciesSet(&p.Config.SpeciesSet, p.Logger)
	} else {
		p.Phase = PhaseReproduce
		p.Registry.Reset()
		next, err = p.Reproduction.Reproduce(survivors, p.Config.Neat.PopSize, p.rng, p.Registry)
		if err != nil {
			return nil, fmt.Errorf("reproducing generation %d: %w", p.Generation, err)
		}
	}

	p.Phase = PhaseReplace
	p.Population = next
	stats.Duration = time.Since(start)
	p.report(stats)
	p.Generation++

	p.Phase = PhaseEvaluate
	if limit := p.Config.Neat.MaxGenerations; limit > 0 && p.Generation >= limit {
		p.Phase = PhaseTerminal
	}
	return nil, nil
}

// trackBest returns the fittest genome of the current generation and records a copy
// of it as BestGenome when it beats every earlier generation.
func (p *Population) trackBest() *Genome {
	var best *Genome
	for _, g := range p.sortedGenomes() {
		if best == nil || g.Fitness > best.Fitness {
			best = g
		}
	}
	if best != nil && (p.BestGenome == nil || best.Fitness > p.BestGenome.Fitness) {
		c := best.Copy(best.Key)
		c.Fitness = best.Fitness
		p.BestGenome = c
		p.Logger.Debug("new best genome", "genome", best.Key, "fitness", best.Fitness)
	}
	return best
}

// thresholdMet applies fitness_criterion to the current fitness values.
func (p *Population) thresholdMet() bool {
	if p.Config.Neat.NoFitnessTermination {
		return false
	}
	fitnesses := make([]float64, 0, len(p.Population))
	for _, g := range p.sortedGenomes() {
		fitnesses = append(fitnesses, g.Fitness)
	}
	criterion := fitnessCriteria[strings.ToLower(p.Config.Neat.FitnessCriterion)]
	return criterion(fitnesses) >= p.Config.Neat.FitnessThreshold
}

func (p *Population) sortedGenomes() []*Genome {
	genomes := make([]*Genome, 0, len(p.Population))
	for _, g := range p.Population {
		genomes = append(genomes, g)
	}
	sort.Slice(genomes, func(i, j int) bool { return genomes[i].Key < genomes[j].Key })
	return genomes
}

func (p *Population) stats(best *Genome, evalErrors int) GenerationStats {
	genomes := p.sortedGenomes()
	fitnesses := make([]float64, len(genomes))
	hidden, conns := 0, 0
	for i, g := range genomes {
		fitnesses[i] = g.Fitness
		h, c := g.Size()
		hidden += h
		conns += c
	}
	n := math.Max(1, float64(len(genomes)))
	s := GenerationStats{
		Generation:      p.Generation,
		PopSize:         len(genomes),
		Species:         len(p.SpeciesSet.Species),
		BestFitness:     math.Inf(-1),
		MeanFitness:     Mean(fitnesses),
		StdevFitness:    Stdev(fitnesses),
		MeanHidden:      float64(hidden) / n,
		MeanConnections: float64(conns) / n,
		EvalErrors:      evalErrors,
	}
	if best != nil {
		s.BestGenome = best.Key
		s.BestFitness = best.Fitness
	}
	return s
}

func (p *Population) report(stats GenerationStats) {
	stats.DurationMS = stats.Duration.Milliseconds()
	p.Logger.Info("generation complete", "stats", stats)
	for _, r := range p.Reporters {
		if err := r.Report(stats); err != nil {
			p.Logger.Warn("reporter failed", "err", err)
		}
	}
}

package neat

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
)

const checkpointVersion = 1

// checkpointData holds the parts of a Population needed to resume a run. The config
// is not saved; the caller supplies it again on load.
type checkpointData struct {
	Version        int
	Generation     int
	Genomes        []*Genome
	Species        []speciesData
	SpeciesIndexer int
	NextGenomeKey  int
	Ancestors      map[int][]int
	Registry       RegistryState
	BestGenome     *Genome
	Seed           int64 // reseeds the random source on both sides of the save
}

type speciesData struct {
	Key             int
	Created         int
	LastImproved    int
	Representative  *Genome
	Members         []int
	Fitness         float64
	AdjustedFitness float64
	BestFitness     float64
	FitnessHistory  []float64
}

// detached returns a shallow copy without the config pointer, which gob would
// otherwise write out for every genome.
func detached(g *Genome) *Genome {
	if g == nil {
		return nil
	}
	c := *g
	c.Config = nil
	return &c
}

// SaveCheckpoint saves the current state of the Population to a gzip-compressed gob file.
func (p *Population) SaveCheckpoint(filePath string) error {
	var buf bytes.Buffer
	if err := p.WriteCheckpoint(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(filePath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint file '%s': %w", filePath, err)
	}
	p.Logger.Info("checkpoint saved", "path", filePath, "generation", p.Generation,
		"size", humanize.Bytes(uint64(buf.Len())))
	return nil
}

// WriteCheckpoint writes the checkpoint encoding of the population to w. The random
// source is reseeded so that a population restored from the checkpoint continues
// exactly like this one.
func (p *Population) WriteCheckpoint(w io.Writer) error {
	data := checkpointData{
		Version:        checkpointVersion,
		Generation:     p.Generation,
		SpeciesIndexer: p.SpeciesSet.Indexer,
		NextGenomeKey:  p.Reproduction.NextGenomeKey,
		Ancestors:      p.Reproduction.Ancestors,
		Registry:       p.Registry.State(),
		BestGenome:     detached(p.BestGenome),
		Seed:           p.rng.Int63(),
	}
	for _, g := range p.sortedGenomes() {
		data.Genomes = append(data.Genomes, detached(g))
	}
	for _, sid := range p.SpeciesSet.SortedKeys() {
		s := p.SpeciesSet.Species[sid]
		sd := speciesData{
			Key:             s.Key,
			Created:         s.Created,
			LastImproved:    s.LastImproved,
			Representative:  detached(s.Representative),
			Fitness:         s.Fitness,
			AdjustedFitness: s.AdjustedFitness,
			BestFitness:     s.BestFitness,
			FitnessHistory:  s.FitnessHistory,
		}
		for _, g := range s.SortedMembers() {
			sd.Members = append(sd.Members, g.Key)
		}
		data.Species = append(data.Species, sd)
	}

	gz := gzip.NewWriter(w)
	if err := gob.NewEncoder(gz).Encode(data); err != nil {
		return fmt.Errorf("failed to encode population data: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to flush checkpoint: %w", err)
	}
	p.rng = rand.New(rand.NewSource(data.Seed))
	return nil
}

// LoadCheckpoint restores a Population from a checkpoint file written by SaveCheckpoint.
func LoadCheckpoint(checkpointPath string, config *Config, opts ...Option) (*Population, error) {
	file, err := os.Open(checkpointPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file '%s': %w", checkpointPath, err)
	}
	defer file.Close()
	return ReadCheckpoint(file, config, opts...)
}

// ReadCheckpoint restores a Population from checkpoint data. config must describe the
// same genome shape as the run that wrote the checkpoint.
func ReadCheckpoint(r io.Reader, config *Config, opts ...Option) (*Population, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader for checkpoint: %w", err)
	}
	defer gz.Close()

	var data checkpointData
	if err := gob.NewDecoder(gz).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode population data from checkpoint: %w", err)
	}
	if data.Version != checkpointVersion {
		return nil, fmt.Errorf("unsupported checkpoint version %d", data.Version)
	}

	p := &Population{Config: config, Generation: data.Generation, Logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.wire(); err != nil {
		return nil, err
	}
	p.rng = rand.New(rand.NewSource(data.Seed))
	p.Registry = RestoreRegistry(data.Registry)
	p.Reproduction.NextGenomeKey = data.NextGenomeKey
	if data.Ancestors != nil {
		p.Reproduction.Ancestors = data.Ancestors
	}

	gc := &config.Genome
	p.Population = make(map[int]*Genome, len(data.Genomes))
	for _, g := range data.Genomes {
		relink(g, gc)
		p.Population[g.Key] = g
	}
	if data.BestGenome != nil {
		relink(data.BestGenome, gc)
		p.BestGenome = data.BestGenome
	}

	p.SpeciesSet = NewSpeciesSet(&config.SpeciesSet, p.Logger)
	p.SpeciesSet.Indexer = data.SpeciesIndexer
	for _, sd := range data.Species {
		s := NewSpecies(sd.Key, sd.Created)
		s.LastImproved = sd.LastImproved
		s.Fitness = sd.Fitness
		s.AdjustedFitness = sd.AdjustedFitness
		s.BestFitness = sd.BestFitness
		s.FitnessHistory = sd.FitnessHistory
		s.Representative = relink(sd.Representative, gc)
		for _, key := range sd.Members {
			if g, ok := p.Population[key]; ok {
				s.Members[key] = g
				p.SpeciesSet.GenomeToSpecies[key] = s.Key
			}
		}
		p.SpeciesSet.Species[s.Key] = s
	}

	for _, key := range sortedKeys(p.Population) {
		if err := p.Population[key].CheckAlignment(p.Registry); err != nil {
			return nil, fmt.Errorf("checkpoint genome %d: %w", key, err)
		}
	}
	if limit := config.Neat.MaxGenerations; limit > 0 && p.Generation >= limit {
		p.Phase = PhaseTerminal
	}
	p.Logger.Info("checkpoint loaded", "generation", p.Generation, "genomes", len(p.Population))
	return p, nil
}

// relink restores the pointers gob cannot carry and the empty maps it drops.
func relink(g *Genome, gc *GenomeConfig) *Genome {
	if g == nil {
		return nil
	}
	g.Config = gc
	if g.Nodes == nil {
		g.Nodes = make(map[int]*NodeGene)
	}
	if g.Connections == nil {
		g.Connections = make(map[int]*ConnectionGene)
	}
	return g
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

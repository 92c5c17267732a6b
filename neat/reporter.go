package neat

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
)

// GenerationStats summarises one evaluated generation.
type GenerationStats struct {
	Generation      int           `csv:"generation"`
	PopSize         int           `csv:"pop_size"`
	Species         int           `csv:"species"`
	BestGenome      int           `csv:"best_genome"`
	BestFitness     float64       `csv:"best_fitness"`
	MeanFitness     float64       `csv:"mean_fitness"`
	StdevFitness    float64       `csv:"stdev_fitness"`
	MeanHidden      float64       `csv:"mean_hidden"`
	MeanConnections float64       `csv:"mean_connections"`
	EvalErrors      int           `csv:"eval_errors"`
	Stagnated       int           `csv:"stagnated"`
	Duration        time.Duration `csv:"-"`
	DurationMS      int64         `csv:"duration_ms"`
}

// LogValue implements slog.LogValuer for structured logging.
func (s GenerationStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("generation", s.Generation),
		slog.Int("pop_size", s.PopSize),
		slog.Int("species", s.Species),
		slog.Int("best_genome", s.BestGenome),
		slog.Float64("best_fitness", s.BestFitness),
		slog.Float64("mean_fitness", s.MeanFitness),
		slog.Float64("stdev_fitness", s.StdevFitness),
		slog.Float64("mean_hidden", s.MeanHidden),
		slog.Float64("mean_connections", s.MeanConnections),
		slog.Int("eval_errors", s.EvalErrors),
		slog.Int("stagnated", s.Stagnated),
		slog.Duration("duration", s.Duration),
	)
}

// Reporter receives the statistics of every completed generation.
type Reporter interface {
	Report(stats GenerationStats) error
}

// StatisticsReporter keeps the statistics of every generation in memory and can
// optionally stream them to a CSV writer as they arrive.
type StatisticsReporter struct {
	mu            sync.Mutex
	generations   []GenerationStats
	out           io.Writer
	headerWritten bool
}

// NewStatisticsReporter creates a reporter. out may be nil.
func NewStatisticsReporter(out io.Writer) *StatisticsReporter {
	return &StatisticsReporter{out: out}
}

// Report records stats and appends them to the CSV stream, writing the header first.
func (r *StatisticsReporter) Report(stats GenerationStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generations = append(r.generations, stats)
	if r.out == nil {
		return nil
	}

	records := []GenerationStats{stats}
	if !r.headerWritten {
		if err := gocsv.Marshal(records, r.out); err != nil {
			return fmt.Errorf("writing statistics: %w", err)
		}
		r.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, r.out); err != nil {
		return fmt.Errorf("writing statistics: %w", err)
	}
	return nil
}

// Generations returns a copy of the recorded statistics.
func (r *StatisticsReporter) Generations() []GenerationStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]GenerationStats(nil), r.generations...)
}

// BestFitnesses returns the best fitness of each generation.
func (r *StatisticsReporter) BestFitnesses() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, len(r.generations))
	for i, s := range r.generations {
		out[i] = s.BestFitness
	}
	return out
}

// SaveCSV writes every recorded generation to a CSV file.
func (r *StatisticsReporter) SaveCSV(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	if err := gocsv.MarshalFile(&r.generations, f); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

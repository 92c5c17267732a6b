package neat

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"
)

// FitnessFunc scores one genome. It is called concurrently for different genomes and
// must treat the genome as read-only.
type FitnessFunc func(ctx context.Context, g *Genome) (float64, error)

// evaluate scores every genome of the population with up to workers concurrent calls
// and returns once all of them are done. A genome whose evaluation fails receives the
// lowest fitness that any other genome achieved this generation, or 0 when none
// succeeded. Only cancellation of ctx is returned as an error.
func evaluate(ctx context.Context, population map[int]*Genome, fitness FitnessFunc, workers int) ([]*EvaluationError, error) {
	genomes := make([]*Genome, 0, len(population))
	for _, g := range population {
		genomes = append(genomes, g)
	}
	sort.Slice(genomes, func(i, j int) bool { return genomes[i].Key < genomes[j].Key })

	scores := make([]float64, len(genomes))
	failures := make([]error, len(genomes))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(max(1, workers))
	for i, g := range genomes {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			f, err := fitness(egCtx, g)
			if err == nil && (math.IsNaN(f) || math.IsInf(f, 0)) {
				err = fmt.Errorf("non-finite fitness %v", f)
			}
			if err != nil {
				failures[i] = err
				return nil
			}
			scores[i] = f
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	floor := math.Inf(1)
	for i := range genomes {
		if failures[i] == nil {
			floor = math.Min(floor, scores[i])
		}
	}
	if math.IsInf(floor, 1) {
		floor = 0
	}

	var evalErrs []*EvaluationError
	for i, g := range genomes {
		if failures[i] != nil {
			evalErrs = append(evalErrs, &EvaluationError{GenomeKey: g.Key, Err: failures[i]})
			g.Fitness = floor
			continue
		}
		g.Fitness = scores[i]
	}
	return evalErrs, nil
}

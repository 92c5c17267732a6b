package nn

import (
	"context"
	"fmt"

	"github.com/baldhumanity/flappy-neat/neat"
)

// Episode configures one run of an environment.
type Episode struct {
	Seed     int64
	MaxTicks int // 0 leaves the limit to the environment
}

// Environment scores a network over one episode. Implementations must be
// deterministic for a given episode seed and query the network once per tick.
type Environment interface {
	Evaluate(ctx context.Context, net *Network, ep Episode) (float64, error)
}

// EnvironmentFunc adapts a function to the Environment interface.
type EnvironmentFunc func(ctx context.Context, net *Network, ep Episode) (float64, error)

func (f EnvironmentFunc) Evaluate(ctx context.Context, net *Network, ep Episode) (float64, error) {
	return f(ctx, net, ep)
}

// FitnessFunc turns an environment into a fitness function. Each genome is built
// into a fresh network and scored as the mean over the episodes, with the network
// state reset before every episode.
func FitnessFunc(env Environment, episodes ...Episode) neat.FitnessFunc {
	if len(episodes) == 0 {
		episodes = []Episode{{}}
	}
	return func(ctx context.Context, g *neat.Genome) (float64, error) {
		net, err := Build(g)
		if err != nil {
			return 0, err
		}
		return Score(ctx, env, net, episodes...)
	}
}

// Score runs net through every episode and returns the mean fitness.
func Score(ctx context.Context, env Environment, net *Network, episodes ...Episode) (float64, error) {
	if len(episodes) == 0 {
		return 0, fmt.Errorf("no episodes to score")
	}
	total := 0.0
	for _, ep := range episodes {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		net.Reset()
		f, err := env.Evaluate(ctx, net, ep)
		if err != nil {
			return 0, fmt.Errorf("episode seed %d: %w", ep.Seed, err)
		}
		total += f
	}
	return total / float64(len(episodes)), nil
}

package flappy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/baldhumanity/flappy-neat/neat/nn"
)

// NumInputs and NumOutputs describe the network shape the environment expects.
const (
	NumInputs  = 3
	NumOutputs = 1
)

// Result summarizes one episode.
type Result struct {
	Fitness float64
	Score   int
	Ticks   int
	Dead    bool
}

func (r Result) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("fitness", r.Fitness),
		slog.Int("score", r.Score),
		slog.Int("ticks", r.Ticks),
		slog.Bool("dead", r.Dead),
	)
}

// Frame is the state observed on one tick, passed to an Observer.
type Frame struct {
	Tick   int
	Inputs []float64
	Output float64
	Flap   bool
	Step   StepResult
	World  *World
}

// Observer receives every frame of an episode. Returning an error stops it.
type Observer func(Frame) error

// Environment scores networks on headless Flappy Bird. It holds no per-episode
// state and can be shared by concurrent evaluations.
type Environment struct {
	Config *Config
	Logger *slog.Logger
}

// NewEnvironment creates an environment. A nil config uses the embedded defaults.
func NewEnvironment(cfg *Config, logger *slog.Logger) *Environment {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Environment{Config: cfg, Logger: logger}
}

// Evaluate implements nn.Environment.
func (e *Environment) Evaluate(ctx context.Context, net *nn.Network, ep nn.Episode) (float64, error) {
	res, err := e.Play(ctx, net, ep, nil)
	if err != nil {
		return 0, err
	}
	return res.Fitness, nil
}

// Play runs one episode. The network is queried once per tick and the bird flaps
// when the first output reaches flap_threshold. The episode ends on a collision or
// after MaxTicks ticks (the configured max_ticks when the episode leaves it at 0).
func (e *Environment) Play(ctx context.Context, net *nn.Network, ep nn.Episode, observe Observer) (Result, error) {
	if len(net.InputKeys) != NumInputs || len(net.OutputKeys) < NumOutputs {
		return Result{}, fmt.Errorf("network has %d inputs and %d outputs, want %d and %d",
			len(net.InputKeys), len(net.OutputKeys), NumInputs, NumOutputs)
	}
	maxTicks := ep.MaxTicks
	if maxTicks <= 0 {
		maxTicks = e.Config.Agent.MaxTicks
	}

	w := NewWorld(e.Config, ep.Seed)
	var res Result
	for maxTicks <= 0 || w.Tick < maxTicks {
		if w.Tick%256 == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}
		inputs := w.Inputs()
		out, err := net.Activate(inputs)
		if err != nil {
			return res, err
		}
		flap := out[0] >= e.Config.Agent.FlapThreshold
		step := w.Step(flap)
		res.Fitness += step.Reward
		if observe != nil {
			frame := Frame{Tick: w.Tick, Inputs: inputs, Output: out[0], Flap: flap, Step: step, World: w}
			if err := observe(frame); err != nil {
				return res, err
			}
		}
		if step.Dead {
			break
		}
	}
	res.Score = w.Score
	res.Ticks = w.Tick
	res.Dead = w.Dead
	e.Logger.Debug("episode finished", "seed", ep.Seed, "result", res)
	return res, nil
}

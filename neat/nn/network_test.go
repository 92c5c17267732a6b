package nn

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/flappy-neat/neat"
)

func newGenome(t *testing.T, cfg *neat.Config, seed int64) (*neat.Genome, *neat.Registry, *rand.Rand) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	reg := neat.NewRegistry(cfg.Genome.NumOutputs + cfg.Genome.NumHidden)
	g := neat.NewGenome(1, &cfg.Genome)
	require.NoError(t, g.ConfigureNew(rng, reg))
	return g, reg, rng
}

func activate(t *testing.T, net *Network, inputs ...float64) []float64 {
	t.Helper()
	out, err := net.Activate(inputs)
	require.NoError(t, err)
	return out
}

func TestFeedForward(t *testing.T) {
	cfg := neat.DefaultConfig(2, 1)
	cfg.Genome.OutputActivation = "identity"
	g, _, _ := newGenome(t, cfg, 1)
	weights := map[int]float64{}
	for _, cg := range g.Connections {
		weights[cg.Key.InNodeID] = cg.Weight
	}

	net, err := Build(g)
	require.NoError(t, err)
	assert.Zero(t, net.RecurrentEdges())
	out := activate(t, net, 0.5, -2)
	want := 0.5*weights[-1] - 2*weights[-2] + weights[cfg.Genome.BiasKey]
	assert.InDelta(t, want, out[0], 1e-12)

	_, err = net.Activate([]float64{1})
	require.Error(t, err)
}

func TestAddNodeContinuity(t *testing.T) {
	// Default settings: tanh hidden and output nodes.
	cfg := neat.DefaultConfig(3, 2)
	g, reg, rng := newGenome(t, cfg, 3)

	inputs := [][]float64{{0, 0, 0}, {1, -1, 0.5}, {0.3, 0.7, -0.2}, {-4, 2, 9}}
	before, err := Build(g)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, g.MutateAddNode(rng, reg))
		after, err := Build(g)
		require.NoError(t, err)
		for _, in := range inputs {
			before.Reset()
			after.Reset()
			assert.InDeltaSlice(t, activate(t, before, in...), activate(t, after, in...), 1e-9)
		}
		before = after
	}
}

func TestAddNodeContinuityShippedConfigs(t *testing.T) {
	for _, path := range []string{"../../configs/flappy-config", "../../configs/xor-config"} {
		t.Run(path, func(t *testing.T) {
			cfg, err := neat.LoadConfig(path)
			require.NoError(t, err)
			g, reg, rng := newGenome(t, cfg, 11)
			before, err := Build(g)
			require.NoError(t, err)
			require.NoError(t, g.MutateAddNode(rng, reg))
			after, err := Build(g)
			require.NoError(t, err)

			in := make([]float64, cfg.Genome.NumInputs)
			for i := range in {
				in[i] = 0.25 * float64(i+1)
			}
			assert.InDeltaSlice(t, activate(t, before, in...), activate(t, after, in...), 1e-12)
		})
	}
}

func TestDeterminismAcrossRuns(t *testing.T) {
	cfg := neat.DefaultConfig(2, 1)
	cfg.Genome.AllowRecurrent = true
	g, reg, rng := newGenome(t, cfg, 5)
	for i := 0; i < 6; i++ {
		require.NoError(t, g.MutateAddNode(rng, reg))
		require.NoError(t, g.MutateAddConnection(rng, reg))
	}

	sequence := [][]float64{{1, 0}, {0, 1}, {0.5, 0.5}, {-1, 2}, {0, 0}, {3, -3}}
	run := func(net *Network) [][]float64 {
		net.Reset()
		var out [][]float64
		for _, in := range sequence {
			out = append(out, activate(t, net, in...))
		}
		return out
	}

	a, err := Build(g)
	require.NoError(t, err)
	b, err := Build(g)
	require.NoError(t, err)
	first := run(a)
	assert.Equal(t, first, run(b))
	// Reset makes a reused network repeat itself.
	assert.Equal(t, first, run(a))
}

func TestRecurrentSelfLoop(t *testing.T) {
	cfg := neat.DefaultConfig(1, 1)
	cfg.Genome.BiasNode = false
	cfg.Genome.AllowRecurrent = true
	cfg.Genome.OutputActivation = "identity"
	require.NoError(t, cfg.Validate())
	g, reg, rng := newGenome(t, cfg, 1)
	for _, cg := range g.Connections {
		cg.Weight = 1
	}
	// The only candidate left is the self loop 0->0.
	require.NoError(t, g.MutateAddConnection(rng, reg))
	for _, cg := range g.Connections {
		cg.Weight = 0.5
		if cg.Key.InNodeID == -1 {
			cg.Weight = 1
		}
	}

	net, err := Build(g)
	require.NoError(t, err)
	assert.Equal(t, 1, net.RecurrentEdges())

	// out(t) = in(t) + 0.5*out(t-1)
	assert.Equal(t, []float64{1}, activate(t, net, 1))
	assert.Equal(t, []float64{1.5}, activate(t, net, 1))
	assert.Equal(t, []float64{0.75}, activate(t, net, 0))
	net.Reset()
	assert.Equal(t, []float64{1}, activate(t, net, 1))
}

func TestRecurrentCycleReadsPreviousTick(t *testing.T) {
	cfg := neat.DefaultConfig(1, 1)
	cfg.Genome.BiasNode = false
	cfg.Genome.AllowRecurrent = true
	cfg.Genome.HiddenActivation = "identity"
	cfg.Genome.OutputActivation = "identity"
	require.NoError(t, cfg.Validate())
	g, reg, rng := newGenome(t, cfg, 1)
	// -1 -> 1 -> 0, then add 0 -> 1 which closes a cycle.
	require.NoError(t, g.MutateAddNode(rng, reg))
	for !g.HasConnection(0, 1) {
		require.NoError(t, g.MutateAddConnection(rng, reg))
	}
	for _, cg := range g.Connections {
		if cg.Enabled {
			cg.Weight = 1
		}
		if cg.Key.InNodeID == 0 && cg.Key.OutNodeID == 1 {
			assert.True(t, cg.Recurrent)
			cg.Weight = 2
		}
		// Drop anything else the mutation loop added.
		if cg.Key != (neat.ConnectionKey{InNodeID: -1, OutNodeID: 1}) &&
			cg.Key != (neat.ConnectionKey{InNodeID: 1, OutNodeID: 0}) &&
			cg.Key != (neat.ConnectionKey{InNodeID: 0, OutNodeID: 1}) {
			cg.Enabled = false
		}
	}

	net, err := Build(g)
	require.NoError(t, err)
	assert.Equal(t, 1, net.RecurrentEdges())
	// h(t) = x(t) + 2*o(t-1); o(t) = h(t)
	assert.Equal(t, []float64{1}, activate(t, net, 1))
	assert.Equal(t, []float64{3}, activate(t, net, 1))
	assert.Equal(t, []float64{6}, activate(t, net, 0))
}

func TestAllConnectionsDisabled(t *testing.T) {
	cfg := neat.DefaultConfig(2, 2)
	cfg.Genome.OutputActivation = "sigmoid"
	g, _, _ := newGenome(t, cfg, 1)
	for _, cg := range g.Connections {
		cg.Enabled = false
	}
	net, err := Build(g)
	require.NoError(t, err)
	out := activate(t, net, 3, 4)
	assert.Equal(t, []float64{0.5, 0.5}, out)
}

func TestBuildRequiresConfig(t *testing.T) {
	_, err := Build(&neat.Genome{Key: 3})
	require.Error(t, err)
}

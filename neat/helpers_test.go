package neat

import (
	"io"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig(t *testing.T, numInputs, numOutputs int) *Config {
	t.Helper()
	cfg := DefaultConfig(numInputs, numOutputs)
	cfg.Neat.Seed = 1
	require.NoError(t, cfg.Validate())
	return cfg
}

func testRNG() *rand.Rand {
	return rand.New(rand.NewSource(1))
}

// genomeWith builds a genome holding exactly the given in->out pairs, each with
// weight 1 and its innovation number taken from reg.
func genomeWith(key int, gc *GenomeConfig, reg *Registry, pairs ...[2]int) *Genome {
	g := NewGenome(key, gc)
	for _, p := range pairs {
		g.ensureNode(p[0])
		g.ensureNode(p[1])
		g.addConnection(reg.ConnectionInnovation(p[0], p[1]), ConnectionKey{p[0], p[1]}, 1, false)
	}
	return g
}

func innovationsOf(g *Genome) []int {
	out := make([]int, 0, len(g.Connections))
	for _, cg := range g.SortedConnections() {
		out = append(out, cg.Innovation)
	}
	return out
}

// requireIdentity checks that innovation numbers are unique per genome and mean the
// same endpoints in every genome.
func requireIdentity(t *testing.T, genomes ...*Genome) {
	t.Helper()
	seen := make(map[int]ConnectionKey)
	for _, g := range genomes {
		for innov, cg := range g.Connections {
			require.Equal(t, innov, cg.Innovation, "genome %d", g.Key)
			if key, ok := seen[innov]; ok {
				require.Equal(t, key, cg.Key, "innovation %d differs in genome %d", innov, g.Key)
			}
			seen[innov] = cg.Key
		}
		require.NoError(t, g.Validate())
	}
}

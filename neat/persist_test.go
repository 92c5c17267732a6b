package neat

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenomeFileRoundTrip(t *testing.T) {
	cfg := testConfig(t, 3, 1)
	cfg.Genome.AllowRecurrent = true
	reg := NewRegistry(1)
	rng := testRNG()
	g := NewGenome(7, &cfg.Genome)
	require.NoError(t, g.ConfigureNew(rng, reg))
	require.NoError(t, g.MutateAddNode(rng, reg))
	require.NoError(t, g.MutateAddConnection(rng, reg))
	g.Fitness = 12.5

	path := filepath.Join(t.TempDir(), "winner.json")
	require.NoError(t, SaveGenome(g, path))
	loaded, err := LoadGenome(path, &cfg.Genome)
	require.NoError(t, err)

	assert.Equal(t, g.Key, loaded.Key)
	assert.Equal(t, g.Fitness, loaded.Fitness)
	assert.Equal(t, g.Nodes, loaded.Nodes)
	assert.Equal(t, g.Connections, loaded.Connections)
	assert.Same(t, &cfg.Genome, loaded.Config)

	// The file is stable: saving the loaded genome gives the same bytes.
	again := filepath.Join(t.TempDir(), "again.json")
	require.NoError(t, SaveGenome(loaded, again))
	a, err := os.ReadFile(path)
	require.NoError(t, err)
	b, err := os.ReadFile(again)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDecodeGenomeErrors(t *testing.T) {
	cfg := testConfig(t, 2, 1)

	_, err := DecodeGenome([]byte(`{"version": 9}`), &cfg.Genome)
	assert.ErrorContains(t, err, "version")

	dup := `{"version":1,"key":1,"nodes":[{"key":0,"role":"output","layer":1,"activation":"tanh","aggregation":"sum"},{"key":0,"role":"output","layer":1,"activation":"tanh","aggregation":"sum"}],"connections":[]}`
	_, err = DecodeGenome([]byte(dup), &cfg.Genome)
	assert.ErrorContains(t, err, "duplicate node")

	// Node -1 is an input in this config.
	wrongRole := `{"version":1,"key":1,"nodes":[{"key":-1,"role":"output","layer":1,"activation":"tanh","aggregation":"sum"}],"connections":[]}`
	_, err = DecodeGenome([]byte(wrongRole), &cfg.Genome)
	assert.Error(t, err)

	_, err = LoadGenome(filepath.Join(t.TempDir(), "missing.json"), &cfg.Genome)
	assert.Error(t, err)
}

func TestGenomeJSONShape(t *testing.T) {
	cfg := testConfig(t, 1, 1)
	g := genomeWith(3, &cfg.Genome, NewRegistry(1), [2]int{-1, 0})
	data, err := json.Marshal(g)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.EqualValues(t, 1, raw["version"])
	assert.EqualValues(t, 3, raw["key"])
	conns := raw["connections"].([]any)
	require.Len(t, conns, 1)
	c := conns[0].(map[string]any)
	assert.EqualValues(t, 1, c["innovation"])
	assert.Equal(t, map[string]any{"in": -1.0, "out": 0.0}, c["key"])
	assert.NotContains(t, c, "recurrent")
}

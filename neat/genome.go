package neat

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Genome represents an individual organism in the population.
// It consists of NodeGenes and ConnectionGenes; connections are keyed by innovation number.
type Genome struct {
	Key             int
	Nodes           map[int]*NodeGene
	Connections     map[int]*ConnectionGene
	Fitness         float64
	AdjustedFitness float64
	Config          *GenomeConfig
}

// NewGenome creates an empty Genome with the specified key and config reference.
func NewGenome(key int, config *GenomeConfig) *Genome {
	return &Genome{
		Key:         key,
		Nodes:       make(map[int]*NodeGene),
		Connections: make(map[int]*ConnectionGene),
		Config:      config,
	}
}

// initialHiddenKeys returns the keys of the hidden nodes every generation-zero genome
// starts with. They directly follow the output keys, so the registry must be created
// with NewRegistry(NumOutputs + NumHidden).
func (gc *GenomeConfig) initialHiddenKeys() []int {
	keys := make([]int, gc.NumHidden)
	for i := range keys {
		keys[i] = gc.NumOutputs + i
	}
	return keys
}

// ConfigureNew initializes a generation-zero genome: input, bias, output and initial
// hidden nodes, plus the connections requested by initial_connection. Connection
// innovation numbers come from the registry so identical initial connections share
// them across the population.
func (g *Genome) ConfigureNew(rng *rand.Rand, reg *Registry) error {
	gc := g.Config
	fraction, err := gc.connectionFraction()
	if err != nil {
		return err
	}

	sources := make([]int, 0, gc.NumInputs+1)
	for _, k := range gc.InputKeys {
		g.Nodes[k] = NewNodeGene(k, RoleInput, 0, gc)
		sources = append(sources, k)
	}
	if gc.BiasNode {
		g.Nodes[gc.BiasKey] = NewNodeGene(gc.BiasKey, RoleBias, 0, gc)
		sources = append(sources, gc.BiasKey)
	}
	for _, k := range gc.OutputKeys {
		g.Nodes[k] = NewNodeGene(k, RoleOutput, 1, gc)
	}
	hidden := gc.initialHiddenKeys()
	for _, k := range hidden {
		g.Nodes[k] = NewNodeGene(k, RoleHidden, 0.5, gc)
	}

	if fraction == 0 {
		return nil
	}
	var pairs []ConnectionKey
	if len(hidden) == 0 {
		for _, in := range sources {
			for _, out := range gc.OutputKeys {
				pairs = append(pairs, ConnectionKey{in, out})
			}
		}
	} else {
		for _, in := range sources {
			for _, h := range hidden {
				pairs = append(pairs, ConnectionKey{in, h})
			}
		}
		for _, h := range hidden {
			for _, out := range gc.OutputKeys {
				pairs = append(pairs, ConnectionKey{h, out})
			}
		}
	}
	for _, p := range pairs {
		if fraction < 1 && rng.Float64() >= fraction {
			continue
		}
		g.addConnection(reg.ConnectionInnovation(p.InNodeID, p.OutNodeID), p, initWeight(rng, gc), false)
	}
	return nil
}

// nodeRole returns the role implied by a node key, for keys reserved by the config.
func (gc *GenomeConfig) nodeRole(key int) NodeRole {
	switch {
	case gc.IsInput(key):
		return RoleInput
	case gc.IsBias(key):
		return RoleBias
	case key >= 0 && key < gc.NumOutputs:
		return RoleOutput
	default:
		return RoleHidden
	}
}

// ensureNode adds the gene of a config-reserved node (input, bias or output) if the
// genome does not carry it yet.
func (g *Genome) ensureNode(key int) {
	if _, ok := g.Nodes[key]; ok {
		return
	}
	role := g.Config.nodeRole(key)
	layer := 0.0
	switch role {
	case RoleOutput:
		layer = 1
	case RoleHidden:
		layer = 0.5
	}
	g.Nodes[key] = NewNodeGene(key, role, layer, g.Config)
}

func (g *Genome) addConnection(innovation int, key ConnectionKey, weight float64, recurrent bool) *ConnectionGene {
	cg := &ConnectionGene{
		Innovation: innovation,
		Key:        key,
		Weight:     weight,
		Enabled:    true,
		Recurrent:  recurrent,
	}
	g.Connections[innovation] = cg
	return cg
}

// SortedConnections returns the connection genes in innovation order.
func (g *Genome) SortedConnections() []*ConnectionGene {
	conns := make([]*ConnectionGene, 0, len(g.Connections))
	for _, cg := range g.Connections {
		conns = append(conns, cg)
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].Innovation < conns[j].Innovation })
	return conns
}

// SortedNodeKeys returns the node keys in ascending order.
func (g *Genome) SortedNodeKeys() []int {
	keys := make([]int, 0, len(g.Nodes))
	for k := range g.Nodes {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// HasConnection reports whether the genome carries a connection in->out, enabled or not.
func (g *Genome) HasConnection(in, out int) bool {
	for _, cg := range g.Connections {
		if cg.Key.InNodeID == in && cg.Key.OutNodeID == out {
			return true
		}
	}
	return false
}

// EnabledCount returns the number of enabled connections.
func (g *Genome) EnabledCount() int {
	n := 0
	for _, cg := range g.Connections {
		if cg.Enabled {
			n++
		}
	}
	return n
}

// Size returns the number of hidden nodes and the number of enabled connections.
func (g *Genome) Size() (int, int) {
	hidden := 0
	for _, n := range g.Nodes {
		if n.Role == RoleHidden {
			hidden++
		}
	}
	return hidden, g.EnabledCount()
}

// Validate checks the structural invariants of the genome and returns an error
// describing the first violation found.
func (g *Genome) Validate() error {
	for _, k := range g.SortedNodeKeys() {
		if n := g.Nodes[k]; n.Key != k {
			return fmt.Errorf("genome %d: node stored under %d has key %d", g.Key, k, n.Key)
		}
	}
	seen := make(map[ConnectionKey]int, len(g.Connections))
	for _, cg := range g.SortedConnections() {
		if _, ok := g.Nodes[cg.Key.InNodeID]; !ok {
			return fmt.Errorf("genome %d: connection %d references missing node %d", g.Key, cg.Innovation, cg.Key.InNodeID)
		}
		if _, ok := g.Nodes[cg.Key.OutNodeID]; !ok {
			return fmt.Errorf("genome %d: connection %d references missing node %d", g.Key, cg.Innovation, cg.Key.OutNodeID)
		}
		if other, dup := seen[cg.Key]; dup {
			return fmt.Errorf("genome %d: connections %d and %d share pair %s", g.Key, other, cg.Innovation, cg.Key)
		}
		if g.Config != nil && (g.Config.IsInput(cg.Key.OutNodeID) || g.Config.IsBias(cg.Key.OutNodeID)) {
			return fmt.Errorf("genome %d: connection %d targets input node %d", g.Key, cg.Innovation, cg.Key.OutNodeID)
		}
		seen[cg.Key] = cg.Innovation
	}
	return nil
}

// CheckAlignment verifies every connection against the registry ledger.
func (g *Genome) CheckAlignment(reg *Registry) error {
	for _, cg := range g.SortedConnections() {
		want, ok := reg.Lookup(cg.Innovation)
		if !ok {
			return &AlignmentError{Innovation: cg.Innovation, GenomeKey: g.Key, Got: cg.Key}
		}
		if want != cg.Key {
			return &AlignmentError{Innovation: cg.Innovation, GenomeKey: g.Key, Got: cg.Key, Want: &want}
		}
	}
	return nil
}

// Copy creates a deep copy of the genome under a new key. Fitness is not copied.
func (g *Genome) Copy(key int) *Genome {
	c := NewGenome(key, g.Config)
	for k, n := range g.Nodes {
		c.Nodes[k] = n.Copy()
	}
	for k, cg := range g.Connections {
		c.Connections[k] = cg.Copy()
	}
	return c
}

// Distance calculates the genetic distance between this genome and another:
//
//	(c1*E + c2*D)/N + c3*W
//
// E counts excess genes, D disjoint genes, W is the mean absolute weight difference
// of matching genes and N the larger connection count, or 1 when both genomes are
// smaller than compatibility_normalize_threshold.
func (g *Genome) Distance(other *Genome) float64 {
	gc := g.Config
	maxA, maxB := g.maxInnovation(), other.maxInnovation()

	excess, disjoint, matching := 0, 0, 0
	weightDiff := 0.0
	// Walk the sorted union so both argument orders sum in the same order.
	for _, innov := range unionInnovations(g, other) {
		a, inA := g.Connections[innov]
		b, inB := other.Connections[innov]
		switch {
		case inA && inB:
			weightDiff += math.Abs(a.Weight - b.Weight)
			matching++
		case inA && innov > maxB, inB && innov > maxA:
			excess++
		default:
			disjoint++
		}
	}

	n := max(len(g.Connections), len(other.Connections))
	if n < gc.CompatibilityNormalizeThreshold || n < 1 {
		n = 1
	}
	d := (gc.CompatibilityExcessCoefficient*float64(excess) + gc.CompatibilityDisjointCoefficient*float64(disjoint)) / float64(n)
	if matching > 0 {
		d += gc.CompatibilityWeightCoefficient * weightDiff / float64(matching)
	}
	return d
}

// unionInnovations returns the innovation numbers carried by either genome in ascending order.
func unionInnovations(a, b *Genome) []int {
	seen := make(map[int]bool, len(a.Connections)+len(b.Connections))
	out := make([]int, 0, len(a.Connections)+len(b.Connections))
	for _, conns := range []map[int]*ConnectionGene{a.Connections, b.Connections} {
		for innov := range conns {
			if !seen[innov] {
				seen[innov] = true
				out = append(out, innov)
			}
		}
	}
	sort.Ints(out)
	return out
}

func (g *Genome) maxInnovation() int {
	m := 0
	for innov := range g.Connections {
		m = max(m, innov)
	}
	return m
}

// createsCycle reports whether adding a connection inNode->outNode would close a
// cycle, i.e. whether outNode already reaches inNode. Self loops count as cycles.
// With enabledOnly set, disabled connections are ignored.
func (g *Genome) createsCycle(inNode, outNode int, enabledOnly bool) bool {
	if inNode == outNode {
		return true
	}

	adjacency := make(map[int][]int)
	for _, cg := range g.Connections {
		if enabledOnly && !cg.Enabled {
			continue
		}
		adjacency[cg.Key.InNodeID] = append(adjacency[cg.Key.InNodeID], cg.Key.OutNodeID)
	}

	visited := map[int]bool{outNode: true}
	queue := []int{outNode}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == inNode {
			return true
		}
		for _, next := range adjacency[current] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// String returns a short summary of the genome.
func (g *Genome) String() string {
	hidden, enabled := g.Size()
	return fmt.Sprintf("Genome(Key: %d, Fitness: %.3f, Nodes: %d, Hidden: %d, Connections: %d/%d)",
		g.Key, g.Fitness, len(g.Nodes), hidden, enabled, len(g.Connections))
}

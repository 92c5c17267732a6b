package neat

import (
	"errors"
	"log/slog"
	"math/rand"
	"sort"
)

// MutationKind names one of the mutation operators.
type MutationKind int

const (
	AddNode MutationKind = iota
	AddConnection
	PerturbWeights
	ToggleEnable
)

func (k MutationKind) String() string {
	switch k {
	case AddNode:
		return "add_node"
	case AddConnection:
		return "add_connection"
	case PerturbWeights:
		return "perturb_weights"
	case ToggleEnable:
		return "toggle_enable"
	default:
		return "unknown"
	}
}

// MutationOp pairs an operator with the probability that it fires for one offspring.
type MutationOp struct {
	Kind MutationKind
	Prob float64
}

// Mutator applies the configured operators to offspring. Operators are tried in
// order and every one whose probability fires is applied.
type Mutator struct {
	Ops    []MutationOp
	Logger *slog.Logger
}

// NewMutator builds the operator table from the genome config.
func NewMutator(gc *GenomeConfig, logger *slog.Logger) *Mutator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mutator{
		Ops: []MutationOp{
			{AddNode, gc.NodeAddProb},
			{AddConnection, gc.ConnAddProb},
			{PerturbWeights, gc.WeightPerturbProb},
			{ToggleEnable, gc.ToggleEnableProb},
		},
		Logger: logger,
	}
}

// Mutate applies the operators to g and returns the kinds that changed it.
// Operators that find nothing to act on are skipped; any other error is returned.
func (m *Mutator) Mutate(g *Genome, rng *rand.Rand, reg *Registry) ([]MutationKind, error) {
	var applied []MutationKind
	for _, op := range m.Ops {
		if op.Prob <= 0 || rng.Float64() >= op.Prob {
			continue
		}
		var err error
		switch op.Kind {
		case AddNode:
			err = g.MutateAddNode(rng, reg)
		case AddConnection:
			err = g.MutateAddConnection(rng, reg)
		case PerturbWeights:
			g.MutateWeights(rng)
		case ToggleEnable:
			g.MutateToggleEnable(rng)
		}
		if err != nil {
			if errors.Is(err, ErrNoEligibleCandidate) {
				m.Logger.Debug("mutation skipped", "genome", g.Key, "op", op.Kind, "err", err)
				continue
			}
			return applied, err
		}
		applied = append(applied, op.Kind)
	}
	return applied, nil
}

// MutateAddConnection connects two nodes that are not yet connected. Without
// allow_recurrent the pair must not be connected in either direction and must not
// close a cycle; with it only exact duplicates are refused. The pair is chosen
// uniformly from all eligible pairs.
func (g *Genome) MutateAddConnection(rng *rand.Rand, reg *Registry) error {
	gc := g.Config

	keys := make(map[int]bool, len(g.Nodes)+gc.NumInputs+gc.NumOutputs+1)
	for k := range g.Nodes {
		keys[k] = true
	}
	for _, k := range gc.InputKeys {
		keys[k] = true
	}
	for _, k := range gc.OutputKeys {
		keys[k] = true
	}
	if gc.BiasNode {
		keys[gc.BiasKey] = true
	}
	nodes := make([]int, 0, len(keys))
	for k := range keys {
		nodes = append(nodes, k)
	}
	sort.Ints(nodes)

	existing := make(map[ConnectionKey]bool, len(g.Connections))
	for _, cg := range g.Connections {
		existing[cg.Key] = true
	}

	var candidates []ConnectionKey
	for _, in := range nodes {
		for _, out := range nodes {
			if gc.IsInput(out) || gc.IsBias(out) {
				continue
			}
			pair := ConnectionKey{in, out}
			if existing[pair] {
				continue
			}
			if !gc.AllowRecurrent {
				if existing[ConnectionKey{out, in}] || g.createsCycle(in, out, false) {
					continue
				}
			}
			candidates = append(candidates, pair)
		}
	}
	if len(candidates) == 0 {
		return &StructuralError{Op: AddConnection.String(), Reason: "every node pair is already connected"}
	}

	pair := candidates[rng.Intn(len(candidates))]
	recurrent := g.createsCycle(pair.InNodeID, pair.OutNodeID, false)
	g.ensureNode(pair.InNodeID)
	g.ensureNode(pair.OutNodeID)
	innov := reg.ConnectionInnovation(pair.InNodeID, pair.OutNodeID)
	g.addConnection(innov, pair, initWeight(rng, gc), recurrent)
	return nil
}

// MutateAddNode splits an enabled connection in->out into in->new->out. The original
// connection is disabled; in->new gets weight 1 and new->out the original weight, so
// the network computes the same function as long as the new node is linear.
func (g *Genome) MutateAddNode(rng *rand.Rand, reg *Registry) error {
	var enabled []*ConnectionGene
	for _, cg := range g.SortedConnections() {
		if cg.Enabled {
			enabled = append(enabled, cg)
		}
	}
	if len(enabled) == 0 {
		return &StructuralError{Op: AddNode.String(), Reason: "no enabled connection to split"}
	}

	split := enabled[rng.Intn(len(enabled))]
	newKey := reg.SplitInnovation(split.Innovation)
	if _, exists := g.Nodes[newKey]; exists {
		return &StructuralError{Op: AddNode.String(), Reason: "connection was already split in this genome"}
	}

	in, out := split.Key.InNodeID, split.Key.OutNodeID
	layer := (g.Nodes[in].Layer + g.Nodes[out].Layer) / 2
	node := NewNodeGene(newKey, RoleHidden, layer, g.Config)
	node.Activation = g.Config.SplitActivation
	g.Nodes[newKey] = node
	split.Enabled = false

	first := ConnectionKey{in, newKey}
	second := ConnectionKey{newKey, out}
	g.addConnection(reg.ConnectionInnovation(first.InNodeID, first.OutNodeID), first, 1.0, split.Recurrent)
	g.addConnection(reg.ConnectionInnovation(second.InNodeID, second.OutNodeID), second, split.Weight, false)
	return nil
}

// MutateWeights perturbs or replaces each connection weight independently.
func (g *Genome) MutateWeights(rng *rand.Rand) {
	for _, cg := range g.SortedConnections() {
		cg.Weight = mutateWeight(rng, cg.Weight, g.Config)
	}
}

// MutateToggleEnable flips each connection's enabled flag with enabled_mutate_rate.
// In feed-forward mode a connection is not re-enabled if that would close a cycle.
func (g *Genome) MutateToggleEnable(rng *rand.Rand) {
	for _, cg := range g.SortedConnections() {
		if rng.Float64() >= g.Config.EnabledMutateRate {
			continue
		}
		if !cg.Enabled && !g.Config.AllowRecurrent && g.createsCycle(cg.Key.InNodeID, cg.Key.OutNodeID, true) {
			continue
		}
		cg.Enabled = !cg.Enabled
	}
}

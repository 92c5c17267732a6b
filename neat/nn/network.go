package nn

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/baldhumanity/flappy-neat/neat"
)

// link is an incoming weighted edge of a neuron, addressed by value slot.
type link struct {
	from   int
	weight float64
}

// neuron is a node during network activation, with its functions resolved.
type neuron struct {
	Key           int
	slot          int
	ActivationFn  neat.ActivationFunc
	AggregationFn neat.AggregationFunc
	forward       []link // read the current tick
	recurrent     []link // read the previous tick
}

// Network is the phenotype of a genome. Enabled connections that close a cycle are
// evaluated as recurrent edges reading the previous tick's value of their source;
// the remaining edges form a DAG evaluated in topological order. The network keeps
// its state between calls to Activate until Reset is called.
type Network struct {
	InputKeys  []int
	OutputKeys []int

	inputSlots  []int
	outputSlots []int
	biasSlot    int // -1 without a bias node
	order       []*neuron

	cur, prev []float64
	scratch   []float64
}

// Build creates the phenotype of g.
func Build(g *neat.Genome) (*Network, error) {
	gc := g.Config
	if gc == nil {
		return nil, fmt.Errorf("genome %d has no config", g.Key)
	}

	keySet := make(map[int]bool, len(g.Nodes)+gc.NumInputs+gc.NumOutputs+1)
	for k := range g.Nodes {
		keySet[k] = true
	}
	for _, k := range gc.InputKeys {
		keySet[k] = true
	}
	for _, k := range gc.OutputKeys {
		keySet[k] = true
	}
	if gc.BiasNode {
		keySet[gc.BiasKey] = true
	}
	conns := g.SortedConnections()
	for _, cg := range conns {
		if cg.Enabled {
			keySet[cg.Key.InNodeID] = true
			keySet[cg.Key.OutNodeID] = true
		}
	}
	keys := make([]int, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	slots := make(map[int]int, len(keys))
	dag := simple.NewDirectedGraph()
	for i, k := range keys {
		slots[k] = i
		dag.AddNode(simple.Node(i))
	}

	neurons := make(map[int]*neuron, len(keys))
	for _, k := range keys {
		if gc.IsInput(k) || gc.IsBias(k) {
			continue
		}
		act, agg := gc.HiddenActivation, gc.Aggregation
		if n, ok := g.Nodes[k]; ok {
			act, agg = n.Activation, n.Aggregation
		} else if k >= 0 && k < gc.NumOutputs {
			act = gc.OutputActivation
		}
		actFn, err := neat.GetActivation(act)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", k, err)
		}
		aggFn, err := neat.GetAggregation(agg)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", k, err)
		}
		neurons[k] = &neuron{Key: k, slot: slots[k], ActivationFn: actFn, AggregationFn: aggFn}
	}

	// Edges are added in innovation order; an edge whose target already reaches its
	// source would close a cycle and is evaluated one tick late instead.
	for _, cg := range conns {
		if !cg.Enabled {
			continue
		}
		target, ok := neurons[cg.Key.OutNodeID]
		if !ok {
			return nil, fmt.Errorf("connection %d targets input node %d", cg.Innovation, cg.Key.OutNodeID)
		}
		from, to := slots[cg.Key.InNodeID], slots[cg.Key.OutNodeID]
		l := link{from: from, weight: cg.Weight}
		if cg.Recurrent || from == to || topo.PathExistsIn(dag, dag.Node(int64(to)), dag.Node(int64(from))) {
			target.recurrent = append(target.recurrent, l)
			continue
		}
		dag.SetEdge(dag.NewEdge(dag.Node(int64(from)), dag.Node(int64(to))))
		target.forward = append(target.forward, l)
	}

	sorted, err := topo.SortStabilized(dag, nil)
	if err != nil {
		return nil, fmt.Errorf("ordering genome %d: %w", g.Key, err)
	}

	net := &Network{
		InputKeys:  append([]int(nil), gc.InputKeys...),
		OutputKeys: append([]int(nil), gc.OutputKeys...),
		biasSlot:   -1,
		cur:        make([]float64, len(keys)),
		prev:       make([]float64, len(keys)),
	}
	for _, k := range gc.InputKeys {
		net.inputSlots = append(net.inputSlots, slots[k])
	}
	for _, k := range gc.OutputKeys {
		net.outputSlots = append(net.outputSlots, slots[k])
	}
	if gc.BiasNode {
		net.biasSlot = slots[gc.BiasKey]
	}
	for _, node := range sorted {
		if n, ok := neurons[keys[node.ID()]]; ok {
			net.order = append(net.order, n)
		}
	}
	return net, nil
}

// Activate feeds one tick of inputs through the network and returns the output values.
func (net *Network) Activate(inputs []float64) ([]float64, error) {
	if len(inputs) != len(net.inputSlots) {
		return nil, fmt.Errorf("mismatch between input count (%d) and network input nodes (%d)", len(inputs), len(net.inputSlots))
	}

	net.prev, net.cur = net.cur, net.prev
	for i, slot := range net.inputSlots {
		net.cur[slot] = inputs[i]
	}
	if net.biasSlot >= 0 {
		net.cur[net.biasSlot] = 1.0
	}

	for _, n := range net.order {
		in := net.scratch[:0]
		for _, l := range n.forward {
			in = append(in, net.cur[l.from]*l.weight)
		}
		for _, l := range n.recurrent {
			in = append(in, net.prev[l.from]*l.weight)
		}
		net.scratch = in
		net.cur[n.slot] = n.ActivationFn(n.AggregationFn(in))
	}

	outputs := make([]float64, len(net.outputSlots))
	for i, slot := range net.outputSlots {
		outputs[i] = net.cur[slot]
	}
	return outputs, nil
}

// Reset clears the state carried between ticks. Call it before every episode.
func (net *Network) Reset() {
	clear(net.cur)
	clear(net.prev)
}

// RecurrentEdges returns the number of edges evaluated against the previous tick.
func (net *Network) RecurrentEdges() int {
	n := 0
	for _, nr := range net.order {
		n += len(nr.recurrent)
	}
	return n
}

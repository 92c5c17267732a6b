package neat

import (
	"math/rand"
	"sort"
)

// Crossover creates a child genome by aligning the parents' connection genes on
// innovation number.
//
// Matching genes are taken from either parent at random and come out disabled with
// disable_inherit_prob when either copy is disabled. Disjoint and excess genes come
// from the fitter parent only; with equal fitness each one is kept with a coin flip.
// A gene whose endpoints are already connected in the child is skipped. Every parent
// gene must agree with the registry ledger, otherwise an *AlignmentError is returned.
func Crossover(childKey int, p1, p2 *Genome, rng *rand.Rand, reg *Registry) (*Genome, error) {
	if p1.Fitness < p2.Fitness {
		p1, p2 = p2, p1
	}
	equal := p1.Fitness == p2.Fitness
	gc := p1.Config

	if err := p1.CheckAlignment(reg); err != nil {
		return nil, err
	}
	if err := p2.CheckAlignment(reg); err != nil {
		return nil, err
	}

	innovations := make([]int, 0, len(p1.Connections)+len(p2.Connections))
	for innov := range p1.Connections {
		innovations = append(innovations, innov)
	}
	for innov := range p2.Connections {
		if _, ok := p1.Connections[innov]; !ok {
			innovations = append(innovations, innov)
		}
	}
	sort.Ints(innovations)

	child := NewGenome(childKey, gc)
	pairs := make(map[ConnectionKey]bool, len(innovations))
	for _, innov := range innovations {
		a, inA := p1.Connections[innov]
		b, inB := p2.Connections[innov]

		var gene *ConnectionGene
		switch {
		case inA && inB:
			gene = a.Copy()
			if rng.Float64() < 0.5 {
				gene = b.Copy()
			}
			gene.Enabled = true
			if !a.Enabled || !b.Enabled {
				gene.Enabled = rng.Float64() >= gc.DisableInheritProb
			}
		case inA:
			if equal && rng.Float64() < 0.5 {
				continue
			}
			gene = a.Copy()
		default:
			if !equal || rng.Float64() < 0.5 {
				continue
			}
			gene = b.Copy()
		}

		if pairs[gene.Key] {
			continue
		}
		pairs[gene.Key] = true
		child.Connections[innov] = gene
	}

	// The node set is exactly the endpoints of the inherited connections.
	for _, cg := range child.Connections {
		for _, key := range []int{cg.Key.InNodeID, cg.Key.OutNodeID} {
			if _, ok := child.Nodes[key]; ok {
				continue
			}
			if n, ok := p1.Nodes[key]; ok {
				child.Nodes[key] = n.Copy()
			} else if n, ok := p2.Nodes[key]; ok {
				child.Nodes[key] = n.Copy()
			} else {
				child.ensureNode(key)
			}
		}
	}
	return child, nil
}

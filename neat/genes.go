package neat

import (
	"fmt"
	"math/rand"
	"strings"
)

// NodeRole classifies a node gene.
type NodeRole int

const (
	RoleInput NodeRole = iota
	RoleBias
	RoleHidden
	RoleOutput
)

var roleNames = [...]string{"input", "bias", "hidden", "output"}

func (r NodeRole) String() string {
	if r < 0 || int(r) >= len(roleNames) {
		return fmt.Sprintf("NodeRole(%d)", int(r))
	}
	return roleNames[r]
}

// MarshalText encodes the role by name so saved genomes stay readable.
func (r NodeRole) MarshalText() ([]byte, error) {
	if r < 0 || int(r) >= len(roleNames) {
		return nil, fmt.Errorf("invalid node role %d", int(r))
	}
	return []byte(roleNames[r]), nil
}

func (r *NodeRole) UnmarshalText(text []byte) error {
	for i, name := range roleNames {
		if strings.EqualFold(name, string(text)) {
			*r = NodeRole(i)
			return nil
		}
	}
	return fmt.Errorf("invalid node role %q", text)
}

// --------------------------- NodeGene ---------------------------

// NodeGene represents a node (neuron) in the genome. Node genes are never mutated
// after creation; all evolvable state lives in the connections.
type NodeGene struct {
	Key         int      `json:"key"`
	Role        NodeRole `json:"role"`
	Layer       float64  `json:"layer"` // ordering hint: 0 for inputs and bias, 1 for outputs
	Activation  string   `json:"activation"`
	Aggregation string   `json:"aggregation"`
}

// NewNodeGene creates a node whose activation is chosen from its role.
func NewNodeGene(key int, role NodeRole, layer float64, config *GenomeConfig) *NodeGene {
	ng := &NodeGene{
		Key:         key,
		Role:        role,
		Layer:       layer,
		Activation:  "identity",
		Aggregation: config.Aggregation,
	}
	switch role {
	case RoleHidden:
		ng.Activation = config.HiddenActivation
	case RoleOutput:
		ng.Activation = config.OutputActivation
	}
	return ng
}

// String returns a string representation of the NodeGene.
func (ng *NodeGene) String() string {
	return fmt.Sprintf("NodeGene(Key: %d, Role: %s, Layer: %.2f, Activation: %s, Aggregation: %s)",
		ng.Key, ng.Role, ng.Layer, ng.Activation, ng.Aggregation)
}

// Copy creates a copy of the NodeGene.
func (ng *NodeGene) Copy() *NodeGene {
	c := *ng
	return &c
}

// --------------------------- ConnectionGene ---------------------------

// ConnectionKey is the structural identity of a connection: its endpoints.
type ConnectionKey struct {
	InNodeID  int `json:"in"`
	OutNodeID int `json:"out"`
}

func (k ConnectionKey) String() string {
	return fmt.Sprintf("%d->%d", k.InNodeID, k.OutNodeID)
}

// ConnectionGene represents a connection between two nodes in the genome. The
// innovation number is its historical marking and the alignment key for crossover.
type ConnectionGene struct {
	Innovation int           `json:"innovation"`
	Key        ConnectionKey `json:"key"`
	Weight     float64       `json:"weight"`
	Enabled    bool          `json:"enabled"`
	Recurrent  bool          `json:"recurrent,omitempty"` // set when the connection closed a cycle on insertion
}

// String returns a string representation of the ConnectionGene.
func (cg *ConnectionGene) String() string {
	return fmt.Sprintf("ConnGene(Innov: %d, Key: %s, Weight: %.3f, Enabled: %t, Recurrent: %t)",
		cg.Innovation, cg.Key, cg.Weight, cg.Enabled, cg.Recurrent)
}

// Copy creates a copy of the ConnectionGene.
func (cg *ConnectionGene) Copy() *ConnectionGene {
	c := *cg
	return &c
}

// --------------------------- Weight Helpers ---------------------------

// initWeight samples a fresh weight from the configured initialization distribution.
func initWeight(rng *rand.Rand, gc *GenomeConfig) float64 {
	var val float64
	switch strings.ToLower(gc.WeightInitType) {
	case "uniform":
		lo := max(gc.WeightMinValue, gc.WeightInitMean-2*gc.WeightInitStdev)
		hi := min(gc.WeightMaxValue, gc.WeightInitMean+2*gc.WeightInitStdev)
		if hi < lo {
			hi = lo
		}
		val = lo + rng.Float64()*(hi-lo)
	default:
		val = rng.NormFloat64()*gc.WeightInitStdev + gc.WeightInitMean
	}
	return clamp(val, gc.WeightMinValue, gc.WeightMaxValue)
}

// mutateWeight perturbs a weight with Gaussian noise, replaces it with a fresh sample,
// or leaves it alone, with probabilities weight_mutate_rate and weight_replace_rate.
func mutateWeight(rng *rand.Rand, w float64, gc *GenomeConfig) float64 {
	r := rng.Float64()
	if r < gc.WeightMutateRate {
		return clamp(w+rng.NormFloat64()*gc.WeightMutatePower, gc.WeightMinValue, gc.WeightMaxValue)
	}
	if r < gc.WeightMutateRate+gc.WeightReplaceRate {
		return initWeight(rng, gc)
	}
	return w
}

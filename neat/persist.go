package neat

import (
	"encoding/json"
	"fmt"
	"os"
)

const genomeFormatVersion = 1

// genomeJSON is the on-disk form of a genome: genes as lists in key and innovation
// order so that files diff cleanly.
type genomeJSON struct {
	Version     int               `json:"version"`
	Key         int               `json:"key"`
	Fitness     float64           `json:"fitness"`
	Nodes       []*NodeGene       `json:"nodes"`
	Connections []*ConnectionGene `json:"connections"`
}

// MarshalJSON encodes the genetic content of the genome plus its fitness.
func (g *Genome) MarshalJSON() ([]byte, error) {
	out := genomeJSON{
		Version:     genomeFormatVersion,
		Key:         g.Key,
		Fitness:     g.Fitness,
		Nodes:       make([]*NodeGene, 0, len(g.Nodes)),
		Connections: g.SortedConnections(),
	}
	for _, k := range g.SortedNodeKeys() {
		out.Nodes = append(out.Nodes, g.Nodes[k])
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a genome written by MarshalJSON. The config pointer is left
// untouched; LoadGenome sets it.
func (g *Genome) UnmarshalJSON(data []byte) error {
	var in genomeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Version != genomeFormatVersion {
		return fmt.Errorf("unsupported genome format version %d", in.Version)
	}
	g.Key = in.Key
	g.Fitness = in.Fitness
	g.Nodes = make(map[int]*NodeGene, len(in.Nodes))
	g.Connections = make(map[int]*ConnectionGene, len(in.Connections))
	for _, n := range in.Nodes {
		if _, dup := g.Nodes[n.Key]; dup {
			return fmt.Errorf("duplicate node %d", n.Key)
		}
		g.Nodes[n.Key] = n
	}
	for _, c := range in.Connections {
		if _, dup := g.Connections[c.Innovation]; dup {
			return fmt.Errorf("duplicate innovation %d", c.Innovation)
		}
		g.Connections[c.Innovation] = c
	}
	return g.Validate()
}

// SaveGenome writes a genome to path as indented JSON.
func SaveGenome(g *Genome, path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding genome %d: %w", g.Key, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing genome file '%s': %w", path, err)
	}
	return nil
}

// LoadGenome reads a genome written by SaveGenome and attaches config to it. The
// genome must fit the shape described by config.
func LoadGenome(path string, config *GenomeConfig) (*Genome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genome file '%s': %w", path, err)
	}
	return DecodeGenome(data, config)
}

// DecodeGenome decodes JSON genome data and attaches config to the result.
func DecodeGenome(data []byte, config *GenomeConfig) (*Genome, error) {
	g := &Genome{}
	if err := json.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("decoding genome: %w", err)
	}
	g.Config = config
	if err := g.Validate(); err != nil {
		return nil, err
	}
	for _, n := range g.Nodes {
		if n.Role != RoleHidden && n.Role != config.nodeRole(n.Key) {
			return nil, fmt.Errorf("genome %d: node %d is %s, config expects %s", g.Key, n.Key, n.Role, config.nodeRole(n.Key))
		}
	}
	return g, nil
}

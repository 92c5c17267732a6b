package neat

import (
	"sort"
	"sync"
)

// Registry hands out historical markings. Within one generation window the same
// structural mutation always receives the same innovation number, and splitting the
// same connection always yields the same node key. Reset opens a new window.
//
// The registry also keeps a ledger of every innovation ever issued, which crossover
// consults to detect misaligned genes.
type Registry struct {
	mu sync.Mutex

	connections map[ConnectionKey]int // this generation: endpoints -> innovation
	splits      map[int]int           // this generation: split innovation -> node key
	ledger      map[int]ConnectionKey // every innovation ever issued

	nextInnovation int
	nextNodeKey    int
	generation     int
}

// NewRegistry creates a registry whose first innovation is 1 and whose first
// allocated node key is firstNodeKey.
func NewRegistry(firstNodeKey int) *Registry {
	return &Registry{
		connections:    make(map[ConnectionKey]int),
		splits:         make(map[int]int),
		ledger:         make(map[int]ConnectionKey),
		nextInnovation: 1,
		nextNodeKey:    firstNodeKey,
	}
}

// ConnectionInnovation returns the innovation number of the in->out connection,
// allocating the next number if the pairing is new in this generation.
func (r *Registry) ConnectionInnovation(in, out int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := ConnectionKey{in, out}
	if innov, ok := r.connections[key]; ok {
		return innov
	}
	innov := r.nextInnovation
	r.nextInnovation++
	r.connections[key] = innov
	r.ledger[innov] = key
	return innov
}

// SplitInnovation returns the key of the node inserted into the connection with the
// given innovation number, allocating a new node key the first time it is split in
// this generation.
func (r *Registry) SplitInnovation(innovation int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if key, ok := r.splits[innovation]; ok {
		return key
	}
	key := r.nextNodeKey
	r.nextNodeKey++
	r.splits[innovation] = key
	return key
}

// NewNodeKey allocates a node key outside any split, used for the hidden nodes
// of the initial topology.
func (r *Registry) NewNodeKey() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := r.nextNodeKey
	r.nextNodeKey++
	return key
}

// Reset clears the per-generation maps. Counters and the ledger are kept.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.connections)
	clear(r.splits)
	r.generation++
}

// Generation returns the number of times Reset has been called.
func (r *Registry) Generation() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// Lookup returns the endpoints an innovation number was issued for.
func (r *Registry) Lookup(innovation int) (ConnectionKey, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.ledger[innovation]
	return key, ok
}

// Seed records the genes of a genome that was not produced through this registry,
// e.g. one read from disk, and moves the counters past them. Its pairings join the
// current window unless the window already numbers them, so genomes created afterwards
// share its innovations. An innovation already in the ledger with other endpoints is
// an *AlignmentError and leaves the registry untouched.
func (r *Registry) Seed(g *Genome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := g.SortedConnections()
	for _, cg := range conns {
		if want, ok := r.ledger[cg.Innovation]; ok && want != cg.Key {
			return &AlignmentError{Innovation: cg.Innovation, GenomeKey: g.Key, Got: cg.Key, Want: &want}
		}
	}
	for _, cg := range conns {
		r.ledger[cg.Innovation] = cg.Key
		if _, ok := r.connections[cg.Key]; !ok {
			r.connections[cg.Key] = cg.Innovation
		}
		if cg.Innovation >= r.nextInnovation {
			r.nextInnovation = cg.Innovation + 1
		}
	}
	for key := range g.Nodes {
		if key >= r.nextNodeKey {
			r.nextNodeKey = key + 1
		}
	}
	return nil
}

// RegistryState is the serialisable form of a Registry.
type RegistryState struct {
	Ledger         map[int]ConnectionKey
	Connections    map[ConnectionKey]int
	Splits         map[int]int
	NextInnovation int
	NextNodeKey    int
	Generation     int
}

// State returns a snapshot of the registry.
func (r *Registry) State() RegistryState {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := RegistryState{
		Ledger:         make(map[int]ConnectionKey, len(r.ledger)),
		Connections:    make(map[ConnectionKey]int, len(r.connections)),
		Splits:         make(map[int]int, len(r.splits)),
		NextInnovation: r.nextInnovation,
		NextNodeKey:    r.nextNodeKey,
		Generation:     r.generation,
	}
	for k, v := range r.ledger {
		s.Ledger[k] = v
	}
	for k, v := range r.connections {
		s.Connections[k] = v
	}
	for k, v := range r.splits {
		s.Splits[k] = v
	}
	return s
}

// RestoreRegistry rebuilds a registry from a snapshot.
func RestoreRegistry(s RegistryState) *Registry {
	r := NewRegistry(s.NextNodeKey)
	r.nextInnovation = s.NextInnovation
	r.generation = s.Generation
	for k, v := range s.Ledger {
		r.ledger[k] = v
	}
	for k, v := range s.Connections {
		r.connections[k] = v
	}
	for k, v := range s.Splits {
		r.splits[k] = v
	}
	return r
}

// Innovations returns every innovation number in the ledger in ascending order.
func (r *Registry) Innovations() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, 0, len(r.ledger))
	for innov := range r.ledger {
		out = append(out, innov)
	}
	sort.Ints(out)
	return out
}

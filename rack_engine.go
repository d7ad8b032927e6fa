// rack_engine.go - Patch graph construction and per-block execution

package main

import (
	"fmt"
	"math/rand"
	"sync"
)

// Cable is a directed patch cord between two module ports. Fan-out (one
// output feeding many cables) and fan-in (many cables into one input, summed)
// are both allowed.
type Cable struct {
	FromModule string `json:"fromModule"`
	FromPort   string `json:"fromPort"`
	ToModule   string `json:"toModule"`
	ToPort     string `json:"toPort"`
}

// inputBinding is the precomputed fan-in for one input port: the destination
// buffer, its unpatched reference voltage, and the source buffers summed into
// it each tick. Delayed sources read a snapshot of the previous block.
type inputBinding struct {
	dst     []float32
	def     float32
	direct  [][]float32
	delayed [][]float32
}

// delaySnap carries one feedback edge's source output across the block
// boundary. buf is refreshed from src after every tick, so readers always see
// the value produced in the previous block.
type delaySnap struct {
	src []float32
	buf []float32
}

// execStep is one module in computed execution order plus its input wiring.
type execStep struct {
	module   *ModuleInstance
	bindings []inputBinding
}

// Rack owns the module instances, the cable list and the execution plan.
// Topology mutation is serialized with ticks: every public method takes the
// rack mutex, so a mutation can never interleave with a running block.
type Rack struct {
	mu sync.Mutex

	sampleRate int
	blockSize  int
	registry   *Registry
	midi       MIDISource
	rng        *rand.Rand

	modules []*ModuleInstance
	byID    map[string]*ModuleInstance
	cables  []Cable

	steps     []execStep
	snaps     []*delaySnap
	delayed   map[int]bool // cable index -> resolved with one block of delay
	planStale bool
}

// NewRack creates an empty rack. The registry and MIDI source are explicit
// dependencies; the rack never falls back to ambient lookups.
func NewRack(registry *Registry, midi MIDISource, sampleRate, blockSize int) *Rack {
	if sampleRate <= 0 {
		sampleRate = DEFAULT_SAMPLE_RATE
	}
	if blockSize <= 0 {
		blockSize = DEFAULT_BLOCK_SIZE
	}
	if midi == nil {
		midi = NewMIDIQueue()
	}
	return &Rack{
		sampleRate: sampleRate,
		blockSize:  blockSize,
		registry:   registry,
		midi:       midi,
		rng:        rand.New(rand.NewSource(1)),
		byID:       make(map[string]*ModuleInstance),
		delayed:    make(map[int]bool),
	}
}

func (rk *Rack) SampleRate() int { return rk.sampleRate }
func (rk *Rack) BlockSize() int  { return rk.blockSize }

// AddModule instantiates a kind and places it in the rack.
func (rk *Rack) AddModule(kindType, id string, row int) (*ModuleInstance, error) {
	rk.mu.Lock()
	defer rk.mu.Unlock()

	if id == "" {
		return nil, fmt.Errorf("add module: empty instance id")
	}
	if _, dup := rk.byID[id]; dup {
		return nil, fmt.Errorf("add module: duplicate instance id %q", id)
	}
	kind, ok := rk.registry.Lookup(kindType)
	if !ok {
		return nil, fmt.Errorf("add module %q: unknown kind %q", id, kindType)
	}
	m := kind.Factory(ModuleConfig{
		SampleRate: rk.sampleRate,
		BlockSize:  rk.blockSize,
		MIDI:       rk.midi,
		Rand:       rand.New(rand.NewSource(rk.rng.Int63())),
	})
	m.ID = id
	m.Row = row
	rk.modules = append(rk.modules, m)
	rk.byID[id] = m
	rk.planStale = true
	return m, nil
}

// RemoveModule destroys an instance and drops every cable touching it.
func (rk *Rack) RemoveModule(id string) {
	rk.mu.Lock()
	defer rk.mu.Unlock()

	m, ok := rk.byID[id]
	if !ok {
		return
	}
	delete(rk.byID, id)
	for i, mm := range rk.modules {
		if mm == m {
			rk.modules = append(rk.modules[:i], rk.modules[i+1:]...)
			break
		}
	}
	kept := rk.cables[:0]
	for _, c := range rk.cables {
		if c.FromModule != id && c.ToModule != id {
			kept = append(kept, c)
		}
	}
	rk.cables = kept
	rk.planStale = true
}

// Module returns the instance with the given id.
func (rk *Rack) Module(id string) (*ModuleInstance, bool) {
	rk.mu.Lock()
	defer rk.mu.Unlock()
	m, ok := rk.byID[id]
	return m, ok
}

// Modules returns the instances in insertion order.
func (rk *Rack) Modules() []*ModuleInstance {
	rk.mu.Lock()
	defer rk.mu.Unlock()
	out := make([]*ModuleInstance, len(rk.modules))
	copy(out, rk.modules)
	return out
}

// Cables returns the cable list in declaration order.
func (rk *Rack) Cables() []Cable {
	rk.mu.Lock()
	defer rk.mu.Unlock()
	out := make([]Cable, len(rk.cables))
	copy(out, rk.cables)
	return out
}

// Connect validates both endpoints and appends the cable. A cable with a
// missing module or undeclared port is rejected, never silently kept.
func (rk *Rack) Connect(c Cable) error {
	rk.mu.Lock()
	defer rk.mu.Unlock()

	from, ok := rk.byID[c.FromModule]
	if !ok {
		return fmt.Errorf("connect: no module %q", c.FromModule)
	}
	to, ok := rk.byID[c.ToModule]
	if !ok {
		return fmt.Errorf("connect: no module %q", c.ToModule)
	}
	if !from.hasOutput(c.FromPort) {
		return fmt.Errorf("connect: %s has no output %q", c.FromModule, c.FromPort)
	}
	if !to.hasInput(c.ToPort) {
		return fmt.Errorf("connect: %s has no input %q", c.ToModule, c.ToPort)
	}
	rk.cables = append(rk.cables, c)
	rk.planStale = true
	return nil
}

// Disconnect removes the first cable matching c.
func (rk *Rack) Disconnect(c Cable) {
	rk.mu.Lock()
	defer rk.mu.Unlock()
	for i, cc := range rk.cables {
		if cc == c {
			rk.cables = append(rk.cables[:i], rk.cables[i+1:]...)
			rk.planStale = true
			return
		}
	}
}

// DelayedCables returns the cables resolved as feedback edges by the last
// build, in declaration order.
func (rk *Rack) DelayedCables() []Cable {
	rk.mu.Lock()
	defer rk.mu.Unlock()
	rk.rebuildLocked()
	var out []Cable
	for i, c := range rk.cables {
		if rk.delayed[i] {
			out = append(out, c)
		}
	}
	return out
}

// rebuildLocked recomputes the execution plan. Cables are walked in
// declaration order; any cable whose direct edge would close a cycle (a
// self-patch included) is marked delayed and its reads resolve to the
// previous block. The choice depends only on declaration order, so a given
// patch always schedules identically across rebuilds.
func (rk *Rack) rebuildLocked() {
	if !rk.planStale {
		return
	}
	rk.planStale = false

	index := make(map[*ModuleInstance]int, len(rk.modules))
	for i, m := range rk.modules {
		index[m] = i
	}

	n := len(rk.modules)
	adj := make([][]int, n)
	rk.delayed = make(map[int]bool)
	for ci, c := range rk.cables {
		u := index[rk.byID[c.FromModule]]
		v := index[rk.byID[c.ToModule]]
		if u == v || reaches(adj, v, u) {
			rk.delayed[ci] = true
			continue
		}
		adj[u] = append(adj[u], v)
	}

	// Kahn's algorithm; ties broken by module insertion order so the
	// schedule is deterministic.
	indeg := make([]int, n)
	for _, vs := range adj {
		for _, v := range vs {
			indeg[v]++
		}
	}
	order := make([]int, 0, n)
	done := make([]bool, n)
	for len(order) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && indeg[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			// Unreachable: delayed-edge selection leaves adj acyclic.
			break
		}
		done[next] = true
		order = append(order, next)
		for _, v := range adj[next] {
			indeg[v]--
		}
	}

	// One snapshot buffer per feedback source port, shared by every delayed
	// cable reading it.
	rk.snaps = nil
	type snapKey struct {
		mod  int
		port string
	}
	snapFor := make(map[snapKey]*delaySnap)
	for ci, c := range rk.cables {
		if !rk.delayed[ci] {
			continue
		}
		key := snapKey{index[rk.byID[c.FromModule]], c.FromPort}
		if _, ok := snapFor[key]; !ok {
			s := &delaySnap{
				src: rk.byID[c.FromModule].Outputs[c.FromPort],
				buf: make([]float32, rk.blockSize),
			}
			snapFor[key] = s
			rk.snaps = append(rk.snaps, s)
		}
	}

	rk.steps = make([]execStep, 0, n)
	for _, mi := range order {
		m := rk.modules[mi]
		step := execStep{module: m}
		for _, p := range m.Kind.Inputs {
			b := inputBinding{dst: m.Inputs[p.Name], def: p.Default}
			for ci, c := range rk.cables {
				if c.ToModule != m.ID || c.ToPort != p.Name {
					continue
				}
				if rk.delayed[ci] {
					key := snapKey{index[rk.byID[c.FromModule]], c.FromPort}
					b.delayed = append(b.delayed, snapFor[key].buf)
				} else {
					b.direct = append(b.direct, rk.byID[c.FromModule].Outputs[c.FromPort])
				}
			}
			step.bindings = append(step.bindings, b)
		}
		rk.steps = append(rk.steps, step)
	}
}

// Tick executes one full graph pass: for each module in order, sum its
// cabled inputs (or fill the unpatched reference), then run its transition
// function exactly once. Outputs become readable downstream only after the
// function returns. Feedback snapshots are refreshed last, so delayed edges
// always read the prior block.
func (rk *Rack) Tick() {
	rk.mu.Lock()
	defer rk.mu.Unlock()
	rk.rebuildLocked()

	for si := range rk.steps {
		step := &rk.steps[si]
		for bi := range step.bindings {
			b := &step.bindings[bi]
			if len(b.direct) == 0 && len(b.delayed) == 0 {
				for i := range b.dst {
					b.dst[i] = b.def
				}
				continue
			}
			for i := range b.dst {
				b.dst[i] = 0
			}
			for _, src := range b.direct {
				for i := range b.dst {
					b.dst[i] += src[i]
				}
			}
			for _, src := range b.delayed {
				for i := range b.dst {
					b.dst[i] += src[i]
				}
			}
		}
		step.module.Process()
	}

	for _, s := range rk.snaps {
		copy(s.buf, s.src)
	}
}

// RenderBlock runs one tick and mixes every audio-out module's summed inputs
// into the supplied stereo buffers. Slices must be blockSize long.
func (rk *Rack) RenderBlock(left, right []float32) {
	rk.Tick()

	rk.mu.Lock()
	defer rk.mu.Unlock()
	for i := range left {
		left[i] = 0
		right[i] = 0
	}
	for _, m := range rk.modules {
		if m.Kind.Type != MODULE_AUDIO_OUT {
			continue
		}
		level := m.ParamClamped("level")
		l := m.Inputs["left"]
		r := m.Inputs["right"]
		for i := range left {
			left[i] += l[i] / AUDIO_MAX * level
			right[i] += r[i] / AUDIO_MAX * level
		}
	}
	for i := range left {
		left[i] = clamp32(left[i], -1, 1)
		right[i] = clamp32(right[i], -1, 1)
	}
}

// reaches reports whether dst is reachable from src over direct edges.
func reaches(adj [][]int, src, dst int) bool {
	if src == dst {
		return true
	}
	seen := make([]bool, len(adj))
	stack := []int{src}
	seen[src] = true
	for len(stack) > 0 {
		u := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, v := range adj[u] {
			if v == dst {
				return true
			}
			if !seen[v] {
				seen[v] = true
				stack = append(stack, v)
			}
		}
	}
	return false
}

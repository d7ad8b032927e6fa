// module_contract.go - Module kind and instance contract shared by all DSP modules

package main

import "math/rand"

// ModuleConfig is handed to a kind's factory when the rack instantiates it.
// MIDI and Rand are injected so module state machines never reach for
// process-wide singletons.
type ModuleConfig struct {
	SampleRate int
	BlockSize  int
	MIDI       MIDISource
	Rand       *rand.Rand
}

// GetRand returns the injected random source, creating a deterministic
// fallback on first use so unconfigured instances are still reproducible.
func (c *ModuleConfig) GetRand() *rand.Rand {
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(1))
	}
	return c.Rand
}

// ControlSpec describes one front-panel control of a module kind.
type ControlSpec struct {
	Name    string  // Parameter name written by the UI layer
	Kind    string  // "knob", "switch" or "button"
	Label   string  // Display label
	Min     float32 // Lowest parameter value
	Max     float32 // Highest parameter value
	Default float32 // Value used when the parameter is absent
	Steps   int     // Number of positions for switches (0 for knobs)
}

// PortSpec describes an input or output port of a module kind.
// Default is the "unpatched" reference voltage summed into an input that has
// no cables; most ports leave it at zero.
type PortSpec struct {
	Name    string
	Label   string
	Default float32
}

// ModuleKind is the immutable definition of a module type. Registered once
// with a Registry, never mutated afterwards.
type ModuleKind struct {
	Type         string // Stable identifier used in patches
	Name         string // Display name
	Width        int    // Panel width in HP
	Color        string // Panel color
	Category     string // Browser category
	Inputs       []PortSpec
	Outputs      []PortSpec
	Controls     []ControlSpec
	CustomRender bool // Kind draws its own panel instead of the declared controls
	Factory      func(ModuleConfig) *ModuleInstance
}

// moduleState is the private per-kind DSP state machine. process consumes the
// instance's current input buffers and parameters and fills its output
// buffers; it runs exactly once per block and must not block or allocate on
// the hot path. reset restores power-on state without touching parameters.
type moduleState interface {
	process(m *ModuleInstance)
	reset()
}

// ModuleInstance is one placed module: parameters, fixed-length port buffers,
// telemetry scalars and private DSP state. All buffers keep length
// cfg.BlockSize for the instance's entire life.
type ModuleInstance struct {
	ID      string
	Kind    *ModuleKind
	Row     int
	Params  map[string]float32
	Inputs  map[string][]float32
	Outputs map[string][]float32
	LEDs    map[string]float32

	cfg   ModuleConfig
	state moduleState
}

// newInstance allocates an instance with buffers and default parameters per
// the kind's declared ports and controls. All factories funnel through here.
func (k *ModuleKind) newInstance(cfg ModuleConfig, state moduleState) *ModuleInstance {
	m := &ModuleInstance{
		Kind:    k,
		Params:  make(map[string]float32, len(k.Controls)),
		Inputs:  make(map[string][]float32, len(k.Inputs)),
		Outputs: make(map[string][]float32, len(k.Outputs)),
		LEDs:    make(map[string]float32),
		cfg:     cfg,
		state:   state,
	}
	for _, c := range k.Controls {
		m.Params[c.Name] = c.Default
	}
	for _, p := range k.Inputs {
		m.Inputs[p.Name] = make([]float32, cfg.BlockSize)
	}
	for _, p := range k.Outputs {
		m.Outputs[p.Name] = make([]float32, cfg.BlockSize)
	}
	return m
}

// Param returns a parameter value, substituting the control's declared
// default when the parameter is missing. Never fails: the engine calls
// process unconditionally every block.
func (m *ModuleInstance) Param(name string) float32 {
	if v, ok := m.Params[name]; ok {
		return v
	}
	for _, c := range m.Kind.Controls {
		if c.Name == name {
			return c.Default
		}
	}
	return 0
}

// ParamClamped returns a parameter bounded to the control's declared range.
func (m *ModuleInstance) ParamClamped(name string) float32 {
	v := m.Param(name)
	for _, c := range m.Kind.Controls {
		if c.Name == name {
			return clamp32(v, c.Min, c.Max)
		}
	}
	return v
}

// Process runs the module's transition function for one block.
func (m *ModuleInstance) Process() {
	m.state.process(m)
}

// hasInput reports whether the kind declares the named input port.
func (m *ModuleInstance) hasInput(port string) bool {
	_, ok := m.Inputs[port]
	return ok
}

// hasOutput reports whether the kind declares the named output port.
func (m *ModuleInstance) hasOutput(port string) bool {
	_, ok := m.Outputs[port]
	return ok
}

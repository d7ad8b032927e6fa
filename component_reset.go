// component_reset.go - Reset() methods for the rack and module instances

package main

// ModuleInstance.Reset reinitializes the private DSP state and zeroes the
// port buffers and telemetry. Parameters are untouched and buffer identities
// are preserved: no reallocation, existing cable bindings stay valid.
func (m *ModuleInstance) Reset() {
	m.state.reset()
	for _, buf := range m.Outputs {
		for i := range buf {
			buf[i] = 0
		}
	}
	for _, buf := range m.Inputs {
		for i := range buf {
			buf[i] = 0
		}
	}
	for name := range m.LEDs {
		m.LEDs[name] = 0
	}
}

// Rack.Reset restores every module to power-on-equivalent state. Topology
// and parameters survive; feedback snapshots are cleared so the first block
// after reset reads silence across delayed edges.
func (rk *Rack) Reset() {
	rk.mu.Lock()
	defer rk.mu.Unlock()

	for _, m := range rk.modules {
		m.Reset()
	}
	for _, s := range rk.snaps {
		for i := range s.buf {
			s.buf[i] = 0
		}
	}
}

// integration_test.go - End-to-end patch rendering tests

package main

import "testing"

// buildSynthVoice wires the classic subtractive chain: MIDI voices drive a
// VCO and an ADSR, the envelope opens a VCA, the VCA feeds the output.
func buildSynthVoice(t *testing.T) (*Rack, *MIDIQueue) {
	t.Helper()
	reg := NewRegistry()
	if err := RegisterBuiltins(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	q := NewMIDIQueue()
	rk := NewRack(reg, q, DEFAULT_SAMPLE_RATE, DEFAULT_BLOCK_SIZE)

	for _, add := range []struct{ kind, id string }{
		{"midivoices", "keys"},
		{"vco", "osc"},
		{"adsr", "env"},
		{"vca", "amp"},
		{"audioout", "main"},
	} {
		if _, err := rk.AddModule(add.kind, add.id, 0); err != nil {
			t.Fatalf("add %s: %v", add.id, err)
		}
	}
	for _, c := range []Cable{
		{FromModule: "keys", FromPort: "pitch1", ToModule: "osc", ToPort: "pitch"},
		{FromModule: "keys", FromPort: "gate1", ToModule: "env", ToPort: "gate"},
		{FromModule: "osc", FromPort: "out", ToModule: "amp", ToPort: "in"},
		{FromModule: "env", FromPort: "env", ToModule: "amp", ToPort: "cv"},
		{FromModule: "amp", FromPort: "out", ToModule: "main", ToPort: "left"},
		{FromModule: "amp", FromPort: "out", ToModule: "main", ToPort: "right"},
	} {
		if err := rk.Connect(c); err != nil {
			t.Fatalf("connect %+v: %v", c, err)
		}
	}
	return rk, q
}

func renderPeak(rk *Rack, blocks int) float32 {
	left := make([]float32, rk.BlockSize())
	right := make([]float32, rk.BlockSize())
	var peak float32
	for b := 0; b < blocks; b++ {
		rk.RenderBlock(left, right)
		for i := range left {
			if a := abs32(left[i]); a > peak {
				peak = a
			}
		}
	}
	return peak
}

func TestIntegration_NoteProducesAudio(t *testing.T) {
	rk, q := buildSynthVoice(t)

	if peak := renderPeak(rk, 20); peak != 0 {
		t.Fatalf("silence expected before any note, got peak %v", peak)
	}

	q.PushNote(0, NOTE_ON, 69, 100) // A4
	if peak := renderPeak(rk, 100); peak <= 0.01 {
		t.Fatalf("note produced no audio, peak %v", peak)
	}

	// Release and let the envelope die: back to silence.
	q.PushNote(0, NOTE_OFF, 69, 0)
	renderPeak(rk, 800) // ride out the release tail
	if peak := renderPeak(rk, 20); peak > 1e-3 {
		t.Errorf("audio after release tail, peak %v", peak)
	}
}

func TestIntegration_RenderIsDeterministic(t *testing.T) {
	run := func() []float32 {
		rk, q := buildSynthVoice(t)
		q.PushNote(0, NOTE_ON, 60, 100)
		left := make([]float32, rk.BlockSize())
		right := make([]float32, rk.BlockSize())
		var out []float32
		for b := 0; b < 50; b++ {
			rk.RenderBlock(left, right)
			out = append(out, left...)
		}
		return out
	}
	a := run()
	b := run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("render diverged at sample %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestIntegration_PatchFileDrivesRack(t *testing.T) {
	reg := NewRegistry()
	if err := RegisterBuiltins(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	p, err := ParsePatch([]byte(`{
		"name": "drone",
		"modules": [
			{"type": "vco", "instanceId": "osc", "row": 0},
			{"type": "audioout", "instanceId": "main", "row": 0}
		],
		"knobs": {"osc": {"freq": 0.5}},
		"cables": [
			{"fromModule": "osc", "fromPort": "out", "toModule": "main", "toPort": "left"},
			{"fromModule": "osc", "fromPort": "out", "toModule": "main", "toPort": "right"}
		]
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	rk := NewRack(reg, nil, DEFAULT_SAMPLE_RATE, DEFAULT_BLOCK_SIZE)
	if skipped := p.Apply(rk); skipped != 0 {
		t.Fatalf("apply skipped %d", skipped)
	}
	if peak := renderPeak(rk, 10); peak <= 0.1 {
		t.Errorf("drone patch silent, peak %v", peak)
	}
}

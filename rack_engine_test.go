// rack_engine_test.go - Graph construction, scheduling and feedback tests

package main

import (
	"testing"
)

// testConstKind emits a fixed voltage on its single output. Test-only.
func testConstKind() *ModuleKind {
	k := &ModuleKind{
		Type:     "testconst",
		Name:     "Const",
		Width:    2,
		Color:    "#000000",
		Category: "Test",
		Outputs:  []PortSpec{{Name: "out", Label: "Out"}},
		Controls: []ControlSpec{
			{Name: "value", Kind: "knob", Label: "V", Min: -10, Max: 10, Default: 0},
		},
	}
	k.Factory = func(cfg ModuleConfig) *ModuleInstance {
		return k.newInstance(cfg, &testConstState{})
	}
	return k
}

type testConstState struct{}

func (st *testConstState) reset() {}

func (st *testConstState) process(m *ModuleInstance) {
	v := m.Param("value")
	out := m.Outputs["out"]
	for i := range out {
		out[i] = v
	}
}

func newTestRack(t *testing.T) *Rack {
	t.Helper()
	reg := NewRegistry()
	if err := RegisterBuiltins(reg); err != nil {
		t.Fatalf("register builtins: %v", err)
	}
	if err := reg.Register(testConstKind()); err != nil {
		t.Fatalf("register test kind: %v", err)
	}
	return NewRack(reg, NewMIDIQueue(), DEFAULT_SAMPLE_RATE, DEFAULT_BLOCK_SIZE)
}

func mustAdd(t *testing.T, rk *Rack, kind, id string) *ModuleInstance {
	t.Helper()
	m, err := rk.AddModule(kind, id, 0)
	if err != nil {
		t.Fatalf("add %s %s: %v", kind, id, err)
	}
	return m
}

func mustConnect(t *testing.T, rk *Rack, from, fromPort, to, toPort string) {
	t.Helper()
	c := Cable{FromModule: from, FromPort: fromPort, ToModule: to, ToPort: toPort}
	if err := rk.Connect(c); err != nil {
		t.Fatalf("connect %s.%s -> %s.%s: %v", from, fromPort, to, toPort, err)
	}
}

func TestRack_FanInSums(t *testing.T) {
	rk := newTestRack(t)
	a := mustAdd(t, rk, "testconst", "a")
	b := mustAdd(t, rk, "testconst", "b")
	mix := mustAdd(t, rk, "mixer", "mix")
	a.Params["value"] = 1.5
	b.Params["value"] = 2.25
	mustConnect(t, rk, "a", "out", "mix", "in1")
	mustConnect(t, rk, "b", "out", "mix", "in1")

	rk.Tick()

	want := float32(1.5 + 2.25)
	if got := mix.Inputs["in1"][0]; got != want {
		t.Errorf("fan-in sum = %v, want %v", got, want)
	}
	if got := mix.Outputs["out"][0]; got != want {
		t.Errorf("mixer out = %v, want %v (unity levels, no clipping)", got, want)
	}
}

func TestRack_MixerNeverClips(t *testing.T) {
	rk := newTestRack(t)
	a := mustAdd(t, rk, "testconst", "a")
	b := mustAdd(t, rk, "testconst", "b")
	mix := mustAdd(t, rk, "mixer", "mix")
	a.Params["value"] = 4
	b.Params["value"] = 4
	mustConnect(t, rk, "a", "out", "mix", "in1")
	mustConnect(t, rk, "b", "out", "mix", "in2")

	rk.Tick()

	// 8V exceeds the audio range; the mixer must pass it through untouched.
	if got := mix.Outputs["out"][0]; got != 8 {
		t.Errorf("mixer out = %v, want exact sum 8", got)
	}
}

func TestRack_TopologicalOrder(t *testing.T) {
	// Modules added in reverse of signal-flow order. A single tick must still
	// propagate the value through the whole chain, which only happens when the
	// schedule is topological rather than insertion-ordered.
	rk := newTestRack(t)
	amp := mustAdd(t, rk, "vca", "amp")
	src := mustAdd(t, rk, "testconst", "src")
	src.Params["value"] = 3
	mustConnect(t, rk, "src", "out", "amp", "in")

	rk.Tick()

	// Unpatched CV normalizes to full scale, so the VCA passes at unity.
	if got := amp.Outputs["out"][0]; got != 3 {
		t.Errorf("vca out = %v, want 3 after one tick", got)
	}
}

func TestRack_UnpatchedInputReadsDefault(t *testing.T) {
	rk := newTestRack(t)
	amp := mustAdd(t, rk, "vca", "amp")
	rk.Tick()

	if got := amp.Inputs["cv"][0]; got != CV_MAX {
		t.Errorf("unpatched cv input = %v, want declared default %v", got, float32(CV_MAX))
	}
	if got := amp.Inputs["in"][0]; got != 0 {
		t.Errorf("unpatched in input = %v, want 0", got)
	}
}

func TestRack_FeedbackCableIsDelayedOneBlock(t *testing.T) {
	// src(1V) -> mix.in1, mix.out -> mix.in2. The self-cable must resolve as
	// delayed, so the output grows by exactly 1V per tick.
	rk := newTestRack(t)
	src := mustAdd(t, rk, "testconst", "src")
	mix := mustAdd(t, rk, "mixer", "mix")
	src.Params["value"] = 1
	mustConnect(t, rk, "src", "out", "mix", "in1")
	mustConnect(t, rk, "mix", "out", "mix", "in2")

	delayed := rk.DelayedCables()
	if len(delayed) != 1 || delayed[0].FromModule != "mix" || delayed[0].ToModule != "mix" {
		t.Fatalf("delayed cables = %+v, want exactly the self-patch", delayed)
	}

	for tick, want := range []float32{1, 2, 3, 4} {
		rk.Tick()
		if got := mix.Outputs["out"][0]; got != want {
			t.Errorf("tick %d: feedback out = %v, want %v", tick+1, got, want)
		}
	}
}

func TestRack_TwoModuleCycleDelaysSecondCable(t *testing.T) {
	rk := newTestRack(t)
	mustAdd(t, rk, "mixer", "a")
	mustAdd(t, rk, "mixer", "b")
	mustConnect(t, rk, "a", "out", "b", "in1")
	mustConnect(t, rk, "b", "out", "a", "in1")

	delayed := rk.DelayedCables()
	if len(delayed) != 1 {
		t.Fatalf("delayed cables = %d, want 1", len(delayed))
	}
	// Declaration order decides: the later cable closes the cycle.
	if delayed[0].FromModule != "b" || delayed[0].ToModule != "a" {
		t.Errorf("delayed cable = %+v, want b.out -> a.in1", delayed[0])
	}
}

func TestRack_DelayedSelectionIsStableAcrossRebuilds(t *testing.T) {
	rk := newTestRack(t)
	mustAdd(t, rk, "mixer", "a")
	mustAdd(t, rk, "mixer", "b")
	mustConnect(t, rk, "a", "out", "b", "in1")
	mustConnect(t, rk, "b", "out", "a", "in1")

	first := rk.DelayedCables()
	// Force a rebuild with an unrelated topology change.
	mustAdd(t, rk, "testconst", "extra")
	second := rk.DelayedCables()

	if len(first) != 1 || len(second) != 1 || first[0] != second[0] {
		t.Errorf("delayed selection changed across rebuilds: %+v vs %+v", first, second)
	}
}

func TestRack_ConnectRejectsDanglingEndpoints(t *testing.T) {
	rk := newTestRack(t)
	mustAdd(t, rk, "mixer", "mix")

	cases := []struct {
		name  string
		cable Cable
	}{
		{"unknown source module", Cable{FromModule: "ghost", FromPort: "out", ToModule: "mix", ToPort: "in1"}},
		{"unknown target module", Cable{FromModule: "mix", FromPort: "out", ToModule: "ghost", ToPort: "in1"}},
		{"unknown source port", Cable{FromModule: "mix", FromPort: "nope", ToModule: "mix", ToPort: "in1"}},
		{"unknown target port", Cable{FromModule: "mix", FromPort: "out", ToModule: "mix", ToPort: "nope"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := rk.Connect(tc.cable); err == nil {
				t.Errorf("Connect(%+v) succeeded, want error", tc.cable)
			}
		})
	}
}

func TestRack_RemoveModuleDropsCables(t *testing.T) {
	rk := newTestRack(t)
	src := mustAdd(t, rk, "testconst", "src")
	mix := mustAdd(t, rk, "mixer", "mix")
	src.Params["value"] = 2
	mustConnect(t, rk, "src", "out", "mix", "in1")

	rk.Tick()
	if got := mix.Outputs["out"][0]; got != 2 {
		t.Fatalf("pre-removal out = %v, want 2", got)
	}

	rk.RemoveModule("src")
	if n := len(rk.Cables()); n != 0 {
		t.Errorf("cables after removal = %d, want 0", n)
	}
	rk.Tick() // must not panic, input falls back to default
	if got := mix.Outputs["out"][0]; got != 0 {
		t.Errorf("post-removal out = %v, want 0", got)
	}
}

func TestRack_DuplicateInstanceIDRejected(t *testing.T) {
	rk := newTestRack(t)
	mustAdd(t, rk, "mixer", "m")
	if _, err := rk.AddModule("mixer", "m", 0); err == nil {
		t.Error("duplicate instance id accepted")
	}
	if _, err := rk.AddModule("nosuchkind", "x", 0); err == nil {
		t.Error("unknown kind accepted")
	}
}

func TestRack_RenderBlockScalesAndClamps(t *testing.T) {
	rk := newTestRack(t)
	src := mustAdd(t, rk, "testconst", "src")
	out := mustAdd(t, rk, "audioout", "main")
	out.Params["level"] = 1
	mustConnect(t, rk, "src", "out", "main", "left")
	mustConnect(t, rk, "src", "out", "main", "right")

	left := make([]float32, rk.BlockSize())
	right := make([]float32, rk.BlockSize())

	src.Params["value"] = AUDIO_MAX // full scale
	rk.RenderBlock(left, right)
	if left[0] != 1 || right[0] != 1 {
		t.Errorf("full-scale render = %v/%v, want 1/1", left[0], right[0])
	}

	src.Params["value"] = 10 // over-range must clamp, not wrap
	rk.RenderBlock(left, right)
	if left[0] != 1 {
		t.Errorf("over-range render = %v, want clamp to 1", left[0])
	}

	src.Params["value"] = -10
	rk.RenderBlock(left, right)
	if left[0] != -1 {
		t.Errorf("negative over-range render = %v, want clamp to -1", left[0])
	}
}

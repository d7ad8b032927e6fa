// mod_voices.go - Polyphonic MIDI-to-CV voice allocator module

package main

const (
	VOICE_MODE_MONO = 0 // One voice with a held-note stack, last-note priority
	VOICE_MODE_POLY = 1 // Fixed pool of NUM_VOICES voices
)

const (
	STEAL_ROTATE = 0 // Round-robin over voice indices
	STEAL_LOWEST = 1 // Always voice 0
	STEAL_OLDEST = 2 // Reassign: steal the voice with the largest age counter
)

const (
	NUM_VOICES = 4

	// Every (re)trigger forces this much gate-low time before the gate
	// re-asserts, so a retriggered envelope always produces a fresh attack.
	RETRIG_GAP_S = 0.003
)

type allocatedVoice struct {
	note     uint8
	velocity uint8
	sounding bool // A note is assigned to this voice
	gate     bool // Key still held (false during release)
	age      int  // Blocks since (re)trigger; stealing targets the maximum
	holdoff  int  // Remaining forced-silence samples after a (re)trigger
}

type heldNote struct {
	note     uint8
	velocity uint8
}

type voicesState struct {
	voices [NUM_VOICES]allocatedVoice
	stack  []heldNote // Mono held-note stack, most recent last
	rotate int        // Next index for the Rotate steal policy
}

func (st *voicesState) reset() {
	*st = voicesState{}
}

// retrigger (re)assigns a note to a voice and schedules the silence window.
func (st *voicesState) retrigger(v *allocatedVoice, note, velocity uint8, sampleRate int) {
	v.note = note
	v.velocity = velocity
	v.sounding = true
	v.gate = true
	v.age = 0
	v.holdoff = secondsToSamples(RETRIG_GAP_S, sampleRate)
}

// allocate picks the voice for a new note: a voice already sounding the note,
// else a free voice, else one stolen per the configured policy.
func (st *voicesState) allocate(note uint8, policy int) *allocatedVoice {
	for i := range st.voices {
		if st.voices[i].sounding && st.voices[i].note == note {
			return &st.voices[i]
		}
	}
	for i := range st.voices {
		// A released voice counts as free even if its envelope is still
		// ringing down.
		if !st.voices[i].sounding || !st.voices[i].gate {
			if policy == STEAL_ROTATE {
				st.rotate = (i + 1) % NUM_VOICES
			}
			return &st.voices[i]
		}
	}
	switch policy {
	case STEAL_LOWEST:
		return &st.voices[0]
	case STEAL_OLDEST:
		best := 0
		for i := 1; i < NUM_VOICES; i++ {
			if st.voices[i].age > st.voices[best].age {
				best = i
			}
		}
		return &st.voices[best]
	default: // STEAL_ROTATE
		v := &st.voices[st.rotate]
		st.rotate = (st.rotate + 1) % NUM_VOICES
		return v
	}
}

func (st *voicesState) noteOnMono(ev NoteEvent, m *ModuleInstance) {
	st.stack = append(st.stack, heldNote{ev.Note, ev.Velocity})
	st.retrigger(&st.voices[0], ev.Note, ev.Velocity, m.cfg.SampleRate)
}

func (st *voicesState) noteOffMono(ev NoteEvent, m *ModuleInstance) {
	for i := len(st.stack) - 1; i >= 0; i-- {
		if st.stack[i].note == ev.Note {
			st.stack = append(st.stack[:i], st.stack[i+1:]...)
			break
		}
	}
	v := &st.voices[0]
	if !v.sounding || v.note != ev.Note {
		return
	}
	if len(st.stack) > 0 {
		// Fall back to the most recently held remaining note instead of
		// going silent.
		top := st.stack[len(st.stack)-1]
		st.retrigger(v, top.note, top.velocity, m.cfg.SampleRate)
		return
	}
	v.gate = false
}

func (st *voicesState) noteOnPoly(ev NoteEvent, policy int, m *ModuleInstance) {
	v := st.allocate(ev.Note, policy)
	st.retrigger(v, ev.Note, ev.Velocity, m.cfg.SampleRate)
}

func (st *voicesState) noteOffPoly(ev NoteEvent) {
	for i := range st.voices {
		v := &st.voices[i]
		if v.sounding && v.gate && v.note == ev.Note {
			v.gate = false
			return
		}
	}
}

func (st *voicesState) process(m *ModuleInstance) {
	channel := int(m.Param("channel"))
	mono := int(m.Param("mode")) == VOICE_MODE_MONO
	policy := int(m.Param("policy"))
	transpose := m.ParamClamped("transpose")
	bendRange := m.ParamClamped("bendRange")

	midi := m.cfg.MIDI
	for _, ev := range midi.ConsumeNoteEvents(channel) {
		switch {
		case ev.Type == NOTE_ON && ev.Velocity == 0:
			// Running-status note-on with velocity 0 is a note-off.
			ev.Type = NOTE_OFF
			fallthrough
		case ev.Type == NOTE_OFF:
			if mono {
				st.noteOffMono(ev, m)
			} else {
				st.noteOffPoly(ev)
			}
		default:
			if mono {
				st.noteOnMono(ev, m)
			} else {
				st.noteOnPoly(ev, policy, m)
			}
		}
	}

	bendSemis := float32(midi.PitchBend(channel)) / 8192.0 * bendRange
	wheelCV := float32(midi.ModWheel(channel)) / MIDI_VALUE_MAX * CV_MAX
	mod := m.Outputs["mod"]
	for i := range mod {
		mod[i] = wheelCV
	}

	voiceCount := NUM_VOICES
	if mono {
		voiceCount = 1
	}

	for vi := 0; vi < NUM_VOICES; vi++ {
		v := &st.voices[vi]
		pitch := m.Outputs[voicePort("pitch", vi)]
		gate := m.Outputs[voicePort("gate", vi)]
		vel := m.Outputs[voicePort("vel", vi)]

		pitchCV := (float32(v.note) + transpose - MIDI_NOTE_C4 + bendSemis) / 12 * VOLTS_PER_OCTAVE
		velCV := float32(v.velocity) / MIDI_VALUE_MAX * CV_MAX
		inUse := vi < voiceCount && v.sounding

		for i := range gate {
			pitch[i] = pitchCV
			vel[i] = velCV
			if inUse && v.gate && v.holdoff <= 0 {
				gate[i] = GATE_HIGH
			} else {
				gate[i] = 0
			}
			if v.holdoff > 0 {
				v.holdoff--
			}
		}

		if inUse {
			v.age++
		}
		m.LEDs[voicePort("gate", vi)] = gate[len(gate)-1] / GATE_HIGH
	}
}

// voicePort builds the per-voice output port name, e.g. "gate1".
func voicePort(base string, index int) string {
	return base + string(rune('1'+index))
}

func voicesKind() *ModuleKind {
	k := &ModuleKind{
		Type:     "midivoices",
		Name:     "MIDI Voices",
		Width:    10,
		Color:    "#3c8f3c",
		Category: "IO",
		Outputs: []PortSpec{
			{Name: "pitch1", Label: "Pitch 1"}, {Name: "gate1", Label: "Gate 1"}, {Name: "vel1", Label: "Vel 1"},
			{Name: "pitch2", Label: "Pitch 2"}, {Name: "gate2", Label: "Gate 2"}, {Name: "vel2", Label: "Vel 2"},
			{Name: "pitch3", Label: "Pitch 3"}, {Name: "gate3", Label: "Gate 3"}, {Name: "vel3", Label: "Vel 3"},
			{Name: "pitch4", Label: "Pitch 4"}, {Name: "gate4", Label: "Gate 4"}, {Name: "vel4", Label: "Vel 4"},
			{Name: "mod", Label: "Mod"},
		},
		Controls: []ControlSpec{
			{Name: "channel", Kind: "switch", Label: "Chan", Min: 0, Max: 15, Default: 0, Steps: 16},
			{Name: "mode", Kind: "switch", Label: "Mode", Min: 0, Max: 1, Default: 1, Steps: 2},
			{Name: "policy", Kind: "switch", Label: "Steal", Min: 0, Max: 2, Default: 0, Steps: 3},
			{Name: "transpose", Kind: "knob", Label: "Transpose", Min: -24, Max: 24, Default: 0},
			{Name: "bendRange", Kind: "knob", Label: "Bend", Min: 0, Max: 12, Default: 2},
		},
	}
	k.Factory = func(cfg ModuleConfig) *ModuleInstance {
		return k.newInstance(cfg, &voicesState{})
	}
	return k
}

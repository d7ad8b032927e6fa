// rack_constants.go - Engine-wide constants and voltage conventions

package main

import "math"

const (
	DEFAULT_SAMPLE_RATE = 44100
	DEFAULT_BLOCK_SIZE  = 128
)

// Voltage conventions shared by all module kinds.
// Audio signals are bipolar around 0V, control signals unipolar, gates are
// binary-like with a low trigger threshold so any CV can drive a gate input.
const (
	AUDIO_MAX = 5.0  // Audio range is -5V..+5V
	AUDIO_MIN = -5.0 //
	CV_MAX    = 10.0 // Unipolar CV range is 0V..+10V
	CV_MIN    = 0.0  //

	GATE_HIGH      = 10.0 // Asserted gate level
	GATE_THRESHOLD = 1.0  // Rising-edge detection threshold

	VOLTS_PER_OCTAVE = 1.0 // Pitch CV scaling, 0V = MIDI note 60
)

const (
	MIDI_NOTE_C4   = 60    // Pitch CV reference note
	MIDI_VALUE_MAX = 127.0 // Note/velocity/CC full scale
)

// pow32 is math.Pow over float32 operands.
func pow32(base, exp float32) float32 {
	return float32(math.Pow(float64(base), float64(exp)))
}

// clamp32 bounds v to [lo, hi].
func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

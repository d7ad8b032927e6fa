// audio_interface.go - Audio output backend interface and factory

package main

import "fmt"

const (
	AUDIO_BACKEND_OTO = iota
	AUDIO_BACKEND_PORTAUDIO
)

// AudioOutput is the real-time driver boundary. A backend pulls whole blocks
// from the rack (one tick per block) and owns the device lifecycle; the rack
// never knows which backend is driving it.
type AudioOutput interface {
	Start()
	Stop()
	Close()
	IsStarted() bool
}

// NewAudioOutput creates the requested backend wired to the rack.
func NewAudioOutput(backend int, rack *Rack) (AudioOutput, error) {
	switch backend {
	case AUDIO_BACKEND_OTO:
		return NewOtoPlayer(rack)
	case AUDIO_BACKEND_PORTAUDIO:
		return NewPortAudioPlayer(rack)
	default:
		return nil, fmt.Errorf("unknown audio backend %d", backend)
	}
}

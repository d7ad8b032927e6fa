//go:build windows

package main

// Raw-mode stdin handling is POSIX only; Windows builds get a no-op source.
type KeyboardSource struct{}

func NewKeyboardSource(queue *MIDIQueue, channel int) *KeyboardSource {
	return &KeyboardSource{}
}

func (ks *KeyboardSource) Start() {}
func (ks *KeyboardSource) Stop()  {}

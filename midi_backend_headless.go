//go:build headless

package main

import "fmt"

type MIDIInput struct{}

func OpenMIDIInput(queue *MIDIQueue, portName string) (*MIDIInput, error) {
	return nil, fmt.Errorf("midi: hardware input not available in headless builds")
}

func (mi *MIDIInput) Close() {}

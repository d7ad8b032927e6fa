//go:build !headless

// midi_backend_gomidi.go - Hardware MIDI input via gomidi/rtmidi

package main

import (
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// Virtual/system ports that are never auto-connected.
var midiExcludedPatterns = []string{"Midi Through", "Through Port", "Dummy"}

const MOD_WHEEL_CC = 1

// MIDIInput owns one hardware input port and feeds its note, bend and mod
// wheel traffic into the rack's event queue.
type MIDIInput struct {
	drv    *rtmididrv.Driver
	in     drivers.In
	stopFn func()
}

// OpenMIDIInput connects to the first input whose name contains portName
// (case-insensitive), or the first non-excluded input when portName is empty.
func OpenMIDIInput(queue *MIDIQueue, portName string) (*MIDIInput, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}

	ins, err := drv.Ins()
	if err != nil {
		drv.Close()
		return nil, fmt.Errorf("midi: list inputs: %w", err)
	}

	var found drivers.In
	for _, in := range ins {
		name := in.String()
		if excludedMIDIPort(name) {
			continue
		}
		if portName == "" || strings.Contains(strings.ToLower(name), strings.ToLower(portName)) {
			found = in
			break
		}
	}
	if found == nil {
		drv.Close()
		return nil, fmt.Errorf("midi: no input matching %q", portName)
	}
	if err := found.Open(); err != nil {
		drv.Close()
		return nil, fmt.Errorf("midi: open %q: %w", found.String(), err)
	}

	stop, err := midi.ListenTo(found, func(msg midi.Message, _ int32) {
		var ch, key, vel, cc, val uint8
		var rel int16
		var abs uint16
		switch {
		case msg.GetNoteStart(&ch, &key, &vel):
			queue.PushNote(int(ch), NOTE_ON, key, vel)
		case msg.GetNoteEnd(&ch, &key):
			queue.PushNote(int(ch), NOTE_OFF, key, 0)
		case msg.GetPitchBend(&ch, &rel, &abs):
			queue.SetPitchBend(int(ch), rel)
		case msg.GetControlChange(&ch, &cc, &val):
			if cc == MOD_WHEEL_CC {
				queue.SetModWheel(int(ch), val)
			}
		default:
			logger.Debug("midi: unhandled message", "msg", msg.String())
		}
	}, midi.HandleError(func(listenErr error) {
		logger.Warn("midi: listener error", "err", listenErr)
	}))
	if err != nil {
		_ = found.Close()
		drv.Close()
		return nil, fmt.Errorf("midi: listen %q: %w", found.String(), err)
	}

	logger.Info("midi: connected", "device", found.String())
	return &MIDIInput{drv: drv, in: found, stopFn: stop}, nil
}

// Close shuts down the listener, port and driver.
func (mi *MIDIInput) Close() {
	if mi.stopFn != nil {
		mi.stopFn()
		mi.stopFn = nil
	}
	if mi.in != nil {
		_ = mi.in.Close()
		mi.in = nil
	}
	if mi.drv != nil {
		mi.drv.Close()
		mi.drv = nil
	}
}

func excludedMIDIPort(name string) bool {
	for _, pat := range midiExcludedPatterns {
		if strings.Contains(strings.ToLower(name), strings.ToLower(pat)) {
			return true
		}
	}
	return false
}

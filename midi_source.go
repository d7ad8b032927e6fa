// midi_source.go - MIDI event queue and the narrow source interface the rack depends on

package main

import "sync"

const (
	NOTE_ON = iota
	NOTE_OFF
)

// NoteEvent is one note message, already stripped of transport detail.
type NoteEvent struct {
	Type     int
	Note     uint8
	Velocity uint8
}

// MIDISource is the only view of MIDI the rack and its modules have.
// ConsumeNoteEvents drains the events queued for a channel since the last
// call; the caller runs once per block, so every event is applied exactly
// once and never split across two blocks.
type MIDISource interface {
	ConsumeNoteEvents(channel int) []NoteEvent
	PitchBend(channel int) int16
	ModWheel(channel int) uint8
}

// MIDIQueue buffers incoming events between ticks. Drivers push from their
// own goroutines; the single reader (a voice-allocator module inside a tick)
// drains atomically once per block.
type MIDIQueue struct {
	mu      sync.Mutex
	pending map[int][]NoteEvent
	bend    map[int]int16
	wheel   map[int]uint8
}

func NewMIDIQueue() *MIDIQueue {
	return &MIDIQueue{
		pending: make(map[int][]NoteEvent),
		bend:    make(map[int]int16),
		wheel:   make(map[int]uint8),
	}
}

// PushNote queues a note-on or note-off for a channel.
func (q *MIDIQueue) PushNote(channel int, eventType int, note, velocity uint8) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending[channel] = append(q.pending[channel], NoteEvent{
		Type:     eventType,
		Note:     note,
		Velocity: velocity,
	})
}

// SetPitchBend stores the latest bend value (-8192..8191) for a channel.
func (q *MIDIQueue) SetPitchBend(channel int, value int16) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.bend[channel] = value
}

// SetModWheel stores the latest mod wheel value (0..127) for a channel.
func (q *MIDIQueue) SetModWheel(channel int, value uint8) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.wheel[channel] = value
}

func (q *MIDIQueue) ConsumeNoteEvents(channel int) []NoteEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	ev := q.pending[channel]
	if len(ev) == 0 {
		return nil
	}
	q.pending[channel] = nil
	return ev
}

func (q *MIDIQueue) PitchBend(channel int) int16 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.bend[channel]
}

func (q *MIDIQueue) ModWheel(channel int) uint8 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.wheel[channel]
}

//go:build !windows

// midi_keyboard.go - QWERTY terminal keyboard as a MIDI note source

package main

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"
)

// Terminals report key presses but not releases, so each press becomes a
// fixed-length note.
const KEYBOARD_NOTE_LEN = 250 * time.Millisecond

// Tracker-style layout: the home row plays a chromatic octave starting at C,
// with sharps on the row above.
var keyboardNoteOffsets = map[byte]int{
	'a': 0, 'w': 1, 's': 2, 'e': 3, 'd': 4,
	'f': 5, 't': 6, 'g': 7, 'y': 8, 'h': 9,
	'u': 10, 'j': 11, 'k': 12, 'o': 13, 'l': 14,
}

// KeyboardSource turns raw stdin keypresses into note events on the queue.
// 'z'/'x' shift the octave, Esc or Ctrl-C stops the reader. Only instantiated
// in main.go for interactive use — never in tests.
type KeyboardSource struct {
	queue   *MIDIQueue
	channel int
	octave  int

	stopCh       chan struct{}
	done         chan struct{}
	stopped      sync.Once
	fd           int
	nonblockSet  bool
	oldTermState *term.State

	// Serializes the deferred note-offs against octave changes.
	mu sync.Mutex
}

func NewKeyboardSource(queue *MIDIQueue, channel int) *KeyboardSource {
	return &KeyboardSource{
		queue:   queue,
		channel: channel,
		octave:  4,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start sets stdin to raw non-blocking mode and begins reading in a goroutine.
// Call Stop() to restore stdin.
func (ks *KeyboardSource) Start() {
	ks.fd = int(os.Stdin.Fd())

	oldState, err := term.MakeRaw(ks.fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "keyboard: failed to set raw mode: %v\n", err)
		close(ks.done)
		return
	}
	ks.oldTermState = oldState

	if err := syscall.SetNonblock(ks.fd, true); err != nil {
		fmt.Fprintf(os.Stderr, "keyboard: failed to set nonblocking stdin: %v\n", err)
		_ = term.Restore(ks.fd, ks.oldTermState)
		ks.oldTermState = nil
		close(ks.done)
		return
	}
	ks.nonblockSet = true

	go func() {
		defer close(ks.done)
		buf := make([]byte, 1)

		for {
			select {
			case <-ks.stopCh:
				return
			default:
			}

			n, err := syscall.Read(ks.fd, buf)
			if n > 0 {
				if !ks.handleKey(buf[0]) {
					return
				}
			}
			if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
				time.Sleep(5 * time.Millisecond)
				continue
			}
			if err != nil {
				return
			}
			if n == 0 {
				time.Sleep(5 * time.Millisecond)
			}
		}
	}()
}

// handleKey routes one key; returns false when the reader should exit.
func (ks *KeyboardSource) handleKey(b byte) bool {
	switch b {
	case 0x03, 0x1B: // Ctrl-C, Esc
		return false
	case 'z':
		ks.shiftOctave(-1)
		return true
	case 'x':
		ks.shiftOctave(+1)
		return true
	}

	offset, ok := keyboardNoteOffsets[b]
	if !ok {
		return true
	}

	ks.mu.Lock()
	note := ks.octave*12 + offset
	ks.mu.Unlock()
	if note < 0 || note > int(MIDI_VALUE_MAX) {
		return true
	}

	key := uint8(note)
	ks.queue.PushNote(ks.channel, NOTE_ON, key, 100)
	time.AfterFunc(KEYBOARD_NOTE_LEN, func() {
		ks.queue.PushNote(ks.channel, NOTE_OFF, key, 0)
	})
	return true
}

func (ks *KeyboardSource) shiftOctave(dir int) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	oct := ks.octave + dir
	if oct >= 0 && oct <= 9 {
		ks.octave = oct
	}
}

// Stop terminates the reader goroutine and restores stdin to blocking mode.
func (ks *KeyboardSource) Stop() {
	ks.stopped.Do(func() {
		close(ks.stopCh)
	})
	<-ks.done
	if ks.nonblockSet {
		_ = syscall.SetNonblock(ks.fd, false)
		ks.nonblockSet = false
	}
	if ks.oldTermState != nil {
		_ = term.Restore(ks.fd, ks.oldTermState)
		ks.oldTermState = nil
	}
}

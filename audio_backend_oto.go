//go:build !headless

// audio_backend_oto.go - OTO v3 audio output implementation

package main

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/oto/v3"
)

type OtoPlayer struct {
	ctx    *oto.Context
	player *oto.Player
	rack   atomic.Pointer[Rack] // Atomic for lock-free Read()

	// Whole blocks are rendered even when oto asks for a partial window;
	// the remainder waits in pending for the next Read.
	left    []float32
	right   []float32
	inter   []float32
	pending []byte

	started bool
	mutex   sync.Mutex // Only for setup/control operations
}

func NewOtoPlayer(rack *Rack) (*OtoPlayer, error) {
	op := &oto.NewContextOptions{
		SampleRate:   rack.SampleRate(),
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   4,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	block := rack.BlockSize()
	p := &OtoPlayer{
		ctx:   ctx,
		left:  make([]float32, block),
		right: make([]float32, block),
		inter: make([]float32, 2*block),
	}
	p.rack.Store(rack)
	p.player = ctx.NewPlayer(p)
	return p, nil
}

// Read renders rack blocks into oto's pull buffer. The block boundary is the
// rack's, not oto's: a block is never split across two ticks.
func (op *OtoPlayer) Read(p []byte) (n int, err error) {
	rack := op.rack.Load()
	if rack == nil {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	filled := 0
	for filled < len(p) {
		if len(op.pending) == 0 {
			rack.RenderBlock(op.left, op.right)
			for i := range op.left {
				op.inter[2*i] = op.left[i]
				op.inter[2*i+1] = op.right[i]
			}
			raw := (*[1 << 30]byte)(unsafe.Pointer(&op.inter[0]))[: len(op.inter)*4 : len(op.inter)*4]
			op.pending = raw
		}
		c := copy(p[filled:], op.pending)
		op.pending = op.pending[c:]
		filled += c
	}
	return filled, nil
}

func (op *OtoPlayer) Start() {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if !op.started && op.player != nil {
		op.player.Play()
		op.started = true
	}
}

func (op *OtoPlayer) Stop() {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if op.started && op.player != nil {
		op.player.Pause()
		op.started = false
	}
}

func (op *OtoPlayer) Close() {
	op.Stop()
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if op.player != nil {
		op.player.Close()
		op.player = nil
	}
}

func (op *OtoPlayer) IsStarted() bool {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	return op.started
}

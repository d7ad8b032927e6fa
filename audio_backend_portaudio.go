//go:build !headless

// audio_backend_portaudio.go - PortAudio audio output implementation

package main

import (
	"sync"

	pa "github.com/gordonklaus/portaudio"
)

type PortAudioPlayer struct {
	stream *pa.Stream
	rack   *Rack
	out    [][]float32

	stopCh  chan struct{}
	done    chan struct{}
	started bool
	mutex   sync.Mutex
}

func NewPortAudioPlayer(rack *Rack) (*PortAudioPlayer, error) {
	if err := pa.Initialize(); err != nil {
		return nil, err
	}

	block := rack.BlockSize()
	out := [][]float32{
		make([]float32, block),
		make([]float32, block),
	}
	stream, err := pa.OpenDefaultStream(0, 2, float64(rack.SampleRate()), block, &out)
	if err != nil {
		_ = pa.Terminate()
		return nil, err
	}

	return &PortAudioPlayer{
		stream: stream,
		rack:   rack,
		out:    out,
	}, nil
}

func (pp *PortAudioPlayer) Start() {
	pp.mutex.Lock()
	defer pp.mutex.Unlock()

	if pp.started || pp.stream == nil {
		return
	}
	if err := pp.stream.Start(); err != nil {
		logger.Error("portaudio: stream start failed", "err", err)
		return
	}
	pp.stopCh = make(chan struct{})
	pp.done = make(chan struct{})
	pp.started = true

	// Blocking write loop: each stream write is exactly one rack block, so
	// the soundcard's backpressure paces the ticks.
	go func(stopCh chan struct{}, done chan struct{}) {
		defer close(done)
		for {
			select {
			case <-stopCh:
				return
			default:
			}
			pp.rack.RenderBlock(pp.out[0], pp.out[1])
			if err := pp.stream.Write(); err != nil {
				// Underruns are not recoverable mid-block; log and move on.
				logger.Warn("portaudio: write failed", "err", err)
			}
		}
	}(pp.stopCh, pp.done)
}

func (pp *PortAudioPlayer) Stop() {
	pp.mutex.Lock()
	defer pp.mutex.Unlock()

	if !pp.started {
		return
	}
	close(pp.stopCh)
	<-pp.done
	_ = pp.stream.Stop()
	pp.started = false
}

func (pp *PortAudioPlayer) Close() {
	pp.Stop()
	pp.mutex.Lock()
	defer pp.mutex.Unlock()

	if pp.stream != nil {
		_ = pp.stream.Close()
		pp.stream = nil
		_ = pa.Terminate()
	}
}

func (pp *PortAudioPlayer) IsStarted() bool {
	pp.mutex.Lock()
	defer pp.mutex.Unlock()
	return pp.started
}

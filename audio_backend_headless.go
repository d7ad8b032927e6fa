//go:build headless

package main

type OtoPlayer struct {
	started bool
	rack    *Rack
}

func NewOtoPlayer(rack *Rack) (*OtoPlayer, error) {
	return &OtoPlayer{rack: rack}, nil
}

func (op *OtoPlayer) Read(p []byte) (n int, err error) {
	return len(p), nil
}

func (op *OtoPlayer) Start() {
	op.started = true
}

func (op *OtoPlayer) Stop() {
	op.started = false
}

func (op *OtoPlayer) Close() {
	op.started = false
}

func (op *OtoPlayer) IsStarted() bool {
	return op.started
}

type PortAudioPlayer struct {
	started bool
	rack    *Rack
}

func NewPortAudioPlayer(rack *Rack) (*PortAudioPlayer, error) {
	return &PortAudioPlayer{rack: rack}, nil
}

func (pp *PortAudioPlayer) Start() {
	pp.started = true
}

func (pp *PortAudioPlayer) Stop() {
	pp.started = false
}

func (pp *PortAudioPlayer) Close() {
	pp.started = false
}

func (pp *PortAudioPlayer) IsStarted() bool {
	return pp.started
}

package capture

import (
	"context"
	"sync/atomic"
)

// Device is a capture device that can be switched on and off.
// The receiver never calls Start on a started device or Stop on a stopped one;
// Switch enforces that.
type Device interface {
	Start(ctx context.Context) error
	Stop() error
}

// Switch forwards only state changes to a Device.
// Like the receiver, it is driven from a single goroutine.
type Switch struct {
	dev Device
	on  bool
}

// NewSwitch wraps dev. The device is assumed to be stopped.
func NewSwitch(dev Device) *Switch {
	return &Switch{dev: dev}
}

// Set brings the device to the requested state. It reports whether a
// Start or Stop was issued. On error the recorded state is unchanged.
func (s *Switch) Set(ctx context.Context, enabled bool) (bool, error) {
	if enabled == s.on {
		return false, nil
	}
	var err error
	if enabled {
		err = s.dev.Start(ctx)
	} else {
		err = s.dev.Stop()
	}
	if err != nil {
		return false, err
	}
	s.on = enabled
	return true, nil
}

// Enabled reports whether the device is currently started.
func (s *Switch) Enabled() bool {
	return s.on
}

// Gate is a Device for sources that cannot be paused at the origin, such as
// stdin or a replayed recording. While stopped, Filter drops every token.
type Gate struct {
	open atomic.Bool
}

// NewGate creates a closed gate.
func NewGate() *Gate {
	return &Gate{}
}

// Start opens the gate.
func (g *Gate) Start(context.Context) error {
	g.open.Store(true)
	return nil
}

// Stop closes the gate.
func (g *Gate) Stop() error {
	g.open.Store(false)
	return nil
}

// Open reports whether tokens currently pass.
func (g *Gate) Open() bool {
	return g.open.Load()
}

// Filter returns a Source that yields only tokens read while the gate is open.
func (g *Gate) Filter(src Source) Source {
	return &gatedSource{gate: g, src: src}
}

type gatedSource struct {
	gate *Gate
	src  Source
}

func (s *gatedSource) Next(ctx context.Context) (string, error) {
	for {
		tok, err := s.src.Next(ctx)
		if err != nil {
			return "", err
		}
		if s.gate.Open() {
			return tok, nil
		}
	}
}

var (
	_ Device = (*Gate)(nil)
	_ Source = (*gatedSource)(nil)
)

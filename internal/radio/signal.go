package radio

import (
	"sync/atomic"
	"time"
)

// Signal is what woke a SignalMux wait.
type Signal uint8

const (
	SignalNone Signal = iota
	SignalIrq
	SignalCancel
)

func (s Signal) String() string {
	switch s {
	case SignalIrq:
		return "irq"
	case SignalCancel:
		return "cancel"
	default:
		return "none"
	}
}

// SignalMux merges the radio interrupt and a stop request into one wait.
// Both signals are edge triggered: raising an already raised signal
// coalesces, and one wait consumes it.
type SignalMux struct {
	irq    chan struct{}
	cancel chan struct{}
	// stop survives the cancel edge being consumed by an interrupt-only wait
	// or losing a select race against a simultaneous interrupt.
	stop atomic.Bool
}

func NewSignalMux() *SignalMux {
	return &SignalMux{
		irq:    make(chan struct{}, 1),
		cancel: make(chan struct{}, 1),
	}
}

// RaiseIrq is the interrupt callback. It must stay free of I/O.
func (m *SignalMux) RaiseIrq() {
	select {
	case m.irq <- struct{}{}:
	default:
	}
}

func (m *SignalMux) RequestStop() {
	m.stop.Store(true)
	select {
	case m.cancel <- struct{}{}:
	default:
	}
}

func (m *SignalMux) StopRequested() bool {
	return m.stop.Load()
}

// Wait blocks until a signal is raised or timeout elapses. A non-positive
// timeout waits without deadline.
func (m *SignalMux) Wait(timeout time.Duration) Signal {
	if m.stop.Load() {
		m.drainCancel()
		return SignalCancel
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	sig := SignalNone
	select {
	case <-m.cancel:
		sig = SignalCancel
	case <-m.irq:
		sig = SignalIrq
	case <-deadline:
	}

	if sig != SignalCancel && m.stop.Load() {
		m.drainCancel()
		return SignalCancel
	}
	return sig
}

// WaitIrq waits for the interrupt only and leaves stop requests pending.
func (m *SignalMux) WaitIrq(timeout time.Duration) bool {
	if timeout <= 0 {
		select {
		case <-m.irq:
			return true
		default:
			return false
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-m.irq:
		return true
	case <-timer.C:
		return false
	}
}

func (m *SignalMux) drainCancel() {
	select {
	case <-m.cancel:
	default:
	}
}

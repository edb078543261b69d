package radio

import (
	"sync"
	"testing"
	"time"
)

func TestSignalMuxTimeout(t *testing.T) {
	m := NewSignalMux()
	if got := m.Wait(5 * time.Millisecond); got != SignalNone {
		t.Fatalf("expected none, got %s", got)
	}
}

func TestSignalMuxIrqIsConsumedOnce(t *testing.T) {
	m := NewSignalMux()
	m.RaiseIrq()
	m.RaiseIrq()
	if got := m.Wait(time.Second); got != SignalIrq {
		t.Fatalf("expected irq, got %s", got)
	}
	if got := m.Wait(5 * time.Millisecond); got != SignalNone {
		t.Fatalf("expected coalesced irq to be consumed, got %s", got)
	}
}

func TestSignalMuxStopWinsOverIrq(t *testing.T) {
	m := NewSignalMux()
	m.RaiseIrq()
	m.RequestStop()
	for range 3 {
		if got := m.Wait(5 * time.Millisecond); got != SignalCancel {
			t.Fatalf("expected cancel to stick, got %s", got)
		}
	}
}

func TestSignalMuxWaitIrqLeavesStopPending(t *testing.T) {
	m := NewSignalMux()
	m.RequestStop()
	m.RaiseIrq()
	if !m.WaitIrq(time.Second) {
		t.Fatalf("expected irq")
	}
	if m.WaitIrq(0) {
		t.Fatalf("expected no further irq")
	}
	if got := m.Wait(time.Second); got != SignalCancel {
		t.Fatalf("expected pending cancel, got %s", got)
	}
}

func TestSignalMuxWakesBlockedWaiter(t *testing.T) {
	m := NewSignalMux()
	var wg sync.WaitGroup
	var got Signal
	wg.Add(1)
	go func() {
		defer wg.Done()
		got = m.Wait(0)
	}()
	time.Sleep(10 * time.Millisecond)
	m.RequestStop()
	wg.Wait()
	if got != SignalCancel {
		t.Fatalf("expected cancel, got %s", got)
	}
}

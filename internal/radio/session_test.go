package radio

import (
	"errors"
	"slices"
	"testing"
)

func TestAcquireAppliesBaselineInOrder(t *testing.T) {
	d := newFakeDriver()
	s, err := AcquireSession(testLogger(), d, DefaultConfiguration(), NewSignalMux())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	calls, _, _, _ := d.snapshot()
	want := []string{
		"open", "reset", "modulation", "deviation", "frequency", "rx_bandwidth", "bit_rate",
		"sync", "packet_format", "payload_length", "output_power", "rssi_threshold",
	}
	if !slices.Equal(calls, want) {
		t.Fatalf("unexpected call order %v", calls)
	}
	if s.Mode() != ModeStandby {
		t.Fatalf("expected standby after acquire, got %s", s.Mode())
	}
	if err := s.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	d := newFakeDriver()
	s, err := AcquireSession(testLogger(), d, DefaultConfiguration(), NewSignalMux())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	d.failOn["mode_sleep"] = errors.New("no ack")

	first := s.Release()
	second := s.Release()
	if first == nil || !errors.Is(second, first) {
		t.Fatalf("expected the same release error twice, got %v and %v", first, second)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed != 1 {
		t.Fatalf("expected close despite sleep failure and only once, got %d", d.closed)
	}
}

func TestTransmitForcesStandby(t *testing.T) {
	d := newFakeDriver()
	s, err := AcquireSession(testLogger(), d, DefaultConfiguration(), NewSignalMux())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer func() { _ = s.Release() }()
	if err := s.SetMode(ModeReceiving); err != nil {
		t.Fatalf("set mode: %v", err)
	}
	if err := s.Transmit([]byte{0x01}); err != nil {
		t.Fatalf("transmit: %v", err)
	}
	if s.Mode() != ModeStandby {
		t.Fatalf("expected standby after transmit, got %s", s.Mode())
	}
}

func TestAcquireOpenFailure(t *testing.T) {
	d := newFakeDriver()
	d.failOn["open"] = errors.New("no such port")
	if _, err := AcquireSession(testLogger(), d, DefaultConfiguration(), NewSignalMux()); err == nil {
		t.Fatalf("expected open error")
	}
	calls, _, _, _ := d.snapshot()
	if len(calls) != 1 {
		t.Fatalf("expected nothing after failed open, got %v", calls)
	}
}

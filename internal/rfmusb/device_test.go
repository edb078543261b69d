package rfmusb

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/skobkin/rfmgo/internal/radio"
)

// fakeFirmware answers commands over one end of a pipe.
type fakeFirmware struct {
	conn net.Conn

	mu       sync.Mutex
	received []string
	replies  map[string]string
}

func (f *fakeFirmware) serve() {
	sc := bufio.NewScanner(f.conn)
	for sc.Scan() {
		cmd := sc.Text()
		f.mu.Lock()
		f.received = append(f.received, cmd)
		reply, ok := f.replies[strings.Fields(cmd)[0]]
		f.mu.Unlock()
		if !ok {
			reply = "OK"
		}
		if reply == "" {
			continue
		}
		if _, err := io.WriteString(f.conn, reply+"\r\n"); err != nil {
			return
		}
	}
}

func (f *fakeFirmware) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.received...)
}

func newTestDevice(t *testing.T, replies map[string]string) (*Device, *fakeFirmware) {
	t.Helper()
	host, dev := net.Pipe()
	fw := &fakeFirmware{conn: dev, replies: replies}
	go fw.serve()

	d := NewDevice(slog.New(slog.NewTextHandler(io.Discard, nil)), "/dev/ttyUSB0", 0, 200*time.Millisecond)
	d.open = func(name string, baud int) (io.ReadWriteCloser, error) {
		if name != "/dev/ttyUSB0" || baud != DefaultBaudRate {
			t.Errorf("unexpected open %s %d", name, baud)
		}
		return host, nil
	}
	if err := d.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
		_ = dev.Close()
	})
	return d, fw
}

func TestSettersSendCommands(t *testing.T) {
	d, fw := newTestDevice(t, nil)
	steps := []struct {
		run  func() error
		want []string
	}{
		{run: d.Reset, want: []string{"e-r"}},
		{run: func() error { return d.SetFrequency(434300000) }, want: []string{"s-f 434300000"}},
		{run: func() error { return d.SetFrequencyDeviation(0x01EC) }, want: []string{"s-fd 0x1EC"}},
		{run: func() error { return d.SetSync([]byte{0x2D, 0xD4}) }, want: []string{"s-sync 2DD4"}},
		{run: func() error { return d.SetOutputPower(-2) }, want: []string{"s-op -2"}},
		{run: func() error { return d.SetMode(radio.ModeReceiving) }, want: []string{"s-om 4"}},
		{run: func() error { return d.SetInterruptMask(radio.DioPayloadReady) }, want: []string{"s-dim 0x01"}},
		{run: func() error { return d.SetDioMapping(0, radio.DioMapping3) }, want: []string{"s-dio 0 3"}},
		{run: func() error { return d.Transmit([]byte{0x0A, 0xFF}) }, want: []string{"e-tx 0AFF"}},
		{
			run:  func() error { return d.SetPacketFormat(radio.PacketFormat{Manchester: true, TxStartFifoNotEmpty: true}) },
			want: []string{"s-pf 0", "s-dfe 1", "s-crc 0", "s-af 0", "s-tsc 1"},
		},
	}

	var want []string
	for i, s := range steps {
		if err := s.run(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		want = append(want, s.want...)
	}
	got := fw.commands()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestGetters(t *testing.T) {
	d, _ := newTestDevice(t, map[string]string{
		"g-irq":  "0xD944",
		"g-fifo": "0A,04,02,1F",
		"g-fv":   "RfmUsb 2.1",
		"g-rssi": "-72.5",
	})

	flags, err := d.IrqFlags()
	if err != nil || !flags.Has(radio.IrqPayloadReady) {
		t.Fatalf("unexpected irq flags 0x%04X %v", uint16(flags), err)
	}
	payload, err := d.ReadPayload()
	if err != nil || !bytes.Equal(payload, []byte{0x0A, 0x04, 0x02, 0x1F}) {
		t.Fatalf("unexpected payload %X %v", payload, err)
	}
	if v, err := d.Version(); err != nil || v != "RfmUsb 2.1" {
		t.Fatalf("unexpected version %q %v", v, err)
	}
	if rssi, err := d.Rssi(); err != nil || rssi != -72.5 {
		t.Fatalf("unexpected rssi %v %v", rssi, err)
	}
}

func TestCommandErrors(t *testing.T) {
	d, _ := newTestDevice(t, map[string]string{
		"s-br":  "ERROR invalid bit rate",
		"s-op":  "",
		"g-irq": "bogus",
	})

	var cmdErr *CommandError
	if err := d.SetBitRate(1); !errors.As(err, &cmdErr) {
		t.Fatalf("expected CommandError, got %v", err)
	}
	if err := d.SetOutputPower(3); !errors.Is(err, ErrCommandTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if _, err := d.IrqFlags(); !errors.As(err, &cmdErr) {
		t.Fatalf("expected CommandError for bad irq reply, got %v", err)
	}
}

func TestInterruptLines(t *testing.T) {
	d, fw := newTestDevice(t, nil)

	// Without a callback the change is dropped, not queued as a response.
	if _, err := io.WriteString(fw.conn, interruptPrefix+" 0x01\r\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if v, err := d.Version(); err != nil || v != "OK" {
		t.Fatalf("unexpected reply after bare interrupt %q %v", v, err)
	}

	fired := make(chan struct{}, 1)
	d.OnInterrupt(func() { fired <- struct{}{} })
	if _, err := io.WriteString(fw.conn, interruptPrefix+" 0x01\r\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatalf("callback not invoked")
	}

	// An interrupt between commands must not be taken as a response.
	if err := d.SetRxBandwidth(14); err != nil {
		t.Fatalf("command after interrupt: %v", err)
	}
}

func TestClosedDevice(t *testing.T) {
	d, _ := newTestDevice(t, nil)
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := d.Reset(); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
}

package radio

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

type fakeDriver struct {
	mu        sync.Mutex
	calls     []string
	modes     []Mode
	masks     []DioMask
	mode      Mode
	opened    bool
	closed    int
	callback  func()
	payload   []byte
	flags     IrqFlags
	sent      [][]byte
	power     []int8
	mappings  []DioAssignment
	rssi      float64
	failOn    map[string]error
	rxEntered chan struct{}
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		failOn:    map[string]error{},
		rxEntered: make(chan struct{}, 64),
	}
}

func (d *fakeDriver) record(op string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, op)
	return d.failOn[op]
}

func (d *fakeDriver) Open() error {
	if err := d.record("open"); err != nil {
		return err
	}
	d.mu.Lock()
	d.opened = true
	d.mu.Unlock()
	return nil
}

func (d *fakeDriver) Reset() error { return d.record("reset") }
func (d *fakeDriver) SetFrequency(uint32) error { return d.record("frequency") }
func (d *fakeDriver) SetFrequencyDeviation(uint16) error { return d.record("deviation") }
func (d *fakeDriver) SetRxBandwidth(uint8) error { return d.record("rx_bandwidth") }
func (d *fakeDriver) SetModulation(Modulation) error { return d.record("modulation") }
func (d *fakeDriver) SetBitRate(uint32) error { return d.record("bit_rate") }
func (d *fakeDriver) SetSync([]byte) error { return d.record("sync") }
func (d *fakeDriver) SetPacketFormat(PacketFormat) error { return d.record("packet_format") }
func (d *fakeDriver) SetPayloadLength(uint8) error { return d.record("payload_length") }
func (d *fakeDriver) SetRssiThreshold(int8) error { return d.record("rssi_threshold") }
func (d *fakeDriver) OnInterrupt(fn func()) {
	d.mu.Lock()
	d.callback = fn
	d.mu.Unlock()
}

func (d *fakeDriver) SetOutputPower(dbm int8) error {
	if err := d.record("output_power"); err != nil {
		return err
	}
	d.mu.Lock()
	d.power = append(d.power, dbm)
	d.mu.Unlock()
	return nil
}

func (d *fakeDriver) SetMode(m Mode) error {
	if err := d.record("mode_" + m.String()); err != nil {
		return err
	}
	d.mu.Lock()
	d.mode = m
	d.modes = append(d.modes, m)
	if m != ModeReceiving {
		// leaving receive restarts the rssi sampler
		d.flags &^= IrqRssi
	}
	d.mu.Unlock()
	if m == ModeReceiving {
		d.rxEntered <- struct{}{}
	}
	return nil
}

func (d *fakeDriver) SetInterruptMask(mask DioMask) error {
	if err := d.record("interrupt_mask"); err != nil {
		return err
	}
	d.mu.Lock()
	d.masks = append(d.masks, mask)
	d.mu.Unlock()
	return nil
}

func (d *fakeDriver) SetDioMapping(pin DioPin, mapping DioMapping) error {
	if err := d.record("dio_mapping"); err != nil {
		return err
	}
	d.mu.Lock()
	d.mappings = append(d.mappings, DioAssignment{Pin: pin, Mapping: mapping})
	d.mu.Unlock()
	return nil
}

func (d *fakeDriver) Rssi() (float64, error) {
	if err := d.record("rssi"); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rssi, nil
}

func (d *fakeDriver) IrqFlags() (IrqFlags, error) {
	if err := d.record("irq_flags"); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flags, nil
}

func (d *fakeDriver) ReadPayload() ([]byte, error) {
	if err := d.record("read_payload"); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode == ModeReceiving {
		return nil, errors.New("payload read while receiving")
	}
	p := d.payload
	d.payload = nil
	d.flags &^= IrqPayloadReady
	return p, nil
}

func (d *fakeDriver) Transmit(payload []byte) error {
	if err := d.record("transmit"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode == ModeReceiving {
		return errors.New("transmit while receiving")
	}
	d.sent = append(d.sent, append([]byte(nil), payload...))
	return nil
}

func (d *fakeDriver) Close() error {
	if err := d.record("close"); err != nil {
		return err
	}
	d.mu.Lock()
	d.closed++
	d.mu.Unlock()
	return nil
}

// deliver loads a frame and fires the interrupt the way DIO0 would.
func (d *fakeDriver) deliver(payload []byte) {
	d.mu.Lock()
	d.payload = payload
	d.flags |= IrqPayloadReady
	cb := d.callback
	d.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// crossRssi raises the rssi threshold event the way a remapped DIO0 would.
func (d *fakeDriver) crossRssi() {
	d.mu.Lock()
	d.flags |= IrqRssi
	cb := d.callback
	d.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (d *fakeDriver) count(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c == op {
			n++
		}
	}
	return n
}

// spurious fires the interrupt without a ready payload.
func (d *fakeDriver) spurious() {
	d.mu.Lock()
	cb := d.callback
	d.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (d *fakeDriver) awaitRx(t interface{ Fatalf(string, ...any) }) {
	select {
	case <-d.rxEntered:
	case <-time.After(2 * time.Second):
		t.Fatalf("radio did not enter receive mode")
	}
}

func (d *fakeDriver) snapshot() (calls []string, modes []Mode, masks []DioMask, sent [][]byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...), append([]Mode(nil), d.modes...), append([]DioMask(nil), d.masks...), append([][]byte(nil), d.sent...)
}

func (d *fakeDriver) currentMode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

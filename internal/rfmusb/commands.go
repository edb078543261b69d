package rfmusb

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/skobkin/rfmgo/internal/radio"
)

func onOff(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (d *Device) Reset() error {
	return d.set("e-r")
}

func (d *Device) SetFrequency(hz uint32) error {
	return d.set("s-f %d", hz)
}

func (d *Device) SetFrequencyDeviation(dev uint16) error {
	return d.set("s-fd 0x%X", dev)
}

func (d *Device) SetRxBandwidth(bw uint8) error {
	return d.set("s-rxbw %d", bw)
}

func (d *Device) SetModulation(m radio.Modulation) error {
	return d.set("s-mt %d", m)
}

func (d *Device) SetBitRate(bps uint32) error {
	return d.set("s-br %d", bps)
}

func (d *Device) SetSync(sync []byte) error {
	if len(sync) == 0 || len(sync) > 8 {
		return fmt.Errorf("sync must be 1 to 8 bytes, got %d", len(sync))
	}
	return d.set("s-sync %s", strings.ToUpper(hex.EncodeToString(sync)))
}

// SetPacketFormat selects fixed-length packets with the given options.
func (d *Device) SetPacketFormat(f radio.PacketFormat) error {
	dcFree := 0
	if f.Manchester {
		dcFree = 1
	}
	steps := []struct {
		format string
		arg    int
	}{
		{"s-pf %d", 0},
		{"s-dfe %d", dcFree},
		{"s-crc %d", onOff(f.CrcOn)},
		{"s-af %d", onOff(f.AddressFiltering)},
		{"s-tsc %d", onOff(f.TxStartFifoNotEmpty)},
	}
	for _, s := range steps {
		if err := d.set(s.format, s.arg); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) SetPayloadLength(n uint8) error {
	return d.set("s-pl %d", n)
}

func (d *Device) SetOutputPower(dbm int8) error {
	return d.set("s-op %d", dbm)
}

func (d *Device) SetRssiThreshold(dbm int8) error {
	return d.set("s-rt %d", dbm)
}

func (d *Device) SetMode(m radio.Mode) error {
	return d.set("s-om %d", m)
}

func (d *Device) SetInterruptMask(mask radio.DioMask) error {
	return d.set("s-dim 0x%02X", uint8(mask))
}

// SetDioMapping routes a signal to a DIO pin; the mapping's meaning depends
// on the operating mode.
func (d *Device) SetDioMapping(pin radio.DioPin, mapping radio.DioMapping) error {
	return d.set("s-dio %d %d", pin, mapping)
}

func (d *Device) IrqFlags() (radio.IrqFlags, error) {
	resp, err := d.command("g-irq")
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(resp, 0, 16)
	if err != nil {
		return 0, &CommandError{Command: "g-irq", Response: resp}
	}
	return radio.IrqFlags(v), nil
}

// ReadPayload drains the FIFO. The firmware answers with the bytes as a hex
// string, optionally comma separated.
func (d *Device) ReadPayload() ([]byte, error) {
	resp, err := d.command("g-fifo")
	if err != nil {
		return nil, err
	}
	payload, err := hex.DecodeString(strings.NewReplacer(",", "", " ", "", "0x", "").Replace(resp))
	if err != nil {
		return nil, &CommandError{Command: "g-fifo", Response: resp}
	}
	return payload, nil
}

func (d *Device) Transmit(payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("transmit: empty payload")
	}
	return d.set("e-tx %s", strings.ToUpper(hex.EncodeToString(payload)))
}

// Rssi returns the last sampled signal strength in dBm.
func (d *Device) Rssi() (float64, error) {
	resp, err := d.command("g-rssi")
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(resp, 64)
	if err != nil {
		return 0, &CommandError{Command: "g-rssi", Response: resp}
	}
	return v, nil
}

// Version returns the firmware version string.
func (d *Device) Version() (string, error) {
	return d.command("g-fv")
}

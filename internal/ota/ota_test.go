package ota

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func hexRecord(addr uint16, typ byte, data []byte) string {
	raw := []byte{byte(len(data)), byte(addr >> 8), byte(addr), typ}
	raw = append(raw, data...)
	var sum byte
	for _, b := range raw {
		sum += b
	}
	raw = append(raw, -sum)
	return fmt.Sprintf(":%X\n", raw)
}

func testImage(data []byte) string {
	var sb strings.Builder
	sb.WriteString(hexRecord(0, recordExtendedLinear, []byte{0x00, 0x01}))
	for off := 0; off < len(data); off += 16 {
		sb.WriteString(hexRecord(uint16(off), recordData, data[off:min(off+16, len(data))]))
	}
	sb.WriteString(hexRecord(0, recordEOF, nil))
	return sb.String()
}

func TestParseHex(t *testing.T) {
	data := make([]byte, 40)
	for i := range data {
		data[i] = byte(i)
	}
	img, err := ParseHex(strings.NewReader(testImage(data)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if img.Base != 0x10000 {
		t.Fatalf("expected base 0x10000, got 0x%X", img.Base)
	}
	if !bytes.Equal(img.Data, data) {
		t.Fatalf("unexpected data %X", img.Data)
	}
}

func TestParseHexFillsGaps(t *testing.T) {
	src := hexRecord(0x0000, recordData, []byte{0x01}) +
		hexRecord(0x0003, recordData, []byte{0x02}) +
		hexRecord(0, recordEOF, nil)
	img, err := ParseHex(strings.NewReader(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []byte{0x01, 0xFF, 0xFF, 0x02}
	if !bytes.Equal(img.Data, want) {
		t.Fatalf("expected %X, got %X", want, img.Data)
	}
}

func TestParseHexRejectsMalformed(t *testing.T) {
	good := hexRecord(0, recordData, []byte{0xAA, 0xBB})
	tests := []struct {
		name string
		src  string
	}{
		{name: "no start code", src: strings.TrimPrefix(good, ":") + hexRecord(0, recordEOF, nil)},
		{name: "bad checksum", src: good[:len(good)-3] + "00\n" + hexRecord(0, recordEOF, nil)},
		{name: "bad hex digits", src: ":ZZ\n"},
		{name: "missing eof", src: good},
		{name: "no data", src: hexRecord(0, recordEOF, nil)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseHex(strings.NewReader(tc.src)); !errors.Is(err, ErrHexFormat) {
				t.Fatalf("expected ErrHexFormat, got %v", err)
			}
		})
	}
}

// fakeBootloader answers requests the way a sensor bootloader does.
type fakeBootloader struct {
	flashSize uint32
	flash     []byte
	power     int8
	pending   [][]byte
	dropFirst int
	corrupt   bool
	txErr     error
	commands  []byte
}

func newFakeBootloader(size uint32) *fakeBootloader {
	return &fakeBootloader{flashSize: size, flash: bytes.Repeat([]byte{0xFF}, int(size))}
}

func (b *fakeBootloader) SetOutputPower(dbm int8) error {
	b.power = dbm
	return nil
}

func (b *fakeBootloader) Transmit(frame []byte) error {
	if b.txErr != nil {
		return b.txErr
	}
	cmd := frame[1]
	args := frame[2 : int(frame[0])+1]
	b.commands = append(b.commands, cmd)
	if b.dropFirst > 0 {
		b.dropFirst--
		return nil
	}

	var data []byte
	switch cmd {
	case CmdFlashSize:
		data = binary.BigEndian.AppendUint32(nil, b.flashSize)
	case CmdErase:
		addr, n := binary.BigEndian.Uint32(args), binary.BigEndian.Uint32(args[4:])
		for i := addr; i < addr+n; i++ {
			b.flash[i] = 0xFF
		}
	case CmdWrite:
		addr := binary.BigEndian.Uint32(args)
		copy(b.flash[addr:], args[4:])
	case CmdCrc:
		addr, n := binary.BigEndian.Uint32(args), binary.BigEndian.Uint32(args[4:])
		crc := crc32.ChecksumIEEE(b.flash[addr : addr+n])
		if b.corrupt {
			crc++
		}
		data = binary.BigEndian.AppendUint32(nil, crc)
	}
	resp := append([]byte{byte(2 + len(data)), cmd | responseBit, statusOK}, data...)
	// Responses arrive in fixed-length radio payloads.
	resp = append(resp, make([]byte, 66-len(resp))...)
	b.pending = append(b.pending, resp)
	return nil
}

func (b *fakeBootloader) Receive(time.Duration) ([]byte, error) {
	if len(b.pending) == 0 {
		return nil, ErrTimeout
	}
	resp := b.pending[0]
	b.pending = b.pending[1:]
	return resp, nil
}

func newTestUpdater() *Updater {
	u := NewUpdater(slog.New(slog.NewTextHandler(io.Discard, nil)))
	u.RequestTimeout = 50 * time.Millisecond
	u.Retries = 3
	return u
}

func TestUpdateFlashesImage(t *testing.T) {
	data := bytes.Repeat([]byte{0x12, 0x34, 0x56}, 30)
	dev := newFakeBootloader(0x20000)

	crc, err := newTestUpdater().Update(dev, 7, strings.NewReader(testImage(data)))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if crc != crc32.ChecksumIEEE(data) {
		t.Fatalf("unexpected crc 0x%08X", crc)
	}
	if !bytes.Equal(dev.flash[0x10000:0x10000+len(data)], data) {
		t.Fatalf("flash content mismatch")
	}
	if dev.power != 7 {
		t.Fatalf("expected output power 7, got %d", dev.power)
	}
	if last := dev.commands[len(dev.commands)-1]; last != CmdReboot {
		t.Fatalf("expected reboot last, got 0x%02X", last)
	}
}

func TestUpdateRetriesLostRequests(t *testing.T) {
	dev := newFakeBootloader(0x20000)
	dev.dropFirst = 2

	if _, err := newTestUpdater().Update(dev, 0, strings.NewReader(testImage([]byte{1, 2, 3}))); err != nil {
		t.Fatalf("update: %v", err)
	}
	if dev.commands[0] != CmdPing || dev.commands[2] != CmdPing {
		t.Fatalf("expected ping to be retried, got %X", dev.commands)
	}
}

func TestUpdateFailures(t *testing.T) {
	linkErr := errors.New("serial gone")
	tests := []struct {
		name  string
		setup func(*fakeBootloader)
		want  error
	}{
		{name: "no response", setup: func(b *fakeBootloader) { b.dropFirst = 100 }, want: ErrNoResponse},
		{name: "crc mismatch", setup: func(b *fakeBootloader) { b.corrupt = true }, want: ErrCrcMismatch},
		{name: "too large", setup: func(b *fakeBootloader) { b.flashSize = 0x10001 }, want: ErrImageTooLarge},
		{name: "link error", setup: func(b *fakeBootloader) { b.txErr = linkErr }, want: linkErr},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dev := newFakeBootloader(0x20000)
			tc.setup(dev)
			_, err := newTestUpdater().Update(dev, 0, strings.NewReader(testImage([]byte{1, 2, 3, 4})))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestParseResponseIgnoresForeignFrames(t *testing.T) {
	if _, ok, err := parseResponse([]byte{0x02, CmdPing | responseBit, statusOK}, CmdCrc); ok || err != nil {
		t.Fatalf("expected foreign response to be skipped, got ok=%v err=%v", ok, err)
	}
	if _, _, err := parseResponse([]byte{0x02, CmdCrc | responseBit, 0x01}, CmdCrc); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

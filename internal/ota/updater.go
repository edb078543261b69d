package ota

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"time"
)

// Bootloader commands. A request is [len][cmd][args...] and a response is
// [len][cmd|0x80][status][data...], len counting the bytes after itself.
const (
	CmdPing      byte = 0x01
	CmdFlashSize byte = 0x02
	CmdErase     byte = 0x03
	CmdWrite     byte = 0x04
	CmdCrc       byte = 0x05
	CmdReboot    byte = 0x06

	responseBit byte = 0x80
	statusOK    byte = 0x00
)

const (
	DefaultRequestTimeout = 500 * time.Millisecond
	DefaultRetries        = 5
	// MaxChunk is the largest write that fits one radio frame.
	MaxChunk = 32
)

var (
	ErrNoResponse    = errors.New("bootloader did not respond")
	ErrRejected      = errors.New("bootloader rejected command")
	ErrImageTooLarge = errors.New("image does not fit device flash")
	ErrCrcMismatch   = errors.New("flash crc mismatch")
)

// Updater flashes a sensor's bootloader with an Intel HEX image.
type Updater struct {
	logger         *slog.Logger
	RequestTimeout time.Duration
	Retries        int
	ChunkSize      int
}

func NewUpdater(logger *slog.Logger) *Updater {
	return &Updater{
		logger:         logger,
		RequestTimeout: DefaultRequestTimeout,
		Retries:        DefaultRetries,
		ChunkSize:      MaxChunk,
	}
}

// Update parses image, writes it to flash and verifies it. It returns the
// CRC-32 of the flashed range.
func (u *Updater) Update(link Link, outputPower int8, image io.Reader) (uint32, error) {
	img, err := ParseHex(image)
	if err != nil {
		return 0, err
	}
	if err := link.SetOutputPower(outputPower); err != nil {
		return 0, err
	}

	if _, err := u.request(link, CmdPing, nil); err != nil {
		return 0, fmt.Errorf("ping: %w", err)
	}
	resp, err := u.request(link, CmdFlashSize, nil)
	if err != nil {
		return 0, fmt.Errorf("flash size: %w", err)
	}
	if len(resp) < 4 {
		return 0, fmt.Errorf("flash size: short response")
	}
	flashSize := binary.BigEndian.Uint32(resp)
	end := uint64(img.Base) + uint64(len(img.Data))
	if end > uint64(flashSize) {
		return 0, fmt.Errorf("%w: image ends at 0x%X, flash is 0x%X", ErrImageTooLarge, end, flashSize)
	}

	length := uint32(len(img.Data)) // #nosec G115 -- bounded by flash size above.
	u.logger.Info("erasing flash", "base", fmt.Sprintf("0x%08X", img.Base), "length", length)
	if _, err := u.request(link, CmdErase, addrLen(img.Base, length)); err != nil {
		return 0, fmt.Errorf("erase: %w", err)
	}

	chunk := u.ChunkSize
	if chunk <= 0 || chunk > MaxChunk {
		chunk = MaxChunk
	}
	for off := 0; off < len(img.Data); off += chunk {
		part := img.Data[off:min(off+chunk, len(img.Data))]
		args := make([]byte, 4, 4+len(part))
		binary.BigEndian.PutUint32(args, img.Base+uint32(off)) // #nosec G115 -- bounded by flash size above.
		args = append(args, part...)
		if _, err := u.request(link, CmdWrite, args); err != nil {
			return 0, fmt.Errorf("write at 0x%08X: %w", img.Base+uint32(off), err) // #nosec G115
		}
		u.logger.Debug("chunk written", "offset", off, "total", len(img.Data))
	}

	resp, err = u.request(link, CmdCrc, addrLen(img.Base, length))
	if err != nil {
		return 0, fmt.Errorf("crc: %w", err)
	}
	if len(resp) < 4 {
		return 0, fmt.Errorf("crc: short response")
	}
	want := crc32.ChecksumIEEE(img.Data)
	got := binary.BigEndian.Uint32(resp)
	if got != want {
		return 0, fmt.Errorf("%w: device 0x%08X, image 0x%08X", ErrCrcMismatch, got, want)
	}

	if _, err := u.request(link, CmdReboot, nil); err != nil {
		u.logger.Warn("reboot not acknowledged", "error", err)
	}
	return want, nil
}

// request sends cmd and returns the response data. Timeouts and foreign
// frames are retried; link failures are returned at once.
func (u *Updater) request(link Link, cmd byte, args []byte) ([]byte, error) {
	frame := make([]byte, 0, 2+len(args))
	frame = append(frame, byte(1+len(args)), cmd) // #nosec G115 -- args never exceed a chunk plus address.
	frame = append(frame, args...)

	attempts := max(u.Retries, 1)
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := link.Transmit(frame); err != nil {
			return nil, err
		}
		deadline := time.Now().Add(u.RequestTimeout)
		for {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				break
			}
			resp, err := link.Receive(remaining)
			if errors.Is(err, ErrTimeout) {
				break
			}
			if err != nil {
				return nil, err
			}
			data, ok, err := parseResponse(resp, cmd)
			if err != nil {
				return nil, err
			}
			if ok {
				return data, nil
			}
		}
		u.logger.Debug("bootloader request timed out", "cmd", cmd, "attempt", attempt)
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrNoResponse, attempts)
}

// parseResponse reports ok=false for frames that are not a response to cmd.
func parseResponse(resp []byte, cmd byte) ([]byte, bool, error) {
	if len(resp) < 3 || int(resp[0])+1 > len(resp) || resp[0] < 2 {
		return nil, false, nil
	}
	if resp[1] != cmd|responseBit {
		return nil, false, nil
	}
	if status := resp[2]; status != statusOK {
		return nil, false, fmt.Errorf("%w: status 0x%02X", ErrRejected, status)
	}
	return resp[3 : int(resp[0])+1], true, nil
}

func addrLen(addr, length uint32) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint32(b, addr)
	binary.BigEndian.PutUint32(b[4:], length)
	return b
}

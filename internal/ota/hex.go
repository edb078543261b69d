package ota

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrHexFormat marks a malformed Intel HEX image.
var ErrHexFormat = errors.New("invalid intel hex")

const (
	recordData            = 0x00
	recordEOF             = 0x01
	recordExtendedSegment = 0x02
	recordExtendedLinear  = 0x04
)

// Image is a contiguous firmware image. Gaps between HEX records are filled
// with 0xFF, the erased flash value.
type Image struct {
	Base uint32
	Data []byte
}

// ParseHex reads an Intel HEX stream up to its end-of-file record.
func ParseHex(r io.Reader) (Image, error) {
	type chunk struct {
		addr uint32
		data []byte
	}

	var (
		chunks  []chunk
		offset  uint32
		sawEOF  bool
		lineNum int
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, ":") {
			return Image{}, fmt.Errorf("%w: line %d: missing start code", ErrHexFormat, lineNum)
		}
		raw, err := hex.DecodeString(line[1:])
		if err != nil {
			return Image{}, fmt.Errorf("%w: line %d: %v", ErrHexFormat, lineNum, err)
		}
		if len(raw) < 5 || len(raw) != int(raw[0])+5 {
			return Image{}, fmt.Errorf("%w: line %d: bad record length", ErrHexFormat, lineNum)
		}
		var sum byte
		for _, b := range raw {
			sum += b
		}
		if sum != 0 {
			return Image{}, fmt.Errorf("%w: line %d: checksum mismatch", ErrHexFormat, lineNum)
		}

		n := int(raw[0])
		addr := uint32(raw[1])<<8 | uint32(raw[2])
		data := raw[4 : 4+n]
		switch raw[3] {
		case recordData:
			chunks = append(chunks, chunk{addr: offset + addr, data: data})
		case recordEOF:
			sawEOF = true
		case recordExtendedSegment:
			if n != 2 {
				return Image{}, fmt.Errorf("%w: line %d: bad segment record", ErrHexFormat, lineNum)
			}
			offset = (uint32(data[0])<<8 | uint32(data[1])) << 4
		case recordExtendedLinear:
			if n != 2 {
				return Image{}, fmt.Errorf("%w: line %d: bad linear record", ErrHexFormat, lineNum)
			}
			offset = (uint32(data[0])<<8 | uint32(data[1])) << 16
		default:
			// Start address records carry nothing to flash.
		}
		if sawEOF {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return Image{}, fmt.Errorf("read hex: %w", err)
	}
	if !sawEOF {
		return Image{}, fmt.Errorf("%w: missing end-of-file record", ErrHexFormat)
	}
	if len(chunks) == 0 {
		return Image{}, fmt.Errorf("%w: no data records", ErrHexFormat)
	}

	lo, hi := chunks[0].addr, chunks[0].addr
	for _, c := range chunks {
		lo = min(lo, c.addr)
		hi = max(hi, c.addr+uint32(len(c.data)))
	}
	img := Image{Base: lo, Data: make([]byte, hi-lo)}
	for i := range img.Data {
		img.Data[i] = 0xFF
	}
	for _, c := range chunks {
		copy(img.Data[c.addr-lo:], c.data)
	}
	return img, nil
}

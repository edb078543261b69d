package openthings

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

// RecordType is the high nibble of a record's type byte.
type RecordType uint8

const (
	TypeUnsignedX0  RecordType = 0x00
	TypeUnsignedX4  RecordType = 0x10
	TypeUnsignedX8  RecordType = 0x20
	TypeUnsignedX12 RecordType = 0x30
	TypeUnsignedX16 RecordType = 0x40
	TypeUnsignedX20 RecordType = 0x50
	TypeUnsignedX24 RecordType = 0x60
	TypeChars       RecordType = 0x70
	TypeSignedX0    RecordType = 0x80
	TypeSignedX8    RecordType = 0x90
	TypeSignedX16   RecordType = 0xA0
	TypeSignedX24   RecordType = 0xB0
	TypeEnum        RecordType = 0xC0
	TypeFloat       RecordType = 0xF0
)

// MaxValueLength is the largest value payload a record length nibble can carry.
const MaxValueLength = 0x0F

// Value is a typed record payload. Data is big endian.
type Value struct {
	Type RecordType
	Data []byte
}

// Uint builds an unsigned integer value of the given byte width.
func Uint(width int, v uint64) Value {
	return Value{Type: TypeUnsignedX0, Data: putBigEndian(width, v)}
}

// Int builds a signed (two's complement) integer value of the given byte width.
func Int(width int, v int64) Value {
	// #nosec G115 -- two's complement reinterpretation is intended.
	return Value{Type: TypeSignedX0, Data: putBigEndian(width, uint64(v))}
}

// Empty builds a zero-length value used by bare commands.
func Empty() Value {
	return Value{Type: TypeSignedX0}
}

func putBigEndian(width int, v uint64) []byte {
	if width <= 0 {
		return nil
	}
	out := make([]byte, width)
	for i := width - 1; i >= 0 && v != 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

func (v Value) Len() int {
	return len(v.Data)
}

func (v Value) IsSigned() bool {
	return v.Type >= TypeSignedX0 && v.Type <= TypeSignedX24
}

// Uint returns the raw unsigned integer held in Data, ignoring fixed point.
func (v Value) Uint() uint64 {
	var out uint64
	for _, b := range v.Data {
		out = out<<8 | uint64(b)
	}
	return out
}

// Int returns the raw integer sign-extended from the value width.
func (v Value) Int() int64 {
	raw := v.Uint()
	n := len(v.Data)
	if n == 0 || n >= 8 {
		// #nosec G115 -- full-width reinterpretation.
		return int64(raw)
	}
	shift := uint(64 - 8*n)
	// #nosec G115 -- sign extension via arithmetic shift.
	return int64(raw<<shift) >> shift
}

// Float returns the value scaled by its fixed point binary places.
func (v Value) Float() float64 {
	if v.Type == TypeFloat && len(v.Data) == 4 {
		return float64(math.Float32frombits(uint32(v.Uint())))
	}
	var base float64
	if v.IsSigned() {
		base = float64(v.Int())
	} else {
		base = float64(v.Uint())
	}
	return base / float64(uint64(1)<<v.binaryPlaces())
}

func (v Value) binaryPlaces() uint {
	switch v.Type {
	case TypeUnsignedX4:
		return 4
	case TypeUnsignedX8, TypeSignedX8:
		return 8
	case TypeUnsignedX12:
		return 12
	case TypeUnsignedX16, TypeSignedX16:
		return 16
	case TypeUnsignedX20:
		return 20
	case TypeUnsignedX24, TypeSignedX24:
		return 24
	default:
		return 0
	}
}

func (v Value) Equal(other Value) bool {
	return v.Type == other.Type && bytes.Equal(v.Data, other.Data)
}

func (v Value) String() string {
	switch {
	case len(v.Data) == 0:
		return "<empty>"
	case v.Type == TypeChars:
		return strings.TrimRight(string(v.Data), "\x00")
	case v.Type == TypeEnum:
		return "0x" + strings.ToUpper(hex.EncodeToString(v.Data))
	case v.binaryPlaces() == 0 && v.Type != TypeFloat:
		if v.IsSigned() {
			return fmt.Sprintf("%d", v.Int())
		}
		return fmt.Sprintf("%d", v.Uint())
	default:
		return fmt.Sprintf("%g", v.Float())
	}
}

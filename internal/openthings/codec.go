package openthings

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	headerLen   = 5
	sensorIDLen = 3
	crcLen      = 2
	// length byte + header + sensor id + terminator + crc
	minFrameLen = headerLen + sensorIDLen + 1 + crcLen
	maxFrameLen = 0xFF + 1
	maxSensorID = 0xFFFFFF
)

// ErrDecode marks malformed, corrupted or foreign frames.
var ErrDecode = errors.New("openthings decode")

// ErrEncode marks messages that cannot be represented on air.
var ErrEncode = errors.New("openthings encode")

// Codec converts between radio payloads and messages. It holds no state.
type Codec struct{}

func NewCodec() *Codec {
	return &Codec{}
}

// Decode parses one frame. The payload may carry trailing FIFO padding past the
// frame length byte.
func (c *Codec) Decode(payload []byte, table ManufacturerTable) (Message, error) {
	if len(payload) < minFrameLen {
		return Message{}, fmt.Errorf("%w: frame too short: %d bytes", ErrDecode, len(payload))
	}
	frameLen := int(payload[0]) + 1
	if frameLen < minFrameLen {
		return Message{}, fmt.Errorf("%w: invalid frame length byte: %d", ErrDecode, payload[0])
	}
	if frameLen > len(payload) {
		return Message{}, fmt.Errorf("%w: frame length %d exceeds payload %d", ErrDecode, frameLen, len(payload))
	}
	frame := payload[:frameLen]

	header := Header{
		ManufacturerID: frame[1],
		ProductID:      frame[2],
		Pip:            binary.BigEndian.Uint16(frame[3:5]),
	}
	pid, ok := table.PID(header.ManufacturerID)
	if !ok {
		pid = DefaultPID
	}

	plain := make([]byte, len(frame)-headerLen)
	copy(plain, frame[headerLen:])
	newCipher(pid, header.Pip).applyAll(plain)

	body := plain[:len(plain)-crcLen]
	want := binary.BigEndian.Uint16(plain[len(plain)-crcLen:])
	if got := crc16(body); got != want {
		return Message{}, fmt.Errorf("%w: crc mismatch: got 0x%04X, want 0x%04X", ErrDecode, got, want)
	}

	header.SensorID = uint32(body[0])<<16 | uint32(body[1])<<8 | uint32(body[2])
	records, err := decodeRecords(body[sensorIDLen:])
	if err != nil {
		return Message{}, err
	}

	return Message{Header: header, Records: records}, nil
}

func decodeRecords(buf []byte) ([]Record, error) {
	var records []Record
	i := 0
	for {
		if i >= len(buf) {
			return nil, fmt.Errorf("%w: missing record terminator", ErrDecode)
		}
		id := buf[i]
		if id == 0 {
			if i != len(buf)-1 {
				return nil, fmt.Errorf("%w: %d bytes after record terminator", ErrDecode, len(buf)-1-i)
			}
			return records, nil
		}
		if i+1 >= len(buf) {
			return nil, fmt.Errorf("%w: record 0x%02X missing type byte", ErrDecode, id)
		}
		typ := buf[i+1]
		n := int(typ & MaxValueLength)
		start := i + 2
		if start+n > len(buf) {
			return nil, fmt.Errorf("%w: record 0x%02X value overruns frame", ErrDecode, id)
		}
		data := make([]byte, n)
		copy(data, buf[start:start+n])
		records = append(records, Record{
			Parameter: LookupParameter(id),
			Value:     Value{Type: RecordType(typ &^ MaxValueLength), Data: data},
		})
		i = start + n
	}
}

// Encode uses the manufacturer default encryption id and the header's
// reference value.
func (c *Codec) Encode(msg Message) ([]byte, error) {
	return c.encode(msg, DefaultPID, msg.Header.Pip)
}

// EncodeWithSeed encrypts with the given seed byte and reference value. The
// reference is written into the frame header.
func (c *Codec) EncodeWithSeed(msg Message, seed uint8, ref uint16) ([]byte, error) {
	return c.encode(msg, seed, ref)
}

func (c *Codec) encode(msg Message, pid uint8, pip uint16) ([]byte, error) {
	if msg.Header.SensorID > maxSensorID {
		return nil, fmt.Errorf("%w: sensor id 0x%X exceeds 24 bits", ErrEncode, msg.Header.SensorID)
	}

	body := make([]byte, 0, 32)
	body = append(body, byte(msg.Header.SensorID>>16), byte(msg.Header.SensorID>>8), byte(msg.Header.SensorID))
	for _, r := range msg.Records {
		if r.Parameter.ID == 0 {
			return nil, fmt.Errorf("%w: parameter id 0 is reserved", ErrEncode)
		}
		if r.Value.Len() > MaxValueLength {
			return nil, fmt.Errorf("%w: %s value is %d bytes", ErrEncode, r.Parameter, r.Value.Len())
		}
		// #nosec G115 -- bounded by MaxValueLength above.
		body = append(body, r.Parameter.ID, byte(r.Value.Type)&^MaxValueLength|byte(r.Value.Len()))
		body = append(body, r.Value.Data...)
	}
	body = append(body, 0)
	body = binary.BigEndian.AppendUint16(body, crc16(body))

	frameLen := headerLen + len(body)
	if frameLen > maxFrameLen {
		return nil, fmt.Errorf("%w: frame is %d bytes", ErrEncode, frameLen)
	}

	frame := make([]byte, headerLen, frameLen)
	// #nosec G115 -- bounded by maxFrameLen above.
	frame[0] = byte(frameLen - 1)
	frame[1] = msg.Header.ManufacturerID
	frame[2] = msg.Header.ProductID
	binary.BigEndian.PutUint16(frame[3:5], pip)

	newCipher(pid, pip).applyAll(body)
	frame = append(frame, body...)

	return frame, nil
}

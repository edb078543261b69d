package openthings

import (
	"errors"
	"testing"
)

func energenieTable() ManufacturerTable {
	return NewManufacturerTable(
		[]PidEntry{{ManufacturerID: ManufacturerEnergenie, Pid: DefaultPID}},
		[]PipEntry{{ManufacturerID: ManufacturerEnergenie, Pip: DefaultPID}},
	)
}

func sampleMessage() Message {
	return Message{
		Header: Header{ManufacturerID: ManufacturerEnergenie, ProductID: 0x02, SensorID: 0x001234},
		Records: []Record{
			{Parameter: LookupParameter(ParamRealPower), Value: Uint(2, 1500)},
			{Parameter: LookupParameter(ParamTemperature), Value: Value{Type: TypeSignedX8, Data: []byte{0x15, 0x80}}},
		},
	}
}

func TestCodecEncodeWithSeedRoundTrips(t *testing.T) {
	codec := NewCodec()
	msg := sampleMessage()

	raw, err := codec.EncodeWithSeed(msg, DefaultPID, 0xBEEF)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if int(raw[0])+1 != len(raw) {
		t.Fatalf("length byte %d does not match frame size %d", raw[0], len(raw))
	}

	got, err := codec.Decode(raw, energenieTable())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Equivalent(msg) {
		t.Fatalf("round trip mismatch:\n got %s\nwant %s", got, msg)
	}
	if got.Header.Pip != 0xBEEF {
		t.Fatalf("expected reference 0xBEEF in header, got 0x%04X", got.Header.Pip)
	}
	if temp := got.Records[1].Value.Float(); temp != 21.5 {
		t.Fatalf("expected temperature 21.5, got %v", temp)
	}
}

func TestCodecDecodeIgnoresFifoPadding(t *testing.T) {
	codec := NewCodec()
	raw, err := codec.Encode(sampleMessage())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	padded := make([]byte, 66)
	copy(padded, raw)

	got, err := codec.Decode(padded, energenieTable())
	if err != nil {
		t.Fatalf("decode padded: %v", err)
	}
	if !got.Equivalent(sampleMessage()) {
		t.Fatalf("unexpected message %s", got)
	}
}

func TestCodecDecodeRejectsMalformedFrames(t *testing.T) {
	codec := NewCodec()
	valid, err := codec.Encode(sampleMessage())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	corrupted := append([]byte(nil), valid...)
	corrupted[7] ^= 0xFF

	tooLong := append([]byte(nil), valid...)
	tooLong[0] = 0xF0

	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "empty", payload: nil},
		{name: "short", payload: []byte{0x03, 0x04, 0x02, 0x00}},
		{name: "corrupted body", payload: corrupted},
		{name: "length overrun", payload: tooLong},
		{name: "noise", payload: []byte{0x0A, 0x55, 0x55, 0x55, 0x55, 0x55, 0x55, 0x55, 0x55, 0x55, 0x55}},
	}

	for _, tc := range tests {
		_, err := codec.Decode(tc.payload, energenieTable())
		if !errors.Is(err, ErrDecode) {
			t.Fatalf("%s: expected decode error, got %v", tc.name, err)
		}
	}
}

func TestCodecDecodeUsesManufacturerPid(t *testing.T) {
	codec := NewCodec()
	msg := sampleMessage()
	msg.Header.ManufacturerID = 0x21

	raw, err := codec.EncodeWithSeed(msg, 0x33, 0x0102)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if _, err := codec.Decode(raw, energenieTable()); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected default pid to fail for foreign manufacturer, got %v", err)
	}

	table := NewManufacturerTable([]PidEntry{{ManufacturerID: 0x21, Pid: 0x33}}, nil)
	got, err := codec.Decode(raw, table)
	if err != nil {
		t.Fatalf("decode with table pid: %v", err)
	}
	if !got.Equivalent(msg) {
		t.Fatalf("unexpected message %s", got)
	}
}

func TestCodecEncodeRejectsUnrepresentableMessages(t *testing.T) {
	codec := NewCodec()

	tooWide := sampleMessage()
	tooWide.Header.SensorID = 0x01000000
	if _, err := codec.Encode(tooWide); !errors.Is(err, ErrEncode) {
		t.Fatalf("expected encode error for 32-bit sensor id, got %v", err)
	}

	longValue := sampleMessage()
	longValue.Records = []Record{{Parameter: LookupParameter(ParamDebugOutput), Value: Value{Type: TypeChars, Data: make([]byte, 16)}}}
	if _, err := codec.Encode(longValue); !errors.Is(err, ErrEncode) {
		t.Fatalf("expected encode error for 16 byte value, got %v", err)
	}
}

func TestCodecEncodesCommandRecordWithEmptyValue(t *testing.T) {
	codec := NewCodec()
	msg := Message{
		Header:  Header{ManufacturerID: ManufacturerEnergenie, ProductID: 0x0C, SensorID: 0xABCDEF},
		Records: []Record{{Parameter: IdentifyCommand(), Value: Empty()}},
	}

	raw, err := codec.Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := codec.Decode(raw, ManufacturerTable{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Records) != 1 {
		t.Fatalf("expected one record, got %d", len(got.Records))
	}
	rec := got.Records[0]
	if rec.Parameter.ID != ParamIdentify|CommandBit || !rec.Parameter.IsCommand() {
		t.Fatalf("expected identify command, got %+v", rec.Parameter)
	}
	if rec.Value.Len() != 0 {
		t.Fatalf("expected empty value, got %d bytes", rec.Value.Len())
	}
}

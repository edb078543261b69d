package radio

import (
	"fmt"
	"math/rand/v2"

	"github.com/skobkin/rfmgo/internal/openthings"
)

// Decoder turns a received payload into a message.
type Decoder interface {
	Decode(payload []byte, table openthings.ManufacturerTable) (openthings.Message, error)
}

// Encoder turns a message into an on-air frame.
type Encoder interface {
	Encode(msg openthings.Message) ([]byte, error)
	EncodeWithSeed(msg openthings.Message, seed uint8, ref uint16) ([]byte, error)
}

type Codec interface {
	Decoder
	Encoder
}

// Responder builds and encodes reply frames addressed to a sensor.
type Responder struct {
	encoder   Encoder
	table     openthings.ManufacturerTable
	reference func() uint16
}

func NewResponder(encoder Encoder, table openthings.ManufacturerTable) *Responder {
	return &Responder{
		encoder:   encoder,
		table:     table,
		reference: referenceFrom(rand.Uint32),
	}
}

// referenceFrom takes the top 16 bits of next, covering 0..0xFFFF.
func referenceFrom(next func() uint32) func() uint16 {
	return func() uint16 {
		// #nosec G404,G115 -- obfuscation reference, not a secret; shifted into 16 bits.
		return uint16(next() >> 16)
	}
}

// Build addresses a single-record reply to the sender of received.
func (r *Responder) Build(received openthings.Header, param openthings.Parameter, value openthings.Value) openthings.Message {
	return openthings.Message{
		Header: openthings.Header{
			ManufacturerID: received.ManufacturerID,
			ProductID:      received.ProductID,
			Pip:            0,
			SensorID:       received.SensorID,
		},
		Records: []openthings.Record{{Parameter: param, Value: value}},
	}
}

// Encode uses the manufacturer's PIP seed with a fresh reference when the
// table has an entry, and the codec default otherwise.
func (r *Responder) Encode(msg openthings.Message) ([]byte, error) {
	var (
		raw []byte
		err error
	)
	if seed, ok := r.table.PIP(msg.Header.ManufacturerID); ok {
		raw, err = r.encoder.EncodeWithSeed(msg, seed, r.reference())
	} else {
		raw, err = r.encoder.Encode(msg)
	}
	if err != nil {
		return nil, fmt.Errorf("encode reply to 0x%06X: %w", msg.Header.SensorID, err)
	}
	return raw, nil
}

// Send encodes a reply and transmits it on the session.
func (r *Responder) Send(s *Session, msg openthings.Message) error {
	raw, err := r.Encode(msg)
	if err != nil {
		return err
	}
	return s.Transmit(raw)
}

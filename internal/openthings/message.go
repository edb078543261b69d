// Package openthings implements the OpenThings frame format spoken by
// Energenie MIHO devices: header, encrypted record body and CRC.
package openthings

import (
	"fmt"
	"strings"
)

// Header is the cleartext part of a frame plus the sensor id.
type Header struct {
	ManufacturerID uint8
	ProductID      uint8
	// Pip is the per-frame encryption reference. Replies carry zero until encoded.
	Pip      uint16
	SensorID uint32
}

type Record struct {
	Parameter Parameter
	Value     Value
}

func (r Record) String() string {
	if r.Parameter.Units == "" || r.Value.Len() == 0 {
		return fmt.Sprintf("%s=%s", r.Parameter, r.Value)
	}
	return fmt.Sprintf("%s=%s %s", r.Parameter, r.Value, r.Parameter.Units)
}

// Message is one decoded frame. It is not mutated after decoding.
type Message struct {
	Header  Header
	Records []Record
}

func (m Message) String() string {
	parts := make([]string, 0, len(m.Records))
	for _, r := range m.Records {
		parts = append(parts, r.String())
	}
	return fmt.Sprintf(
		"mfr=0x%02X product=0x%02X sensor=0x%06X records=[%s]",
		m.Header.ManufacturerID,
		m.Header.ProductID,
		m.Header.SensorID,
		strings.Join(parts, ", "),
	)
}

// Equivalent reports whether two messages carry the same addressing and
// records. The encryption reference is ignored since it is randomized per frame.
func (m Message) Equivalent(other Message) bool {
	if m.Header.ManufacturerID != other.Header.ManufacturerID ||
		m.Header.ProductID != other.Header.ProductID ||
		m.Header.SensorID != other.Header.SensorID {
		return false
	}
	if len(m.Records) != len(other.Records) {
		return false
	}
	for i := range m.Records {
		if m.Records[i].Parameter.ID != other.Records[i].Parameter.ID {
			return false
		}
		if !m.Records[i].Value.Equal(other.Records[i].Value) {
			return false
		}
	}
	return true
}

package sensors

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/skobkin/rfmgo/internal/openthings"
)

// Sensor is a device heard on air at least once.
type Sensor struct {
	SensorID       uint32
	ProductID      uint8
	ManufacturerID uint8
	ProductType    string
	DiscoveredAt   time.Time
}

func NewSensor(header openthings.Header, at time.Time) Sensor {
	return Sensor{
		SensorID:       header.SensorID,
		ProductID:      header.ProductID,
		ManufacturerID: header.ManufacturerID,
		ProductType:    ProductType(header.ManufacturerID, header.ProductID),
		DiscoveredAt:   at,
	}
}

func (s Sensor) String() string {
	return fmt.Sprintf("SensorId: 0x%X ProductId: 0x%02X ProductType: %s Manufacturer: %s Discovered: %s",
		s.SensorID, s.ProductID, s.ProductType, ManufacturerName(s.ManufacturerID), s.DiscoveredAt.Format(time.RFC3339))
}

func ManufacturerName(id uint8) string {
	if id == openthings.ManufacturerEnergenie {
		return "Energenie"
	}
	return fmt.Sprintf("0x%02X", id)
}

// ProductType names a known product.
func ProductType(manufacturerID, productID uint8) string {
	if manufacturerID != openthings.ManufacturerEnergenie {
		return "Unknown"
	}
	switch productID {
	case 0x01:
		return "MIHO004 Home Monitor"
	case 0x02:
		return "MIHO005 Home Smart Plug"
	case 0x03:
		return "MIHO013 eTrv"
	case 0x05:
		return "MIHO006 Smart Power Monitor"
	case 0x0C:
		return "MIHO032 Smart Motion Sensor"
	case 0x0D:
		return "MIHO032 Smart Door/Window Open Sensor"
	default:
		return "Unknown"
	}
}

// ParseSensorID accepts decimal, 0x-prefixed hex and 0-prefixed octal ids.
func ParseSensorID(raw string) (uint32, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("sensor id is empty")
	}
	v, err := strconv.ParseUint(raw, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid sensor id %q: %w", raw, err)
	}
	if v > 0xFFFFFF {
		return 0, fmt.Errorf("sensor id %q exceeds 24 bits", raw)
	}
	return uint32(v), nil
}

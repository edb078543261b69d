package radio

import "slices"

// Configuration is the baseline applied once per session.
type Configuration struct {
	Frequency          uint32
	FrequencyDeviation uint16
	RxBandwidth        uint8
	Modulation         Modulation
	BitRate            uint32
	Sync               []byte
	PacketFormat       PacketFormat
	PayloadLength      uint8
	OutputPower        int8
	RssiThreshold      int8
}

// DefaultConfiguration matches Energenie MIHO devices on 434.3 MHz.
func DefaultConfiguration() Configuration {
	return Configuration{
		Frequency:          434300000,
		FrequencyDeviation: 0x01EC,
		RxBandwidth:        14,
		Modulation:         ModulationFSK,
		BitRate:            4800,
		Sync:               []byte{0x2D, 0xD4},
		PacketFormat: PacketFormat{
			Manchester:          true,
			TxStartFifoNotEmpty: true,
		},
		PayloadLength: 66,
		OutputPower:   0,
		RssiThreshold: -50,
	}
}

func (c Configuration) clone() Configuration {
	c.Sync = slices.Clone(c.Sync)
	return c
}

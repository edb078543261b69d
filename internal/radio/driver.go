package radio

import "fmt"

// Mode is the radio operating mode.
type Mode uint8

const (
	ModeSleep     Mode = 0
	ModeStandby   Mode = 1
	ModeReceiving Mode = 4
)

func (m Mode) String() string {
	switch m {
	case ModeSleep:
		return "sleep"
	case ModeStandby:
		return "standby"
	case ModeReceiving:
		return "rx"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

type Modulation uint8

const (
	ModulationFSK Modulation = 0
	ModulationOOK Modulation = 1
)

// DioMask selects which DIO pins raise the interrupt callback.
type DioMask uint8

const (
	DioNone DioMask = 0
	Dio0    DioMask = 1 << 0
	Dio1    DioMask = 1 << 1
	Dio2    DioMask = 1 << 2
	Dio3    DioMask = 1 << 3
	Dio4    DioMask = 1 << 4
	Dio5    DioMask = 1 << 5

	// DioPayloadReady is DIO0 in packet receive mode.
	DioPayloadReady = Dio0
)

// DioPin is one of the radio's DIO outputs, DIO0 to DIO5.
type DioPin uint8

// DioMapping selects the signal routed to a DIO pin. Its meaning depends on
// the operating mode.
type DioMapping uint8

const (
	DioMapping0 DioMapping = iota
	DioMapping1
	DioMapping2
	DioMapping3
)

// DioAssignment routes one pin for the duration of a run.
type DioAssignment struct {
	Pin     DioPin
	Mapping DioMapping
}

// IrqFlags combines the radio's two interrupt flag registers, flags1 in the
// high byte.
type IrqFlags uint16

const (
	IrqModeReady        IrqFlags = 0x8000
	IrqRxReady          IrqFlags = 0x4000
	IrqTxReady          IrqFlags = 0x2000
	IrqPllLock          IrqFlags = 0x1000
	IrqRssi             IrqFlags = 0x0800
	IrqTimeout          IrqFlags = 0x0400
	IrqSyncAddressMatch IrqFlags = 0x0100
	IrqFifoFull         IrqFlags = 0x0080
	IrqFifoNotEmpty     IrqFlags = 0x0040
	IrqFifoLevel        IrqFlags = 0x0020
	IrqFifoOverrun      IrqFlags = 0x0010
	IrqPacketSent       IrqFlags = 0x0008
	IrqPayloadReady     IrqFlags = 0x0004
	IrqCrcOk            IrqFlags = 0x0002
)

func (f IrqFlags) Has(flag IrqFlags) bool {
	return f&flag == flag
}

// PacketFormat holds the packet engine options applied with the baseline.
type PacketFormat struct {
	Manchester          bool
	CrcOn               bool
	AddressFiltering    bool
	TxStartFifoNotEmpty bool
}

// Driver is the register-level radio the engine drives. Calls are made from
// the run's worker goroutine only; the callback passed to OnInterrupt may be
// invoked from any goroutine.
type Driver interface {
	Open() error
	Reset() error
	SetFrequency(hz uint32) error
	SetFrequencyDeviation(dev uint16) error
	SetRxBandwidth(bw uint8) error
	SetModulation(m Modulation) error
	SetBitRate(bps uint32) error
	SetSync(sync []byte) error
	SetPacketFormat(f PacketFormat) error
	SetPayloadLength(n uint8) error
	SetOutputPower(dbm int8) error
	SetRssiThreshold(dbm int8) error
	SetMode(m Mode) error
	SetInterruptMask(mask DioMask) error
	SetDioMapping(pin DioPin, mapping DioMapping) error
	IrqFlags() (IrqFlags, error)
	Rssi() (float64, error)
	ReadPayload() ([]byte, error)
	Transmit(payload []byte) error
	OnInterrupt(fn func())
	Close() error
}

// HardwareError wraps a failed driver call.
type HardwareError struct {
	Op  string
	Err error
}

func (e *HardwareError) Error() string {
	return fmt.Sprintf("radio %s: %v", e.Op, e.Err)
}

func (e *HardwareError) Unwrap() error {
	return e.Err
}

func hardwareErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &HardwareError{Op: op, Err: err}
}

package radio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Session holds exclusive use of a driver for one run.
type Session struct {
	logger     *slog.Logger
	driver     Driver
	mux        *SignalMux
	cfg        Configuration
	mode       Mode
	onTransmit func([]byte)

	releaseOnce sync.Once
	releaseErr  error
}

// AcquireSession opens and resets the radio, applies cfg once and attaches the
// mux as interrupt callback. On failure everything already touched is released.
func AcquireSession(logger *slog.Logger, driver Driver, cfg Configuration, mux *SignalMux) (*Session, error) {
	s := &Session{
		logger: logger,
		driver: driver,
		mux:    mux,
		cfg:    cfg.clone(),
		mode:   ModeSleep,
	}

	if err := driver.Open(); err != nil {
		return nil, hardwareErr("open", err)
	}
	if err := s.applyBaseline(); err != nil {
		if relErr := s.Release(); relErr != nil {
			logger.Warn("release after failed acquire", "error", relErr)
		}
		return nil, err
	}
	driver.OnInterrupt(mux.RaiseIrq)
	s.mode = ModeStandby

	logger.Debug("session acquired", "frequency", s.cfg.Frequency, "bit_rate", s.cfg.BitRate, "payload_length", s.cfg.PayloadLength)
	return s, nil
}

func (s *Session) applyBaseline() error {
	cfg := s.cfg
	steps := []struct {
		op string
		fn func() error
	}{
		{"reset", s.driver.Reset},
		{"set modulation", func() error { return s.driver.SetModulation(cfg.Modulation) }},
		{"set frequency deviation", func() error { return s.driver.SetFrequencyDeviation(cfg.FrequencyDeviation) }},
		{"set frequency", func() error { return s.driver.SetFrequency(cfg.Frequency) }},
		{"set rx bandwidth", func() error { return s.driver.SetRxBandwidth(cfg.RxBandwidth) }},
		{"set bit rate", func() error { return s.driver.SetBitRate(cfg.BitRate) }},
		{"set sync", func() error { return s.driver.SetSync(cfg.Sync) }},
		{"set packet format", func() error { return s.driver.SetPacketFormat(cfg.PacketFormat) }},
		{"set payload length", func() error { return s.driver.SetPayloadLength(cfg.PayloadLength) }},
		{"set output power", func() error { return s.driver.SetOutputPower(cfg.OutputPower) }},
		{"set rssi threshold", func() error { return s.driver.SetRssiThreshold(cfg.RssiThreshold) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return hardwareErr(step.op, err)
		}
	}
	return nil
}

func (s *Session) Mode() Mode {
	return s.mode
}

func (s *Session) SetMode(m Mode) error {
	if err := s.driver.SetMode(m); err != nil {
		return hardwareErr("set mode "+m.String(), err)
	}
	s.mode = m
	return nil
}

func (s *Session) SetOutputPower(dbm int8) error {
	return hardwareErr("set output power", s.driver.SetOutputPower(dbm))
}

func (s *Session) EnableInterrupts(mask DioMask) error {
	return hardwareErr("set interrupt mask", s.driver.SetInterruptMask(mask))
}

func (s *Session) SetDioMapping(pin DioPin, mapping DioMapping) error {
	return hardwareErr(fmt.Sprintf("set dio%d mapping", pin), s.driver.SetDioMapping(pin, mapping))
}

// Rssi reads the last sampled signal strength in dBm.
func (s *Session) Rssi() (float64, error) {
	v, err := s.driver.Rssi()
	if err != nil {
		return 0, hardwareErr("read rssi", err)
	}
	return v, nil
}

func (s *Session) IrqFlags() (IrqFlags, error) {
	flags, err := s.driver.IrqFlags()
	if err != nil {
		return 0, hardwareErr("read irq flags", err)
	}
	return flags, nil
}

func (s *Session) ReadPayload() ([]byte, error) {
	payload, err := s.driver.ReadPayload()
	if err != nil {
		return nil, hardwareErr("read payload", err)
	}
	return payload, nil
}

// Transmit sends one frame. The radio is put in standby first so a frame
// arriving meanwhile cannot clobber the FIFO.
func (s *Session) Transmit(payload []byte) error {
	if s.mode != ModeStandby {
		if err := s.SetMode(ModeStandby); err != nil {
			return err
		}
	}
	if err := s.driver.Transmit(payload); err != nil {
		return hardwareErr("transmit", err)
	}
	if s.onTransmit != nil {
		s.onTransmit(payload)
	}
	return nil
}

// Release masks interrupts, sleeps the radio, detaches the callback and closes
// the driver. Every step runs even if an earlier one fails. Calls after the
// first return the first outcome.
func (s *Session) Release() error {
	s.releaseOnce.Do(func() {
		var errs []error
		if err := s.driver.SetInterruptMask(DioNone); err != nil {
			errs = append(errs, hardwareErr("clear interrupt mask", err))
		}
		if err := s.driver.SetMode(ModeSleep); err != nil {
			errs = append(errs, hardwareErr("set mode sleep", err))
		} else {
			s.mode = ModeSleep
		}
		s.driver.OnInterrupt(nil)
		if err := s.driver.Close(); err != nil {
			errs = append(errs, hardwareErr("close", err))
		}
		s.releaseErr = errors.Join(errs...)
		s.logger.Debug("session released", "error", s.releaseErr)
	})
	return s.releaseErr
}

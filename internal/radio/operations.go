package radio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/skobkin/rfmgo/internal/ota"
	"github.com/skobkin/rfmgo/internal/openthings"
)

// DefaultSettleDelay is the pause between disabling a sensor's periodic
// reports and starting a firmware transfer.
const DefaultSettleDelay = time.Second

// Operation reacts to each decoded message of a run.
type Operation interface {
	Name() string
	HandleMessage(s *Session, msg openthings.Message) (Result, error)
}

// Prechecker is implemented by operations that must validate their inputs
// before the radio is touched.
type Prechecker interface {
	Precheck() error
}

// InterruptSource is implemented by operations that react to radio events
// other than payload ready. The loop applies the mappings, adds the mask to
// the payload ready interrupt and hands every interrupt to HandleInterrupt
// before looking for a payload.
type InterruptSource interface {
	DioMappings() []DioAssignment
	InterruptMask() DioMask
	HandleInterrupt(s *Session, flags IrqFlags) (Result, error)
}

// Starter is implemented by operations that act as soon as the radio is
// receiving instead of waiting for a trigger frame.
type Starter interface {
	Begin(s *Session) (Result, error)
}

// FirmwareUpdater transfers a firmware image over a link.
type FirmwareUpdater interface {
	Update(link ota.Link, outputPower int8, image io.Reader) (uint32, error)
}

type Listen struct {
	logger *slog.Logger
}

func NewListen(logger *slog.Logger) *Listen {
	return &Listen{logger: logger}
}

func (l *Listen) Name() string { return "listen" }

func (l *Listen) HandleMessage(_ *Session, msg openthings.Message) (Result, error) {
	l.logger.Info("message decoded", "sensor_id", fmt.Sprintf("0x%06X", msg.Header.SensorID), "message", msg.String())
	return ResultContinue, nil
}

// Identify pulses a sensor's identify indicator each time it reports.
type Identify struct {
	logger    *slog.Logger
	sensorID  uint32
	responder *Responder
	// StopOnMatch ends the run after the first identify instead of repeating.
	StopOnMatch bool
}

func NewIdentify(logger *slog.Logger, sensorID uint32, responder *Responder) *Identify {
	return &Identify{logger: logger, sensorID: sensorID, responder: responder}
}

func (o *Identify) Name() string { return "identify" }

func (o *Identify) HandleMessage(s *Session, msg openthings.Message) (Result, error) {
	if msg.Header.SensorID != o.sensorID {
		return ResultContinue, nil
	}
	o.logger.Info("sending identify", "sensor_id", fmt.Sprintf("0x%06X", o.sensorID))
	reply := o.responder.Build(msg.Header, openthings.IdentifyCommand(), openthings.Empty())
	if err := o.responder.Send(s, reply); err != nil {
		return ResultFailed, err
	}
	if o.StopOnMatch {
		return ResultComplete, nil
	}
	return ResultContinue, nil
}

type IntervalUpdate struct {
	logger      *slog.Logger
	sensorID    uint32
	outputPower int8
	interval    uint32
	responder   *Responder
}

func NewIntervalUpdate(logger *slog.Logger, sensorID uint32, outputPower int8, interval uint32, responder *Responder) *IntervalUpdate {
	return &IntervalUpdate{
		logger:      logger,
		sensorID:    sensorID,
		outputPower: outputPower,
		interval:    interval,
		responder:   responder,
	}
}

func (o *IntervalUpdate) Name() string { return "interval" }

func (o *IntervalUpdate) HandleMessage(s *Session, msg openthings.Message) (Result, error) {
	if msg.Header.SensorID != o.sensorID {
		return ResultContinue, nil
	}
	if err := s.SetOutputPower(o.outputPower); err != nil {
		return ResultFailed, err
	}
	o.logger.Info("sending report period", "sensor_id", fmt.Sprintf("0x%06X", o.sensorID), "interval", o.interval)
	reply := o.responder.Build(msg.Header, openthings.ReportPeriodCommand(), openthings.Uint(4, uint64(o.interval)))
	if err := o.responder.Send(s, reply); err != nil {
		return ResultFailed, err
	}
	return ResultComplete, nil
}

// OtaTrigger quiets a sensor and then flashes it. The transfer blocks the
// worker; stop requests are honoured once it returns.
type OtaTrigger struct {
	logger      *slog.Logger
	sensorID    uint32
	outputPower int8
	hexFile     string
	responder   *Responder
	updater     FirmwareUpdater
	settle      time.Duration
	sleep       func(time.Duration)
}

func NewOtaTrigger(logger *slog.Logger, sensorID uint32, outputPower int8, hexFile string, responder *Responder, updater FirmwareUpdater) *OtaTrigger {
	return &OtaTrigger{
		logger:      logger,
		sensorID:    sensorID,
		outputPower: outputPower,
		hexFile:     hexFile,
		responder:   responder,
		updater:     updater,
		settle:      DefaultSettleDelay,
		sleep:       time.Sleep,
	}
}

// WithSettleDelay overrides the pause before the transfer starts.
func (o *OtaTrigger) WithSettleDelay(d time.Duration) *OtaTrigger {
	o.settle = d
	return o
}

func (o *OtaTrigger) Name() string { return "ota" }

func (o *OtaTrigger) Precheck() error {
	return checkHexFile(o.hexFile)
}

func (o *OtaTrigger) HandleMessage(s *Session, msg openthings.Message) (Result, error) {
	if msg.Header.SensorID != o.sensorID {
		return ResultContinue, nil
	}
	if err := s.SetOutputPower(o.outputPower); err != nil {
		return ResultFailed, err
	}

	o.logger.Info("disabling periodic reports", "sensor_id", fmt.Sprintf("0x%06X", o.sensorID))
	reply := o.responder.Build(msg.Header, openthings.ReportPeriodCommand(), openthings.Empty())
	if err := o.responder.Send(s, reply); err != nil {
		return ResultFailed, err
	}
	o.sleep(o.settle)

	return transferImage(o.logger, s, o.updater, o.outputPower, o.hexFile)
}

func checkHexFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("hex file %q: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("hex file %q is a directory", path)
	}
	return nil
}

// transferImage flashes hexFile over the session. Only hardware errors are
// returned; a rejected transfer is Failed with the reason logged.
func transferImage(logger *slog.Logger, s *Session, updater FirmwareUpdater, outputPower int8, hexFile string) (Result, error) {
	image, err := os.Open(hexFile)
	if err != nil {
		logger.Error("open hex file", "file", hexFile, "error", err)
		return ResultFailed, nil
	}
	defer func() { _ = image.Close() }()

	logger.Info("starting ota transfer", "file", hexFile)
	crc, err := updater.Update(s.otaLink(), outputPower, image)
	if err != nil {
		var hwErr *HardwareError
		if errors.As(err, &hwErr) {
			return ResultFailed, err
		}
		logger.Warn("ota flash update failed", "error", err)
		return ResultFailed, nil
	}
	logger.Info("ota flash update completed", "crc", fmt.Sprintf("0x%08X", crc))
	return ResultComplete, nil
}

// EnterBootloader tells a sensor to reboot into its OTA bootloader the next
// time it reports.
type EnterBootloader struct {
	logger    *slog.Logger
	sensorID  uint32
	responder *Responder
}

func NewEnterBootloader(logger *slog.Logger, sensorID uint32, responder *Responder) *EnterBootloader {
	return &EnterBootloader{logger: logger, sensorID: sensorID, responder: responder}
}

func (o *EnterBootloader) Name() string { return "bootloader" }

func (o *EnterBootloader) HandleMessage(s *Session, msg openthings.Message) (Result, error) {
	if msg.Header.SensorID != o.sensorID {
		return ResultContinue, nil
	}
	o.logger.Info("sending execute bootloader", "sensor_id", fmt.Sprintf("0x%06X", o.sensorID))
	reply := o.responder.Build(msg.Header, openthings.BootloaderCommand(), openthings.Empty())
	if err := o.responder.Send(s, reply); err != nil {
		return ResultFailed, err
	}
	return ResultComplete, nil
}

// Flash talks to a device that already sits in its bootloader, so no trigger
// frame is awaited.
type Flash struct {
	logger      *slog.Logger
	outputPower int8
	hexFile     string
	updater     FirmwareUpdater
}

func NewFlash(logger *slog.Logger, outputPower int8, hexFile string, updater FirmwareUpdater) *Flash {
	return &Flash{logger: logger, outputPower: outputPower, hexFile: hexFile, updater: updater}
}

func (o *Flash) Name() string { return "flash" }

func (o *Flash) Precheck() error {
	return checkHexFile(o.hexFile)
}

func (o *Flash) Begin(s *Session) (Result, error) {
	if err := s.SetOutputPower(o.outputPower); err != nil {
		return ResultFailed, err
	}
	return transferImage(o.logger, s, o.updater, o.outputPower, o.hexFile)
}

func (o *Flash) HandleMessage(_ *Session, _ openthings.Message) (Result, error) {
	return ResultContinue, nil
}

// Rssi logs the signal strength each time the receiver crosses the RSSI
// threshold. DIO0 is remapped to the RSSI event for the run.
type Rssi struct {
	logger *slog.Logger
}

func NewRssi(logger *slog.Logger) *Rssi {
	return &Rssi{logger: logger}
}

func (o *Rssi) Name() string { return "rssi" }

func (o *Rssi) DioMappings() []DioAssignment {
	return []DioAssignment{{Pin: 0, Mapping: DioMapping3}}
}

func (o *Rssi) InterruptMask() DioMask { return Dio0 }

func (o *Rssi) HandleInterrupt(s *Session, flags IrqFlags) (Result, error) {
	if !flags.Has(IrqRssi) {
		return ResultContinue, nil
	}
	dbm, err := s.Rssi()
	if err != nil {
		return ResultFailed, err
	}
	o.logger.Info("rssi", "dbm", dbm)
	// standby restarts the receiver so the next crossing raises a new event
	if err := s.SetMode(ModeStandby); err != nil {
		return ResultFailed, err
	}
	return ResultContinue, nil
}

func (o *Rssi) HandleMessage(_ *Session, msg openthings.Message) (Result, error) {
	o.logger.Debug("message decoded", "message", msg.String())
	return ResultContinue, nil
}

package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/skobkin/rfmgo/internal/bus"
	"github.com/skobkin/rfmgo/internal/config"
	"github.com/skobkin/rfmgo/internal/logging"
	"github.com/skobkin/rfmgo/internal/openthings"
	"github.com/skobkin/rfmgo/internal/ota"
	"github.com/skobkin/rfmgo/internal/persistence"
	"github.com/skobkin/rfmgo/internal/radio"
	"github.com/skobkin/rfmgo/internal/rfmusb"
	"github.com/skobkin/rfmgo/internal/sensors"
)

const flushTimeout = 3 * time.Second

// Runtime wires the long-lived pieces shared by every command.
type Runtime struct {
	Ctx    context.Context
	cancel context.CancelFunc

	// writes outlive Ctx so Close can drain them after an interrupt
	writerCancel context.CancelFunc

	Paths  Paths
	Config config.AppConfig

	LogManager  *logging.Manager
	Bus         *bus.PubSubBus
	DB          *sql.DB
	SensorRepo  *persistence.SensorRepo
	WriterQueue *persistence.WriterQueue
}

// Options adjust runtime setup from the command line.
type Options struct {
	ConfigFile string
	// Override is applied to the loaded config before validation.
	Override func(*config.AppConfig) error
}

func Initialize(parent context.Context, opts Options) (*Runtime, error) {
	paths, err := ResolvePaths(opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return nil, err
	}
	if opts.Override != nil {
		if err := opts.Override(&cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(parent)
	rt := &Runtime{
		Ctx:    ctx,
		cancel: cancel,
		Paths:  paths,
		Config: cfg,
	}

	logMgr := logging.NewManager(nil)
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		_ = logMgr.Close()
		cancel()
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	rt.LogManager = logMgr
	slog.Debug("starting rfmgo runtime", "version", BuildVersion(), "build_date", BuildDateYMD(), "config", paths.ConfigFile)

	db, err := persistence.Open(ctx, paths.DBFile)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.DB = db
	rt.SensorRepo = persistence.NewSensorRepo(db)

	rt.Bus = bus.New(logMgr.Logger("bus"))

	writerQueue := persistence.NewWriterQueue(logMgr.Logger("persistence"), WriterCapacity)
	writerCtx, writerCancel := context.WithCancel(context.WithoutCancel(parent))
	writerQueue.Start(writerCtx)
	rt.WriterQueue = writerQueue
	rt.writerCancel = writerCancel

	return rt, nil
}

// StartDiscovery records sensors heard by the radio in the sensor store.
func (r *Runtime) StartDiscovery() {
	sensors.StartDiscovery(r.Ctx, r.Bus, r.WriterQueue, r.SensorRepo, r.LogManager.Logger("discovery"))
}

// NewRadio builds the operation service for the configured RfmUsb dongle and
// logs its firmware version.
func (r *Runtime) NewRadio() (*radio.Service, error) {
	if err := r.Config.RequireSerialPort(); err != nil {
		return nil, err
	}
	radioCfg, err := RadioConfiguration(r.Config.Radio)
	if err != nil {
		return nil, err
	}

	logger := r.LogManager.Logger("rfmusb")
	device := rfmusb.NewDevice(logger, r.Config.Serial.Port, r.Config.Serial.Baud, time.Duration(r.Config.Serial.CommandTimeoutMs)*time.Millisecond)
	if err := device.Open(); err != nil {
		return nil, fmt.Errorf("open rfmusb: %w", err)
	}
	version, verErr := device.Version()
	if err := device.Close(); err != nil {
		logger.Warn("close rfmusb after version probe", "error", err)
	}
	if verErr != nil {
		return nil, fmt.Errorf("query rfmusb firmware version: %w", verErr)
	}
	logger.Info("rfmusb connected", "port", device.PortName(), "firmware", version)

	opts := radio.Options{
		WaitTimeout:         time.Duration(r.Config.Radio.WaitTimeoutMs) * time.Millisecond,
		IdentifyStopOnMatch: r.Config.Radio.IdentifyStopOnMatch,
		OtaSettleDelay:      time.Duration(r.Config.Ota.SettleDelayMs) * time.Millisecond,
	}
	return radio.NewService(r.LogManager.Logger("radio"), device, openthings.NewCodec(), ManufacturerTable(r.Config.Manufacturers), radioCfg, r.Bus, opts), nil
}

func (r *Runtime) NewUpdater() *ota.Updater {
	u := ota.NewUpdater(r.LogManager.Logger("ota"))
	u.RequestTimeout = time.Duration(r.Config.Ota.RequestTimeoutMs) * time.Millisecond
	u.Retries = r.Config.Ota.Retries
	return u
}

// Close drains pending writes and releases everything Initialize opened.
func (r *Runtime) Close() error {
	if r.WriterQueue != nil && !r.WriterQueue.Flush(flushTimeout) {
		slog.Warn("pending database writes dropped on shutdown")
	}
	if r.writerCancel != nil {
		r.writerCancel()
	}
	if r.cancel != nil {
		r.cancel()
	}
	if r.Bus != nil {
		r.Bus.Close()
	}

	var errs []error
	if r.DB != nil {
		if err := r.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close db: %w", err))
		}
	}
	if r.LogManager != nil {
		if err := r.LogManager.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log: %w", err))
		}
	}
	return errors.Join(errs...)
}

// RadioConfiguration converts the persisted radio section to a session
// baseline.
func RadioConfiguration(rc config.RadioConfig) (radio.Configuration, error) {
	sync, err := rc.SyncBytes()
	if err != nil {
		return radio.Configuration{}, err
	}
	if err := config.ValidateOutputPower(rc.OutputPower); err != nil {
		return radio.Configuration{}, err
	}

	out := radio.DefaultConfiguration()
	out.Frequency = rc.Frequency
	out.FrequencyDeviation = rc.FrequencyDeviation
	out.RxBandwidth = rc.RxBandwidth
	out.BitRate = rc.BitRate
	out.Sync = sync
	out.PayloadLength = rc.PayloadLength
	out.OutputPower = int8(rc.OutputPower)     // #nosec G115 -- validated range.
	out.RssiThreshold = int8(rc.RssiThreshold) // #nosec G115 -- validated by config.Validate.
	return out, nil
}

func ManufacturerTable(mc config.ManufacturersConfig) openthings.ManufacturerTable {
	pids := make([]openthings.PidEntry, 0, len(mc.PidMap))
	for _, e := range mc.PidMap {
		pids = append(pids, openthings.PidEntry{ManufacturerID: e.ManufacturerID, Pid: e.Pid})
	}
	pips := make([]openthings.PipEntry, 0, len(mc.PipMap))
	for _, e := range mc.PipMap {
		pips = append(pips, openthings.PipEntry{ManufacturerID: e.ManufacturerID, Pip: e.Pip})
	}
	return openthings.NewManufacturerTable(pids, pips)
}

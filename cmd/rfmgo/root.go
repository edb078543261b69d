package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/skobkin/rfmgo/internal/app"
	"github.com/skobkin/rfmgo/internal/config"
	"github.com/skobkin/rfmgo/internal/radio"
)

// errOperationFailed is returned when a run ends Failed; the run has already
// logged why.
var errOperationFailed = errors.New("operation failed")

type globalFlags struct {
	configFile    string
	serialPort    string
	baudRate      int
	frequency     uint32
	outputPower   int
	rssiThreshold int
	logLevel      string
}

// radioService is the part of radio.Service the commands drive.
type radioService interface {
	StartListen() (*radio.Run, error)
	StartIdentify(sensorID uint32) (*radio.Run, error)
	StartIntervalUpdate(sensorID uint32, outputPower int8, interval uint32) (*radio.Run, error)
	StartOtaUpdate(sensorID uint32, outputPower int8, hexFile string, updater radio.FirmwareUpdater) (*radio.Run, error)
	StartBootloader(sensorID uint32) (*radio.Run, error)
	StartFlash(outputPower int8, hexFile string, updater radio.FirmwareUpdater) (*radio.Run, error)
	StartRssi() (*radio.Run, error)
	Stop() (radio.Result, error)
	Done() <-chan struct{}
}

type cli struct {
	stdout io.Writer
	flags  globalFlags

	initialize func(ctx context.Context, opts app.Options) (*app.Runtime, error)
	newRadio   func(rt *app.Runtime) (radioService, error)
}

func newCLI(stdout io.Writer) *cli {
	return &cli{
		stdout:     stdout,
		initialize: app.Initialize,
		newRadio: func(rt *app.Runtime) (radioService, error) {
			return rt.NewRadio()
		},
	}
}

func (c *cli) root() *cobra.Command {
	cmd := &cobra.Command{
		Use:           app.Name,
		Short:         "Operate OpenThings sensors through an RfmUsb radio",
		Version:       app.BuildVersionWithDate(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(c.stdout)

	f := cmd.PersistentFlags()
	f.StringVar(&c.flags.configFile, "config", "", "config file (default is the user config dir)")
	f.StringVarP(&c.flags.serialPort, "serial-port", "s", "", "serial port the RfmUsb is connected to")
	f.IntVarP(&c.flags.baudRate, "baud-rate", "b", config.DefaultSerialBaud, "serial port baud rate")
	f.Uint32VarP(&c.flags.frequency, "frequency", "f", config.DefaultFrequency, "radio center frequency in Hz")
	f.IntVarP(&c.flags.outputPower, "output-power", "o", 0, "transmit output power in dBm (-2..20)")
	f.IntVarP(&c.flags.rssiThreshold, "rssi-threshold", "r", config.DefaultRssiThreshold, "receive RSSI threshold in dBm (-115..0)")
	f.StringVar(&c.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")

	cmd.AddCommand(
		c.listenCommand(),
		c.identifyCommand(),
		c.intervalCommand(),
		c.otaCommand(),
		c.rssiCommand(),
		c.listCommand(),
	)
	return cmd
}

// override applies only the flags the user set, so config file values win
// over flag defaults.
func (c *cli) override(cmd *cobra.Command) func(*config.AppConfig) error {
	return func(cfg *config.AppConfig) error {
		flags := cmd.Flags()
		if flags.Changed("serial-port") {
			cfg.Serial.Port = c.flags.serialPort
		}
		if flags.Changed("baud-rate") {
			cfg.Serial.Baud = c.flags.baudRate
		}
		if flags.Changed("frequency") {
			cfg.Radio.Frequency = c.flags.frequency
		}
		if flags.Changed("output-power") {
			cfg.Radio.OutputPower = c.flags.outputPower
		}
		if flags.Changed("rssi-threshold") {
			cfg.Radio.RssiThreshold = c.flags.rssiThreshold
		}
		if flags.Changed("log-level") {
			cfg.Logging.Level = c.flags.logLevel
		}
		return nil
	}
}

func (c *cli) runtime(cmd *cobra.Command) (*app.Runtime, error) {
	rt, err := c.initialize(cmd.Context(), app.Options{
		ConfigFile: c.flags.configFile,
		Override:   c.override(cmd),
	})
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return rt, nil
}

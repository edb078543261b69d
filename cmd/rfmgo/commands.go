package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/skobkin/rfmgo/internal/app"
	"github.com/skobkin/rfmgo/internal/config"
	"github.com/skobkin/rfmgo/internal/portlock"
	"github.com/skobkin/rfmgo/internal/radio"
	"github.com/skobkin/rfmgo/internal/sensors"
)

func (c *cli) listenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Receive and log OpenThings messages until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runOperation(cmd, func(rt *app.Runtime, svc radioService) (*radio.Run, error) {
				rt.StartDiscovery()
				return svc.StartListen()
			})
		},
	}
}

func (c *cli) identifyCommand() *cobra.Command {
	var sensorID string
	cmd := &cobra.Command{
		Use:   "identify",
		Short: "Ask a sensor to flash its indicator whenever it reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := parseSensorID(sensorID)
			if err != nil {
				return err
			}
			return c.runOperation(cmd, func(_ *app.Runtime, svc radioService) (*radio.Run, error) {
				return svc.StartIdentify(id)
			})
		},
	}
	cmd.Flags().StringVar(&sensorID, "sensor-id", "", "target sensor id (decimal or 0x hex)")
	_ = cmd.MarkFlagRequired("sensor-id")
	return cmd
}

func (c *cli) intervalCommand() *cobra.Command {
	var (
		sensorID string
		interval uint32
	)
	cmd := &cobra.Command{
		Use:   "interval",
		Short: "Set a sensor's reporting interval in seconds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := parseSensorID(sensorID)
			if err != nil {
				return err
			}
			return c.runOperation(cmd, func(rt *app.Runtime, svc radioService) (*radio.Run, error) {
				return svc.StartIntervalUpdate(id, outputPower(rt.Config), interval)
			})
		},
	}
	cmd.Flags().StringVar(&sensorID, "sensor-id", "", "target sensor id (decimal or 0x hex)")
	cmd.Flags().Uint32Var(&interval, "interval", 0, "report interval in seconds")
	_ = cmd.MarkFlagRequired("sensor-id")
	_ = cmd.MarkFlagRequired("interval")
	return cmd
}

func (c *cli) otaCommand() *cobra.Command {
	var sensorID, hexFile string
	cmd := &cobra.Command{
		Use:   "ota",
		Short: "Flash new firmware to a sensor when it next reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := parseSensorID(sensorID)
			if err != nil {
				return err
			}
			return c.runOperation(cmd, func(rt *app.Runtime, svc radioService) (*radio.Run, error) {
				return svc.StartOtaUpdate(id, outputPower(rt.Config), hexFile, rt.NewUpdater())
			})
		},
	}
	cmd.Flags().StringVar(&sensorID, "sensor-id", "", "target sensor id (decimal or 0x hex)")
	cmd.Flags().StringVar(&hexFile, "hex-file", "", "firmware image in Intel HEX format")
	_ = cmd.MarkFlagRequired("sensor-id")
	_ = cmd.MarkFlagRequired("hex-file")
	cmd.AddCommand(c.otaBootloaderCommand(), c.otaFlashCommand())
	return cmd
}

func (c *cli) otaBootloaderCommand() *cobra.Command {
	var sensorID string
	cmd := &cobra.Command{
		Use:   "bootloader",
		Short: "Make a sensor reboot into its OTA bootloader when it next reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := parseSensorID(sensorID)
			if err != nil {
				return err
			}
			return c.runOperation(cmd, func(_ *app.Runtime, svc radioService) (*radio.Run, error) {
				return svc.StartBootloader(id)
			})
		},
	}
	cmd.Flags().StringVar(&sensorID, "sensor-id", "", "target sensor id (decimal or 0x hex)")
	_ = cmd.MarkFlagRequired("sensor-id")
	return cmd
}

func (c *cli) otaFlashCommand() *cobra.Command {
	var hexFile string
	cmd := &cobra.Command{
		Use:   "flash",
		Short: "Flash a device that is already in its bootloader",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runOperation(cmd, func(rt *app.Runtime, svc radioService) (*radio.Run, error) {
				return svc.StartFlash(outputPower(rt.Config), hexFile, rt.NewUpdater())
			})
		},
	}
	cmd.Flags().StringVar(&hexFile, "hex-file", "", "firmware image in Intel HEX format")
	_ = cmd.MarkFlagRequired("hex-file")
	return cmd
}

func (c *cli) rssiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rssi",
		Short: "Log the signal strength of transmissions until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runOperation(cmd, func(_ *app.Runtime, svc radioService) (*radio.Run, error) {
				return svc.StartRssi()
			})
		},
	}
}

func (c *cli) listCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sensors discovered while listening",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			defer closeRuntime(rt)

			list, err := rt.SensorRepo.ReadSensors(rt.Ctx)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(c.stdout, "No sensors discovered")
				return nil
			}
			for _, s := range list {
				fmt.Fprintln(c.stdout, s.String())
			}
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget all discovered sensors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := c.runtime(cmd)
			if err != nil {
				return err
			}
			defer closeRuntime(rt)

			if err := rt.SensorRepo.ClearSensors(rt.Ctx); err != nil {
				return err
			}
			fmt.Fprintln(c.stdout, "Sensor list cleared")
			return nil
		},
	})
	return cmd
}

// runOperation starts one radio run and waits for it to end or for the
// command context to be cancelled.
func (c *cli) runOperation(cmd *cobra.Command, start func(*app.Runtime, radioService) (*radio.Run, error)) error {
	rt, err := c.runtime(cmd)
	if err != nil {
		return err
	}
	defer closeRuntime(rt)

	logger := rt.LogManager.Logger("cli")
	if err := rt.Config.RequireSerialPort(); err != nil {
		return err
	}
	lock, err := portlock.Acquire(rt.Paths.RootDir, rt.Config.Serial.Port)
	switch {
	case errors.Is(err, portlock.ErrUnsupported):
		logger.Warn("serial port lock unavailable", "error", err)
	case err != nil:
		return fmt.Errorf("%s: %w", rt.Config.Serial.Port, err)
	default:
		defer func() { _ = lock.Release() }()
	}

	svc, err := c.newRadio(rt)
	if err != nil {
		return err
	}
	run, err := start(rt, svc)
	if err != nil {
		return err
	}
	logger.Info("operation started", "operation", run.Operation, "run_id", run.ID)

	select {
	case <-svc.Done():
	case <-rt.Ctx.Done():
		logger.Info("stopping operation", "operation", run.Operation)
	}

	result, runErr := svc.Stop()
	if errors.Is(runErr, radio.ErrNoActiveRun) {
		result, runErr = run.Result()
	}
	logger.Info("operation finished", "operation", run.Operation, "result", result.String())
	if runErr != nil {
		return runErr
	}
	if result == radio.ResultFailed {
		return errOperationFailed
	}
	return nil
}

func parseSensorID(raw string) (uint32, error) {
	id, err := sensors.ParseSensorID(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}
	return id, nil
}

// outputPower narrows the validated config value for the radio.
func outputPower(cfg config.AppConfig) int8 {
	// #nosec G115 -- Validate bounds OutputPower to -2..20.
	return int8(cfg.Radio.OutputPower)
}

func closeRuntime(rt *app.Runtime) {
	if err := rt.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "shutdown:", err)
	}
}

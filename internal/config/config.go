package config

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultSerialBaud       = 230400
	DefaultCommandTimeoutMs = 5000

	DefaultFrequency          = 434300000
	DefaultFrequencyDeviation = 0x01EC
	DefaultRxBandwidth        = 14
	DefaultBitRate            = 4800
	DefaultSync               = "2DD4"
	DefaultPayloadLength      = 66
	DefaultRssiThreshold      = -50
	DefaultWaitTimeoutMs      = 5000

	DefaultOtaRequestTimeoutMs = 500
	DefaultOtaRetries          = 5
	DefaultOtaSettleDelayMs    = 1000

	MinOutputPower   = -2
	MaxOutputPower   = 20
	MinRssiThreshold = -115
	MaxRssiThreshold = 0

	EnergenieManufacturerID = 0x04
	EnergeniePid            = 242
)

// ErrInvalid marks configuration that cannot be used to start a run.
var ErrInvalid = errors.New("invalid configuration")

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level      string `json:"level"`
	LogToFile  bool   `json:"log_to_file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// SerialConfig locates the RfmUsb dongle.
type SerialConfig struct {
	Port             string `json:"port"`
	Baud             int    `json:"baud"`
	CommandTimeoutMs int    `json:"command_timeout_ms"`
}

// RadioConfig is the baseline applied to the radio at the start of each run.
type RadioConfig struct {
	Frequency           uint32 `json:"frequency"`
	FrequencyDeviation  uint16 `json:"frequency_deviation"`
	RxBandwidth         uint8  `json:"rx_bandwidth"`
	BitRate             uint32 `json:"bit_rate"`
	Sync                string `json:"sync"`
	PayloadLength       uint8  `json:"payload_length"`
	OutputPower         int    `json:"output_power"`
	RssiThreshold       int    `json:"rssi_threshold"`
	WaitTimeoutMs       int    `json:"wait_timeout_ms"`
	IdentifyStopOnMatch bool   `json:"identify_stop_on_match"`
}

type PidEntry struct {
	ManufacturerID uint8 `json:"manufacturer_id"`
	Pid            uint8 `json:"pid"`
}

type PipEntry struct {
	ManufacturerID uint8 `json:"manufacturer_id"`
	Pip            uint8 `json:"pip"`
}

// ManufacturersConfig holds the OpenThings PID and PIP maps.
type ManufacturersConfig struct {
	PidMap []PidEntry `json:"pid_map"`
	PipMap []PipEntry `json:"pip_map"`
}

type OtaConfig struct {
	RequestTimeoutMs int `json:"request_timeout_ms"`
	Retries          int `json:"retries"`
	SettleDelayMs    int `json:"settle_delay_ms"`
}

// AppConfig is the root persisted application configuration.
type AppConfig struct {
	Serial        SerialConfig        `json:"serial"`
	Radio         RadioConfig         `json:"radio"`
	Manufacturers ManufacturersConfig `json:"manufacturers"`
	Ota           OtaConfig           `json:"ota"`
	Logging       LoggingConfig       `json:"logging"`
}

func Default() AppConfig {
	return AppConfig{
		Serial: SerialConfig{
			Port:             "",
			Baud:             DefaultSerialBaud,
			CommandTimeoutMs: DefaultCommandTimeoutMs,
		},
		Radio: RadioConfig{
			Frequency:          DefaultFrequency,
			FrequencyDeviation: DefaultFrequencyDeviation,
			RxBandwidth:        DefaultRxBandwidth,
			BitRate:            DefaultBitRate,
			Sync:               DefaultSync,
			PayloadLength:      DefaultPayloadLength,
			OutputPower:        0,
			RssiThreshold:      DefaultRssiThreshold,
			WaitTimeoutMs:      DefaultWaitTimeoutMs,
		},
		Manufacturers: ManufacturersConfig{
			PidMap: []PidEntry{{ManufacturerID: EnergenieManufacturerID, Pid: EnergeniePid}},
		},
		Ota: OtaConfig{
			RequestTimeoutMs: DefaultOtaRequestTimeoutMs,
			Retries:          DefaultOtaRetries,
			SettleDelayMs:    DefaultOtaSettleDelayMs,
		},
		Logging: LoggingConfig{
			Level:      "info",
			LogToFile:  false,
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

func Load(path string) (AppConfig, error) {
	cfg := Default()
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path comes from the user config dir or an explicit flag.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config json: %w", err)
	}

	cfg.FillMissingDefaults()

	return cfg, nil
}

// FillMissingDefaults replaces zero values that have no meaning on air.
// Output power and RSSI threshold are left alone since zero is valid for both.
func (c *AppConfig) FillMissingDefaults() {
	if c.Serial.Baud <= 0 {
		c.Serial.Baud = DefaultSerialBaud
	}
	if c.Serial.CommandTimeoutMs <= 0 {
		c.Serial.CommandTimeoutMs = DefaultCommandTimeoutMs
	}
	if c.Radio.Frequency == 0 {
		c.Radio.Frequency = DefaultFrequency
	}
	if c.Radio.FrequencyDeviation == 0 {
		c.Radio.FrequencyDeviation = DefaultFrequencyDeviation
	}
	if c.Radio.RxBandwidth == 0 {
		c.Radio.RxBandwidth = DefaultRxBandwidth
	}
	if c.Radio.BitRate == 0 {
		c.Radio.BitRate = DefaultBitRate
	}
	if strings.TrimSpace(c.Radio.Sync) == "" {
		c.Radio.Sync = DefaultSync
	}
	if c.Radio.PayloadLength == 0 {
		c.Radio.PayloadLength = DefaultPayloadLength
	}
	if c.Radio.WaitTimeoutMs <= 0 {
		c.Radio.WaitTimeoutMs = DefaultWaitTimeoutMs
	}
	if len(c.Manufacturers.PidMap) == 0 {
		c.Manufacturers.PidMap = []PidEntry{{ManufacturerID: EnergenieManufacturerID, Pid: EnergeniePid}}
	}
	if c.Ota.RequestTimeoutMs <= 0 {
		c.Ota.RequestTimeoutMs = DefaultOtaRequestTimeoutMs
	}
	if c.Ota.Retries <= 0 {
		c.Ota.Retries = DefaultOtaRetries
	}
	if c.Ota.SettleDelayMs < 0 {
		c.Ota.SettleDelayMs = DefaultOtaSettleDelayMs
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// SyncBytes decodes the hex sync word.
func (r RadioConfig) SyncBytes() ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(r.Sync), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: sync %q: %v", ErrInvalid, r.Sync, err)
	}
	if len(raw) == 0 || len(raw) > 8 {
		return nil, fmt.Errorf("%w: sync must be 1 to 8 bytes, got %d", ErrInvalid, len(raw))
	}
	return raw, nil
}

func (c AppConfig) Validate() error {
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("%w: serial baud must be positive", ErrInvalid)
	}
	if err := ValidateOutputPower(c.Radio.OutputPower); err != nil {
		return err
	}
	if c.Radio.RssiThreshold < MinRssiThreshold || c.Radio.RssiThreshold > MaxRssiThreshold {
		return fmt.Errorf("%w: rssi threshold %d dBm outside %d..%d", ErrInvalid, c.Radio.RssiThreshold, MinRssiThreshold, MaxRssiThreshold)
	}
	if c.Radio.Frequency == 0 || c.Radio.BitRate == 0 || c.Radio.PayloadLength == 0 {
		return fmt.Errorf("%w: frequency, bit rate and payload length are required", ErrInvalid)
	}
	if _, err := c.Radio.SyncBytes(); err != nil {
		return err
	}
	if len(c.Manufacturers.PidMap) == 0 {
		return fmt.Errorf("%w: manufacturer pid map is empty", ErrInvalid)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalid, c.Logging.Level)
	}

	return nil
}

// RequireSerialPort checks the settings needed to talk to the radio.
func (c AppConfig) RequireSerialPort() error {
	if strings.TrimSpace(c.Serial.Port) == "" {
		return fmt.Errorf("%w: serial port is required", ErrInvalid)
	}
	return nil
}

func ValidateOutputPower(dbm int) error {
	if dbm < MinOutputPower || dbm > MaxOutputPower {
		return fmt.Errorf("%w: output power %d dBm outside %d..%d", ErrInvalid, dbm, MinOutputPower, MaxOutputPower)
	}
	return nil
}

func Save(path string, cfg AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}

	return nil
}

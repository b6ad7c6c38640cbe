// Package controller is the service layer around the PCA9685 core: config
// file loading, the HTTP JSON API, and a typed client for it.
package controller

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/Seann-Moser/servod/pkg/pca9685"
)

// Config is the JSON service configuration loaded at start.
type Config struct {
	// Device is the I2C bus name, e.g. "1" or "/dev/i2c-1". Empty picks
	// the first available bus.
	Device string `json:"device"`
	// Address is the chip's 7-bit address, usually 0x40 (64).
	Address uint16 `json:"address"`
	// FrequencyHz is the PWM output frequency. 50Hz is standard for
	// most servos.
	FrequencyHz float64 `json:"frequency_hz"`
	// OpenDrain selects open-drain outputs instead of totem pole.
	OpenDrain bool `json:"open_drain"`
	// OutputEnable optionally names the GPIO line wired to /OE.
	OutputEnable *pca9685.OutputEnablePin `json:"output_enable,omitempty"`
	// Listen is the HTTP listen address.
	Listen string `json:"listen"`
	// Channels are applied through Configure at startup.
	Channels []pca9685.ChannelConfig `json:"channels"`
}

// DefaultConfig returns the config used when no file is present.
func DefaultConfig() Config {
	return Config{
		Device:      "1",
		Address:     0x40,
		FrequencyHz: 50,
		Listen:      "0.0.0.0:8080",
	}
}

// LoadConfig reads a config file, filling unset fields with defaults. A
// missing file yields the defaults without error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "reading config %q", path)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %q", path)
	}
	if cfg.Address == 0 {
		cfg.Address = 0x40
	}
	if cfg.FrequencyHz == 0 {
		cfg.FrequencyHz = 50
	}
	if cfg.Listen == "" {
		cfg.Listen = "0.0.0.0:8080"
	}
	return cfg, nil
}

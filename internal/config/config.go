// Package config resolves the bridge configuration from defaults, a TOML
// file, TEMPBRIDGE_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"fmt"
	"github.com/dancavallaro/tempbridge/internal/logging"
	"github.com/dancavallaro/tempbridge/pkg/serialbridge"
	"strings"
	"time"
)

type Config struct {
	Port         string
	BaudRate     int
	DataBits     int
	Parity       string
	StopBits     string
	ReadTimeout  time.Duration
	MaxLineBytes int
	DeviceID     string

	LogLevel  string
	LogFormat string

	MQTTAddress   string
	MQTTUsername  string
	MQTTPassword  string
	MQTTKeepAlive time.Duration

	Cloudwatch      bool
	Region          string
	MetricNamespace string
	MetricName      string
	MetricDimension string
	PublishTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaudRate:        serialbridge.DefaultBaudRate,
		DataBits:        serialbridge.DefaultDataBits,
		Parity:          serialbridge.DefaultParity.String(),
		StopBits:        serialbridge.DefaultStopBits.String(),
		ReadTimeout:     serialbridge.DefaultReadTimeout,
		MaxLineBytes:    serialbridge.DefaultMaxLineBytes,
		DeviceID:        "mcu",
		LogLevel:        "info",
		LogFormat:       logging.FormatConsole,
		MQTTKeepAlive:   2 * time.Second,
		Region:          "us-east-1",
		MetricNamespace: "Testing",
		MetricName:      "Temperature",
		MetricDimension: "Device",
		PublishTimeout:  serialbridge.DefaultPublishTimeout,
	}
}

// PortConfig validates the serial settings. Errors wrap
// serialbridge.ErrConfiguration.
func (c Config) PortConfig() (serialbridge.PortConfig, error) {
	parity, err := serialbridge.ParseParity(c.Parity)
	if err != nil {
		return serialbridge.PortConfig{}, err
	}
	stopBits, err := serialbridge.ParseStopBits(c.StopBits)
	if err != nil {
		return serialbridge.PortConfig{}, err
	}
	pc := serialbridge.PortConfig{
		Device:      c.Port,
		BaudRate:    c.BaudRate,
		DataBits:    c.DataBits,
		Parity:      parity,
		StopBits:    stopBits,
		ReadTimeout: c.ReadTimeout,
	}
	if err := pc.Validate(); err != nil {
		return serialbridge.PortConfig{}, err
	}
	return pc, nil
}

// Validate checks everything PortConfig does plus the non-serial settings.
func (c Config) Validate() error {
	if _, err := c.PortConfig(); err != nil {
		return err
	}
	if c.MaxLineBytes < 16 {
		return fmt.Errorf("%w: max line bytes must be at least 16, got %d", serialbridge.ErrConfiguration, c.MaxLineBytes)
	}
	if strings.TrimSpace(c.DeviceID) == "" {
		return fmt.Errorf("%w: device id is required", serialbridge.ErrConfiguration)
	}
	if c.PublishTimeout <= 0 {
		return fmt.Errorf("%w: publish timeout must be positive", serialbridge.ErrConfiguration)
	}
	if c.MQTTAddress != "" && c.MQTTKeepAlive < time.Second {
		return fmt.Errorf("%w: mqtt keepalive must be at least 1s, got %s", serialbridge.ErrConfiguration, c.MQTTKeepAlive)
	}
	if c.Cloudwatch && (c.Region == "" || c.MetricNamespace == "" || c.MetricName == "" || c.MetricDimension == "") {
		return fmt.Errorf("%w: cloudwatch needs region, metric namespace, metric name and metric dimension", serialbridge.ErrConfiguration)
	}
	return nil
}

// Masked returns a copy safe to log.
func (c Config) Masked() Config {
	if c.MQTTPassword != "" {
		c.MQTTPassword = "*****"
	}
	return c
}

// configSetter applies values unless the matching flag was set explicitly.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setInt(flag string, value *int, dst *int) error {
	if value == nil || s.changed[flag] {
		return nil
	}
	if *value <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %d", serialbridge.ErrConfiguration, flag, *value)
	}
	*dst = *value
	return nil
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", serialbridge.ErrConfiguration, flag, err)
	}
	*dst = d
	return nil
}

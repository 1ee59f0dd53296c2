package config

import (
	"fmt"
	"github.com/dancavallaro/tempbridge/pkg/serialbridge"
	toml "github.com/pelletier/go-toml/v2"
	"os"
	"path/filepath"
)

// FileConfig mirrors Config with TOML friendly types.
type FileConfig struct {
	Port            string `toml:"port"`
	BaudRate        *int   `toml:"baud"`
	DataBits        *int   `toml:"data_bits"`
	Parity          string `toml:"parity"`
	StopBits        string `toml:"stop_bits"`
	ReadTimeout     string `toml:"read_timeout"`
	MaxLineBytes    *int   `toml:"max_line_bytes"`
	DeviceID        string `toml:"device_id"`
	LogLevel        string `toml:"log_level"`
	LogFormat       string `toml:"log_format"`
	MQTTAddress     string `toml:"mqtt_address"`
	MQTTUsername    string `toml:"mqtt_username"`
	MQTTPassword    string `toml:"mqtt_password"`
	MQTTKeepAlive   string `toml:"mqtt_keepalive"`
	Cloudwatch      *bool  `toml:"cloudwatch"`
	Region          string `toml:"region"`
	MetricNamespace string `toml:"metric_namespace"`
	MetricName      string `toml:"metric_name"`
	MetricDimension string `toml:"metric_dimension"`
	PublishTimeout  string `toml:"publish_timeout"`
}

func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, fmt.Errorf("%w: parse %s: %v", serialbridge.ErrConfiguration, path, err)
	}
	return fc, nil
}

// DefaultConfigPath is ~/.tempbridge/config.toml, or "" without a home directory.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".tempbridge", "config.toml")
	}
	return ""
}

func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// ApplyFileConfig copies set file values into cfg, skipping flags in changed.
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("port", fc.Port, &cfg.Port)
	s.setString("parity", fc.Parity, &cfg.Parity)
	s.setString("stop-bits", fc.StopBits, &cfg.StopBits)
	s.setString("device-id", fc.DeviceID, &cfg.DeviceID)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)
	s.setString("mqtt-address", fc.MQTTAddress, &cfg.MQTTAddress)
	s.setString("mqtt-username", fc.MQTTUsername, &cfg.MQTTUsername)
	s.setString("mqtt-password", fc.MQTTPassword, &cfg.MQTTPassword)
	s.setString("region", fc.Region, &cfg.Region)
	s.setString("metric-namespace", fc.MetricNamespace, &cfg.MetricNamespace)
	s.setString("metric-name", fc.MetricName, &cfg.MetricName)
	s.setString("metric-dimension", fc.MetricDimension, &cfg.MetricDimension)

	if err := s.setInt("baud", fc.BaudRate, &cfg.BaudRate); err != nil {
		return err
	}
	if err := s.setInt("data-bits", fc.DataBits, &cfg.DataBits); err != nil {
		return err
	}
	if err := s.setInt("max-line-bytes", fc.MaxLineBytes, &cfg.MaxLineBytes); err != nil {
		return err
	}

	s.setBool("cloudwatch", fc.Cloudwatch, &cfg.Cloudwatch)

	if err := s.setDuration("read-timeout", fc.ReadTimeout, &cfg.ReadTimeout); err != nil {
		return err
	}
	if err := s.setDuration("mqtt-keepalive", fc.MQTTKeepAlive, &cfg.MQTTKeepAlive); err != nil {
		return err
	}
	return s.setDuration("publish-timeout", fc.PublishTimeout, &cfg.PublishTimeout)
}

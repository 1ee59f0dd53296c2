package config

import (
	"fmt"
	"github.com/dancavallaro/tempbridge/pkg/serialbridge"
	"os"
	"strconv"
	"strings"
)

const envPrefix = "TEMPBRIDGE_"

// EnvName maps a flag name to its environment variable, e.g. stop-bits to
// TEMPBRIDGE_STOP_BITS.
func EnvName(flag string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

// ApplyEnvConfig reads TEMPBRIDGE_* variables into cfg, skipping flags in changed.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	strs := map[string]*string{
		"port":             &cfg.Port,
		"parity":           &cfg.Parity,
		"stop-bits":        &cfg.StopBits,
		"device-id":        &cfg.DeviceID,
		"log-level":        &cfg.LogLevel,
		"log-format":       &cfg.LogFormat,
		"mqtt-address":     &cfg.MQTTAddress,
		"mqtt-username":    &cfg.MQTTUsername,
		"mqtt-password":    &cfg.MQTTPassword,
		"region":           &cfg.Region,
		"metric-namespace": &cfg.MetricNamespace,
		"metric-name":      &cfg.MetricName,
		"metric-dimension": &cfg.MetricDimension,
	}
	for flag, dst := range strs {
		s.setString(flag, os.Getenv(EnvName(flag)), dst)
	}

	ints := map[string]*int{
		"baud":           &cfg.BaudRate,
		"data-bits":      &cfg.DataBits,
		"max-line-bytes": &cfg.MaxLineBytes,
	}
	for flag, dst := range ints {
		v := os.Getenv(EnvName(flag))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: parse %s: %v", serialbridge.ErrConfiguration, EnvName(flag), err)
		}
		if err := s.setInt(flag, &n, dst); err != nil {
			return err
		}
	}

	if v := os.Getenv(EnvName("cloudwatch")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: parse %s: %v", serialbridge.ErrConfiguration, EnvName("cloudwatch"), err)
		}
		s.setBool("cloudwatch", &b, &cfg.Cloudwatch)
	}

	if err := s.setDuration("read-timeout", os.Getenv(EnvName("read-timeout")), &cfg.ReadTimeout); err != nil {
		return err
	}
	if err := s.setDuration("mqtt-keepalive", os.Getenv(EnvName("mqtt-keepalive")), &cfg.MQTTKeepAlive); err != nil {
		return err
	}
	return s.setDuration("publish-timeout", os.Getenv(EnvName("publish-timeout")), &cfg.PublishTimeout)
}

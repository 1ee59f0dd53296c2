package config

import (
	"github.com/dancavallaro/tempbridge/pkg/serialbridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestEnvName(t *testing.T) {
	assert.Equal(t, "TEMPBRIDGE_PORT", EnvName("port"))
	assert.Equal(t, "TEMPBRIDGE_STOP_BITS", EnvName("stop-bits"))
	assert.Equal(t, "TEMPBRIDGE_METRIC_NAMESPACE", EnvName("metric-namespace"))
}

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		changed map[string]bool
		check   func(t *testing.T, cfg Config)
		wantErr bool
	}{
		{
			name: "applies valid env vars",
			env: map[string]string{
				"TEMPBRIDGE_PORT":           "/dev/ttyUSB1",
				"TEMPBRIDGE_BAUD":           "57600",
				"TEMPBRIDGE_STOP_BITS":      "1.5",
				"TEMPBRIDGE_READ_TIMEOUT":   "100ms",
				"TEMPBRIDGE_CLOUDWATCH":     "true",
				"TEMPBRIDGE_MQTT_ADDRESS":   "tcp://localhost:1883",
				"TEMPBRIDGE_MQTT_KEEPALIVE": "30s",
			},
			changed: map[string]bool{},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, "/dev/ttyUSB1", cfg.Port)
				assert.Equal(t, 57600, cfg.BaudRate)
				assert.Equal(t, "1.5", cfg.StopBits)
				assert.Equal(t, 100*time.Millisecond, cfg.ReadTimeout)
				assert.True(t, cfg.Cloudwatch)
				assert.Equal(t, "tcp://localhost:1883", cfg.MQTTAddress)
				assert.Equal(t, 30*time.Second, cfg.MQTTKeepAlive)
			},
		},
		{
			name:    "respects changed flags",
			env:     map[string]string{"TEMPBRIDGE_PORT": "/dev/ttyUSB1", "TEMPBRIDGE_BAUD": "57600"},
			changed: map[string]bool{"port": true},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, "COM3", cfg.Port)
				assert.Equal(t, 57600, cfg.BaudRate)
			},
		},
		{
			name:    "invalid int",
			env:     map[string]string{"TEMPBRIDGE_DATA_BITS": "eight"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "zero baud",
			env:     map[string]string{"TEMPBRIDGE_BAUD": "0"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "negative max line bytes",
			env:     map[string]string{"TEMPBRIDGE_MAX_LINE_BYTES": "-16"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "invalid bool",
			env:     map[string]string{"TEMPBRIDGE_CLOUDWATCH": "maybe"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "invalid duration",
			env:     map[string]string{"TEMPBRIDGE_PUBLISH_TIMEOUT": "later"},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg := DefaultConfig()
			cfg.Port = "COM3"

			err := ApplyEnvConfig(&cfg, tt.changed)

			if tt.wantErr {
				assert.ErrorIs(t, err, serialbridge.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

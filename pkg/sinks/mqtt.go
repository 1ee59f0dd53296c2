package sinks

import (
	"context"
	"fmt"
	"github.com/dancavallaro/tempbridge/pkg/serialbridge"
	"github.com/eclipse/paho.mqtt.golang"
	"math/rand"
	"time"
)

const (
	readingTopic   = "device/%s/temperature"
	heartbeatTopic = "device/%s/heartbeat"
	heartbeatOK    = "OK"
)

// Logger is what the MQTT client library logs through.
type Logger interface {
	Println(v ...interface{})
	Printf(format string, v ...interface{})
}

const (
	DefaultKeepAlive      = 2 * time.Second
	DefaultPingTimeout    = 1 * time.Second
	DefaultConnectTimeout = 10 * time.Second
)

type MQTTPublisherConfig struct {
	Username      string
	Password      string
	BrokerAddress string
	// DeviceID goes into the client id so brokers can tell bridges apart.
	DeviceID       string
	KeepAlive      time.Duration
	PingTimeout    time.Duration
	ConnectTimeout time.Duration
	Logger         Logger
	DebugLogger    Logger
}

// mqttPublishAPI is the part of mqtt.Client the publisher uses.
type mqttPublishAPI interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher sends each reading to device/<id>/temperature and an "OK"
// heartbeat to device/<id>/heartbeat.
type MQTTPublisher struct {
	client mqttPublishAPI
}

func NewMQTTPublisher(cfg MQTTPublisherConfig) (*MQTTPublisher, error) {
	setLoggers(cfg.Logger, cfg.DebugLogger)

	client := mqtt.NewClient(clientOptions(cfg))
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout(cfg)) {
		return nil, fmt.Errorf("connect to mqtt broker %s: timed out", cfg.BrokerAddress)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", cfg.BrokerAddress, err)
	}
	return &MQTTPublisher{client}, nil
}

func clientOptions(cfg MQTTPublisherConfig) *mqtt.ClientOptions {
	keepAlive, pingTimeout := cfg.KeepAlive, cfg.PingTimeout
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}
	if pingTimeout <= 0 {
		pingTimeout = DefaultPingTimeout
	}

	return mqtt.NewClientOptions().
		AddBroker(cfg.BrokerAddress).
		SetClientID(clientID(cfg.DeviceID, time.Now())).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetKeepAlive(keepAlive).
		SetPingTimeout(pingTimeout).
		SetConnectTimeout(connectTimeout(cfg)).
		SetOrderMatters(false)
}

func connectTimeout(cfg MQTTPublisherConfig) time.Duration {
	if cfg.ConnectTimeout <= 0 {
		return DefaultConnectTimeout
	}
	return cfg.ConnectTimeout
}

// setLoggers points the client library's package-level loggers at ours.
func setLoggers(logger, debug Logger) {
	if logger != nil {
		mqtt.ERROR = logger
		mqtt.CRITICAL = logger
		mqtt.WARN = logger
	}
	if debug != nil {
		mqtt.DEBUG = debug
	}
}

func (pub *MQTTPublisher) Publish(ctx context.Context, r serialbridge.Reading) error {
	if err := pub.send(ctx, fmt.Sprintf(readingTopic, r.Device), r.Value); err != nil {
		return err
	}
	return pub.send(ctx, fmt.Sprintf(heartbeatTopic, r.Device), heartbeatOK)
}

func (pub *MQTTPublisher) send(ctx context.Context, topic string, payload string) error {
	token := pub.client.Publish(topic, 0, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (pub *MQTTPublisher) Close() error {
	pub.client.Disconnect(1000)
	return nil
}

// clientID is tempbridge-<device>-<unix>-<rand>; broker client ids must be unique.
func clientID(device string, now time.Time) string {
	if device == "" {
		device = "bridge"
	}
	return fmt.Sprintf("tempbridge-%s-%d-%06d", device, now.Unix(), rand.Intn(1000000))
}

package main

import (
	"context"
	"fmt"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/dancavallaro/tempbridge/awso"
	"github.com/dancavallaro/tempbridge/internal/config"
	"github.com/dancavallaro/tempbridge/internal/logging"
	"github.com/dancavallaro/tempbridge/pkg/serialbridge"
	"github.com/dancavallaro/tempbridge/pkg/sinks"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"io"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
	"time"
)

var exampleUsage = `  tempbridge --port /dev/ttyUSB0
  tempbridge --port COM3 --mqtt-address tcp://localhost:1883 --device-id lab2
  tempbridge ports`

type app struct {
	cfg     config.Config
	cfgPath string
	stdout  io.Writer
	stderr  io.Writer
	logger  zerolog.Logger

	openPort  func(serialbridge.PortConfig) (io.ReadCloser, error)
	listPorts func() ([]string, error)
	newSinks  func(ctx context.Context, cfg config.Config, logger zerolog.Logger) (sinks.Multi, error)
}

func newApp(stdout, stderr io.Writer) *app {
	logger, _ := logging.New(stderr, "info", logging.FormatConsole)
	return &app{
		cfg:    config.DefaultConfig(),
		stdout: stdout,
		stderr: stderr,
		logger: logger,
		openPort: func(pc serialbridge.PortConfig) (io.ReadCloser, error) {
			return serialbridge.Open(pc)
		},
		listPorts: serialbridge.ListPorts,
		newSinks:  buildSinks,
	}
}

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "tempbridge",
		Short:         "Print temperature readings an MCU sends over a serial port",
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          a.run,
	}

	f := root.Flags()
	f.StringVar(&a.cfgPath, "config", "", "path to config file (default: $HOME/.tempbridge/config.toml)")
	f.StringVar(&a.cfg.Port, "port", a.cfg.Port, "serial device to read from, e.g. /dev/ttyUSB0 or COM3")
	f.IntVar(&a.cfg.BaudRate, "baud", a.cfg.BaudRate, "baud rate, must match the MCU firmware")
	f.IntVar(&a.cfg.DataBits, "data-bits", a.cfg.DataBits, "data bits (5-8)")
	f.StringVar(&a.cfg.Parity, "parity", a.cfg.Parity, "parity: none, odd, even, mark or space")
	f.StringVar(&a.cfg.StopBits, "stop-bits", a.cfg.StopBits, "stop bits: 1, 1.5 or 2")
	f.DurationVar(&a.cfg.ReadTimeout, "read-timeout", a.cfg.ReadTimeout, "timeout of a single read on the device")
	f.IntVar(&a.cfg.MaxLineBytes, "max-line-bytes", a.cfg.MaxLineBytes, "longest accepted line; longer lines are skipped")
	f.StringVar(&a.cfg.DeviceID, "device-id", a.cfg.DeviceID, "device name used in MQTT topics and metric dimensions")
	f.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "log level: debug, info, warn or error")
	f.StringVar(&a.cfg.LogFormat, "log-format", a.cfg.LogFormat, "log format: console or json")
	f.StringVar(&a.cfg.MQTTAddress, "mqtt-address", a.cfg.MQTTAddress, "MQTT broker to publish readings to (disabled when empty)")
	f.StringVar(&a.cfg.MQTTUsername, "mqtt-username", a.cfg.MQTTUsername, "MQTT username")
	f.StringVar(&a.cfg.MQTTPassword, "mqtt-password", a.cfg.MQTTPassword, "MQTT password")
	f.DurationVar(&a.cfg.MQTTKeepAlive, "mqtt-keepalive", a.cfg.MQTTKeepAlive, "MQTT keepalive interval; the ping timeout is half of it")
	f.BoolVar(&a.cfg.Cloudwatch, "cloudwatch", a.cfg.Cloudwatch, "publish numeric readings as a CloudWatch metric")
	f.StringVar(&a.cfg.Region, "region", a.cfg.Region, "CloudWatch region to use")
	f.StringVar(&a.cfg.MetricNamespace, "metric-namespace", a.cfg.MetricNamespace, "metric namespace to publish in")
	f.StringVar(&a.cfg.MetricName, "metric-name", a.cfg.MetricName, "metric name to use for readings")
	f.StringVar(&a.cfg.MetricDimension, "metric-dimension", a.cfg.MetricDimension, "dimension name identifying the device")
	f.DurationVar(&a.cfg.PublishTimeout, "publish-timeout", a.cfg.PublishTimeout, "time allowed to publish one reading to the sinks")

	root.AddCommand(&cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := a.listPorts()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				a.logger.Warn().Msg("no serial ports found")
			}
			for _, port := range ports {
				fmt.Fprintln(a.stdout, port)
			}
			return nil
		},
	})
	return root
}

func (a *app) loadConfig(cmd *cobra.Command) error {
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	cfgFile := a.cfgPath
	if cfgFile == "" {
		cfgFile = config.DefaultConfigPath()
	}
	if cfgFile != "" && (a.cfgPath != "" || config.FileExists(cfgFile)) {
		fc, err := config.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := config.ApplyFileConfig(&a.cfg, fc, changed); err != nil {
			return err
		}
	}
	return config.ApplyEnvConfig(&a.cfg, changed)
}

func (a *app) run(cmd *cobra.Command, _ []string) error {
	if err := a.loadConfig(cmd); err != nil {
		return err
	}
	logger, err := logging.New(a.stderr, a.cfg.LogLevel, a.cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("%w: %v", serialbridge.ErrConfiguration, err)
	}
	a.logger = logger

	if err := a.cfg.Validate(); err != nil {
		return err
	}
	portCfg, err := a.cfg.PortConfig()
	if err != nil {
		return err
	}
	a.logger.Debug().Interface("config", a.cfg.Masked()).Msg("configuration")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	publishers, err := a.newSinks(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := publishers.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("closing sinks")
		}
	}()

	port, err := a.openPort(portCfg)
	if err != nil {
		return err
	}
	a.logger.Info().Stringer("port", portCfg).Msg("serial port open")

	opts := []serialbridge.Option{
		serialbridge.WithOutput(a.stdout),
		serialbridge.WithLogger(a.logger),
		serialbridge.WithDevice(a.cfg.DeviceID),
		serialbridge.WithMaxLineBytes(a.cfg.MaxLineBytes),
		serialbridge.WithPublishTimeout(a.cfg.PublishTimeout),
	}
	if len(publishers) > 0 {
		opts = append(opts, serialbridge.WithPublisher(publishers))
	}
	return serialbridge.New(port, opts...).Run(ctx)
}

func buildSinks(ctx context.Context, cfg config.Config, logger zerolog.Logger) (sinks.Multi, error) {
	var out sinks.Multi

	if cfg.MQTTAddress != "" {
		mqttLogger := logger.With().Str("component", "mqtt").Logger()
		pub, err := sinks.NewMQTTPublisher(sinks.MQTTPublisherConfig{
			BrokerAddress: cfg.MQTTAddress,
			Username:      cfg.MQTTUsername,
			Password:      cfg.MQTTPassword,
			DeviceID:      cfg.DeviceID,
			KeepAlive:     cfg.MQTTKeepAlive,
			PingTimeout:   cfg.MQTTKeepAlive / 2,
			Logger:        logging.NewPrinter(mqttLogger, zerolog.WarnLevel),
			DebugLogger:   logging.NewPrinter(mqttLogger, zerolog.TraceLevel),
		})
		if err != nil {
			return nil, err
		}
		logger.Info().Str("broker", cfg.MQTTAddress).Msg("publishing readings to MQTT")
		out = append(out, pub)
	}

	if cfg.Cloudwatch {
		identity := awso.NewClientProvider(cfg.Region, func(awsCfg aws.Config) *sts.Client {
			return sts.NewFromConfig(awsCfg)
		})
		stsClient, err := identity.Client(ctx)
		if err != nil {
			_ = out.Close()
			return nil, err
		}
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		arn, err := awso.CallerARN(checkCtx, stsClient)
		cancel()
		if err != nil {
			_ = out.Close()
			return nil, err
		}

		cw := awso.NewClientProvider(cfg.Region, func(awsCfg aws.Config) *cloudwatch.Client {
			logger.Debug().Str("region", awsCfg.Region).Msg("creating new CloudWatch client")
			return cloudwatch.NewFromConfig(awsCfg)
		})
		out = append(out, sinks.NewCloudwatchPublisher(sinks.NewAWSCloudwatchProvider(cw), sinks.CloudwatchPublisherConfig{
			MetricNamespace: cfg.MetricNamespace,
			MetricName:      cfg.MetricName,
			DeviceDimension: cfg.MetricDimension,
			RetryDelay:      sinks.DefaultRetryDelay,
			Logger:          logger.With().Str("component", "cloudwatch").Logger(),
		}))
		logger.Info().Str("identity", arn).Str("namespace", cfg.MetricNamespace).Msg("publishing readings to CloudWatch")
	}

	return out, nil
}

func main() {
	a := newApp(os.Stdout, os.Stderr)
	if err := a.rootCommand().Execute(); err != nil {
		a.logger.Error().Err(err).Msg("tempbridge")
		os.Exit(1)
	}
}

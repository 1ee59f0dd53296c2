// Package serialbridge reads newline-terminated temperature readings from an
// MCU's serial port and prints them.
package serialbridge

import (
	"context"
	"fmt"
	"github.com/rs/zerolog"
	"io"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const DefaultPublishTimeout = 15 * time.Second

// Reading is one decoded line.
type Reading struct {
	Device string
	Value  string
	Time   time.Time
}

// Publisher receives every reading after it has been printed.
type Publisher interface {
	Publish(ctx context.Context, r Reading) error
}

type Bridge struct {
	port           io.ReadCloser
	lines          *LineReader
	out            io.Writer
	publisher      Publisher
	logger         zerolog.Logger
	device         string
	maxLineBytes   int
	publishTimeout time.Duration
	now            func() time.Time

	closeOnce sync.Once
	closeErr  error
}

type Option func(*Bridge)

// WithOutput replaces os.Stdout as the destination of formatted readings.
func WithOutput(w io.Writer) Option {
	return func(b *Bridge) { b.out = w }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(b *Bridge) { b.logger = logger }
}

func WithPublisher(p Publisher) Option {
	return func(b *Bridge) { b.publisher = p }
}

// WithDevice sets Reading.Device for published readings.
func WithDevice(id string) Option {
	return func(b *Bridge) { b.device = id }
}

func WithMaxLineBytes(n int) Option {
	return func(b *Bridge) { b.maxLineBytes = n }
}

func WithPublishTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.publishTimeout = d }
}

// New takes ownership of port; it is closed when Run returns.
func New(port io.ReadCloser, opts ...Option) *Bridge {
	b := &Bridge{
		port:           port,
		out:            os.Stdout,
		logger:         zerolog.Nop(),
		maxLineBytes:   DefaultMaxLineBytes,
		publishTimeout: DefaultPublishTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.lines = NewLineReader(port, b.maxLineBytes)
	return b
}

func (b *Bridge) ReadLine(ctx context.Context) ([]byte, error) {
	return b.lines.ReadLine(ctx)
}

// Run prints readings until ctx is done or the port fails. Cancellation is a
// clean stop and returns nil. The port is closed on every return path.
func (b *Bridge) Run(ctx context.Context) (runErr error) {
	stop := context.AfterFunc(ctx, func() {
		_ = b.Close()
	})
	defer func() {
		stop()
		if closeErr := b.Close(); closeErr != nil && runErr == nil && ctx.Err() == nil {
			runErr = fmt.Errorf("close port: %w", closeErr)
		}
	}()

	for {
		line, err := b.ReadLine(ctx)
		if err != nil {
			if ctx.Err() != nil {
				b.logger.Info().Msg("interrupted, stopping bridge")
				return nil
			}
			if skippable(err) {
				b.logger.Warn().Err(err).Msg("skipping line")
				continue
			}
			return err
		}
		if ctx.Err() != nil {
			b.logger.Info().Msg("interrupted, stopping bridge")
			return nil
		}

		value, err := Decode(line)
		if err != nil {
			b.logger.Warn().Err(err).Hex("line", line).Msg("skipping line")
			continue
		}
		if _, err := io.WriteString(b.out, Format(value)+"\n"); err != nil {
			return fmt.Errorf("write reading: %w", err)
		}
		b.publish(ctx, Reading{Device: b.device, Value: value, Time: b.now()})
	}
}

func (b *Bridge) publish(ctx context.Context, r Reading) {
	if b.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, b.publishTimeout)
	defer cancel()
	if err := b.publisher.Publish(ctx, r); err != nil {
		b.logger.Warn().Err(err).Str("value", r.Value).Msg("publish reading failed")
	}
}

// Close releases the port. Safe to call more than once.
func (b *Bridge) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = b.port.Close()
	})
	return b.closeErr
}

// Decode turns a raw line into its trimmed text.
func Decode(line []byte) (string, error) {
	if !utf8.Valid(line) {
		return "", fmt.Errorf("%w: %q", ErrDecode, line)
	}
	return strings.TrimSpace(string(line)), nil
}

func Format(value string) string {
	return "Temperature is: " + value + " C"
}

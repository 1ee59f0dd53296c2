package serialbridge

import (
	"errors"
	"fmt"
	"github.com/albenik/go-serial/v2"
	"sync"
)

var serialParity = map[Parity]serial.Parity{
	NoParity:    serial.NoParity,
	OddParity:   serial.OddParity,
	EvenParity:  serial.EvenParity,
	MarkParity:  serial.MarkParity,
	SpaceParity: serial.SpaceParity,
}

var serialStopBits = map[StopBits]serial.StopBits{
	OneStopBit:           serial.OneStopBit,
	OnePointFiveStopBits: serial.OnePointFiveStopBits,
	TwoStopBits:          serial.TwoStopBits,
}

// Port is an open serial device. Close is idempotent.
type Port struct {
	port      *serial.Port
	config    PortConfig
	closeOnce sync.Once
	closeErr  error
}

// Open validates cfg and opens the device. Errors wrap ErrConfiguration or
// ErrPortUnavailable.
func Open(cfg PortConfig) (*Port, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := int(cfg.ReadTimeout.Milliseconds())
	port, err := serial.Open(
		cfg.Device,
		serial.WithBaudrate(cfg.BaudRate),
		serial.WithDataBits(cfg.DataBits),
		serial.WithParity(serialParity[cfg.Parity]),
		serial.WithStopBits(serialStopBits[cfg.StopBits]),
		serial.WithReadTimeout(timeout),
		serial.WithWriteTimeout(timeout),
	)
	if err != nil {
		if port != nil {
			_ = port.Close()
		}
		return nil, classifyOpenError(cfg, err)
	}
	// Return as soon as any byte arrives; only an idle line waits out the timeout.
	if err := port.SetFirstByteReadTimeout(uint32(timeout)); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("%w: %s: set first byte timeout: %v", ErrConfiguration, cfg, err)
	}
	return &Port{port: port, config: cfg}, nil
}

func classifyOpenError(cfg PortConfig, err error) error {
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.InvalidSpeed, serial.InvalidDataBits, serial.InvalidParity,
			serial.InvalidStopBits, serial.InvalidTimeoutValue:
			return fmt.Errorf("%w: %s: %v", ErrConfiguration, cfg, err)
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrPortUnavailable, cfg.Device, err)
}

func (p *Port) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

func (p *Port) Config() PortConfig {
	return p.config
}

func (p *Port) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.port.Close()
	})
	return p.closeErr
}

// ListPorts returns the serial devices the OS reports.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}

package serialbridge

import (
	"fmt"
	"strings"
	"time"
)

// Defaults matching the MCU firmware's UART setup.
const (
	DefaultBaudRate    = 115200
	DefaultDataBits    = 8
	DefaultParity      = NoParity
	DefaultStopBits    = TwoStopBits
	DefaultReadTimeout = time.Second
)

type Parity int

const (
	NoParity Parity = iota
	OddParity
	EvenParity
	MarkParity
	SpaceParity
)

var parityNames = map[Parity]string{
	NoParity:    "none",
	OddParity:   "odd",
	EvenParity:  "even",
	MarkParity:  "mark",
	SpaceParity: "space",
}

func (p Parity) String() string {
	if name, ok := parityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Parity(%d)", int(p))
}

// ParseParity accepts the names printed by Parity.String, case-insensitively.
func ParseParity(s string) (Parity, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for p, name := range parityNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown parity %q", ErrConfiguration, s)
}

type StopBits int

const (
	OneStopBit StopBits = iota
	OnePointFiveStopBits
	TwoStopBits
)

var stopBitsNames = map[StopBits]string{
	OneStopBit:           "1",
	OnePointFiveStopBits: "1.5",
	TwoStopBits:          "2",
}

func (s StopBits) String() string {
	if name, ok := stopBitsNames[s]; ok {
		return name
	}
	return fmt.Sprintf("StopBits(%d)", int(s))
}

func ParseStopBits(s string) (StopBits, error) {
	s = strings.TrimSpace(s)
	for sb, name := range stopBitsNames {
		if name == s {
			return sb, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown stop bits %q", ErrConfiguration, s)
}

// PortConfig is fixed once the port is opened.
type PortConfig struct {
	Device   string
	BaudRate int
	DataBits int
	Parity   Parity
	StopBits StopBits

	// ReadTimeout bounds a single read on the device. A timed out read is
	// not an error; ReadLine keeps waiting.
	ReadTimeout time.Duration
}

func DefaultPortConfig(device string) PortConfig {
	return PortConfig{
		Device:      device,
		BaudRate:    DefaultBaudRate,
		DataBits:    DefaultDataBits,
		Parity:      DefaultParity,
		StopBits:    DefaultStopBits,
		ReadTimeout: DefaultReadTimeout,
	}
}

func (c PortConfig) Validate() error {
	if c.Device == "" {
		return fmt.Errorf("%w: device is required", ErrConfiguration)
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("%w: baud rate must be positive, got %d", ErrConfiguration, c.BaudRate)
	}
	if c.DataBits < 5 || c.DataBits > 8 {
		return fmt.Errorf("%w: data bits must be between 5 and 8, got %d", ErrConfiguration, c.DataBits)
	}
	if _, ok := parityNames[c.Parity]; !ok {
		return fmt.Errorf("%w: invalid parity %v", ErrConfiguration, c.Parity)
	}
	if _, ok := stopBitsNames[c.StopBits]; !ok {
		return fmt.Errorf("%w: invalid stop bits %v", ErrConfiguration, c.StopBits)
	}
	if c.ReadTimeout < time.Millisecond {
		return fmt.Errorf("%w: read timeout must be at least 1ms, got %v", ErrConfiguration, c.ReadTimeout)
	}
	return nil
}

func (c PortConfig) String() string {
	return fmt.Sprintf("%s %d %d%s%s", c.Device, c.BaudRate, c.DataBits,
		strings.ToUpper(c.Parity.String()[:1]), c.StopBits)
}

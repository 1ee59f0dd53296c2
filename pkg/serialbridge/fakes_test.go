package serialbridge

import (
	"context"
	"io"
	"strings"
	"sync"
)

// scriptedPort replays chunks in order. A nil chunk is a read timeout.
// Once the script is exhausted every read returns err (io.EOF by default).
type scriptedPort struct {
	mu     sync.Mutex
	chunks [][]byte
	err    error
	closes int
}

func newScriptedPort(chunks ...string) *scriptedPort {
	p := &scriptedPort{err: io.EOF}
	for _, c := range chunks {
		if c == "" {
			p.chunks = append(p.chunks, nil)
			continue
		}
		p.chunks = append(p.chunks, []byte(c))
	}
	return p
}

func (p *scriptedPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.chunks) == 0 {
		return 0, p.err
	}
	chunk := p.chunks[0]
	n := copy(b, chunk)
	if n < len(chunk) {
		p.chunks[0] = chunk[n:]
	} else {
		p.chunks = p.chunks[1:]
	}
	return n, nil
}

func (p *scriptedPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closes++
	return nil
}

func (p *scriptedPort) closeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}

type lineSink struct {
	lines chan string
}

func newLineSink() lineSink {
	return lineSink{lines: make(chan string, 64)}
}

func (s lineSink) Write(p []byte) (int, error) {
	s.lines <- strings.TrimSuffix(string(p), "\n")
	return len(p), nil
}

func (s lineSink) drain() []string {
	var out []string
	for {
		select {
		case l := <-s.lines:
			out = append(out, l)
		default:
			return out
		}
	}
}

type recordingPublisher struct {
	mu       sync.Mutex
	readings []Reading
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, r Reading) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readings = append(p.readings, r)
	return p.err
}

func (p *recordingPublisher) values() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, r := range p.readings {
		out = append(out, r.Value)
	}
	return out
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, io.ErrClosedPipe
}

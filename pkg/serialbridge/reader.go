package serialbridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// DefaultMaxLineBytes bounds a line including its newline.
const DefaultMaxLineBytes = 4096

// LineReader splits a serial byte stream into newline-terminated lines.
// Zero-byte reads and deadline errors from the source are read timeouts and
// are retried until data arrives, the source fails, or the context is done.
type LineReader struct {
	src *tickReader
	br  *bufio.Reader
}

func NewLineReader(r io.Reader, maxLineBytes int) *LineReader {
	if maxLineBytes <= 0 {
		maxLineBytes = DefaultMaxLineBytes
	}
	src := &tickReader{src: r, ctx: context.Background()}
	return &LineReader{src: src, br: bufio.NewReaderSize(src, maxLineBytes)}
}

// ReadLine returns the next line including the trailing '\n'. The returned
// slice is owned by the caller.
//
// A line longer than the limit is consumed through its newline and reported
// as ErrLineTooLong. A failing source yields an error wrapping ErrIO; any
// partial line is dropped. Context cancellation yields ctx.Err().
func (l *LineReader) ReadLine(ctx context.Context) ([]byte, error) {
	l.src.ctx = ctx
	chunk, err := l.br.ReadSlice('\n')
	if err == nil {
		line := make([]byte, len(chunk))
		copy(line, chunk)
		return line, nil
	}
	if !errors.Is(err, bufio.ErrBufferFull) {
		return nil, l.readErr(ctx, err)
	}
	dropped := len(chunk)
	for {
		chunk, err = l.br.ReadSlice('\n')
		dropped += len(chunk)
		if err == nil {
			return nil, fmt.Errorf("%w: dropped %d bytes", ErrLineTooLong, dropped)
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return nil, l.readErr(ctx, err)
		}
	}
}

func (l *LineReader) readErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: device closed the connection", ErrIO)
	}
	return fmt.Errorf("%w: %v", ErrIO, err)
}

type tickReader struct {
	src io.Reader
	ctx context.Context
}

func (t *tickReader) Read(b []byte) (int, error) {
	for {
		if err := t.ctx.Err(); err != nil {
			return 0, err
		}
		n, err := t.src.Read(b)
		if err != nil && isTimeout(err) {
			err = nil
		}
		if n > 0 || err != nil {
			return n, err
		}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

package sinks

import (
	"context"
	"errors"
	"github.com/dancavallaro/tempbridge/pkg/serialbridge"
	"github.com/stretchr/testify/assert"
	"testing"
)

type countingSink struct {
	publishErr error
	closeErr   error
	published  int
	closed     int
}

func (s *countingSink) Publish(context.Context, serialbridge.Reading) error {
	s.published++
	return s.publishErr
}

func (s *countingSink) Close() error {
	s.closed++
	return s.closeErr
}

func TestMultiPublishesToAllSinks(t *testing.T) {
	boom := errors.New("boom")
	first := &countingSink{publishErr: boom}
	second := &countingSink{}
	m := Multi{first, second}

	err := m.Publish(context.Background(), serialbridge.Reading{Value: "25"})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, first.published)
	assert.Equal(t, 1, second.published)
}

func TestMultiCloseClosesAll(t *testing.T) {
	first := &countingSink{}
	second := &countingSink{closeErr: errors.New("already closed")}
	m := Multi{first, second}

	err := m.Close()

	assert.ErrorContains(t, err, "already closed")
	assert.Equal(t, 1, first.closed)
	assert.Equal(t, 1, second.closed)
}

func TestEmptyMulti(t *testing.T) {
	assert.NoError(t, Multi{}.Publish(context.Background(), serialbridge.Reading{}))
	assert.NoError(t, Multi{}.Close())
}

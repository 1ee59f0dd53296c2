// Package sinks forwards bridge readings to MQTT and CloudWatch.
package sinks

import (
	"context"
	"errors"
	"github.com/dancavallaro/tempbridge/pkg/serialbridge"
)

type Sink interface {
	serialbridge.Publisher
	Close() error
}

// Multi publishes every reading to all of its sinks, even when some fail.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, r serialbridge.Reading) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

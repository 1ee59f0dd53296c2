package sinks

import (
	"context"
	"errors"
	"fmt"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/dancavallaro/tempbridge/awso"
	"github.com/dancavallaro/tempbridge/pkg/serialbridge"
	"github.com/rs/zerolog"
	"strconv"
	"time"
)

const DefaultRetryDelay = 5 * time.Second

type MetricsAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

type CloudwatchClientProvider interface {
	MetricsClient(ctx context.Context) (MetricsAPI, error)
	Invalidate()
}

type awsCloudwatchProvider struct {
	*awso.ClientProvider[cloudwatch.Client]
}

func (p awsCloudwatchProvider) MetricsClient(ctx context.Context) (MetricsAPI, error) {
	client, err := p.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// NewAWSCloudwatchProvider adapts an awso provider of real CloudWatch clients.
func NewAWSCloudwatchProvider(cp *awso.ClientProvider[cloudwatch.Client]) CloudwatchClientProvider {
	return awsCloudwatchProvider{cp}
}

type CloudwatchPublisherConfig struct {
	MetricNamespace string
	MetricName      string
	DeviceDimension string
	RetryDelay      time.Duration
	Logger          zerolog.Logger
}

// CloudwatchPublisher records numeric readings as a CloudWatch metric.
// Readings that do not parse as a number are skipped.
type CloudwatchPublisher struct {
	cw  CloudwatchClientProvider
	cfg CloudwatchPublisherConfig
}

func NewCloudwatchPublisher(cw CloudwatchClientProvider, cfg CloudwatchPublisherConfig) *CloudwatchPublisher {
	return &CloudwatchPublisher{cw, cfg}
}

func (pub *CloudwatchPublisher) Publish(ctx context.Context, r serialbridge.Reading) error {
	value, err := strconv.ParseFloat(r.Value, 64)
	if err != nil {
		pub.cfg.Logger.Debug().Str("value", r.Value).Msg("reading is not numeric, not publishing metric")
		return nil
	}

	if err := pub.publishReading(ctx, r, value); err != nil {
		if !errors.Is(err, awso.ClientInvalidated) {
			return err
		}

		pub.cfg.Logger.Warn().Dur("delay", pub.cfg.RetryDelay).Msg("AWS credentials are expired, retrying with a fresh client")
		pub.cw.Invalidate()
		select {
		case <-time.After(pub.cfg.RetryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}

		if err := pub.publishReading(ctx, r, value); err != nil {
			return err
		}
	}
	return nil
}

func (pub *CloudwatchPublisher) publishReading(ctx context.Context, r serialbridge.Reading, value float64) error {
	client, err := pub.cw.MetricsClient(ctx)
	if err != nil {
		return err
	}
	_, err = client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(pub.cfg.MetricNamespace),
		MetricData: []types.MetricDatum{
			{
				MetricName: aws.String(pub.cfg.MetricName),
				Dimensions: []types.Dimension{
					{
						Name:  aws.String(pub.cfg.DeviceDimension),
						Value: aws.String(r.Device),
					},
				},
				Timestamp: aws.Time(r.Time),
				Value:     aws.Float64(value),
				Unit:      types.StandardUnitNone,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("put metric data: %w", awso.Classify(err))
	}

	pub.cfg.Logger.Debug().Str("device", r.Device).Float64("value", value).Msg("published temperature metric")
	return nil
}

func (pub *CloudwatchPublisher) Close() error {
	return nil
}

package awso

import (
	"context"
	"errors"
	"fmt"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"sync"
)

// ClientInvalidated marks errors caused by expired or revoked credentials.
// The cached client should be dropped and rebuilt.
var ClientInvalidated = errors.New("aws client credentials are no longer valid")

var expiredCodes = map[string]bool{
	"ExpiredToken":          true,
	"ExpiredTokenException": true,
	"RequestExpired":        true,
	"InvalidClientTokenId":  true,
}

type ConfigLoader func(ctx context.Context, region string) (aws.Config, error)

func LoadDefaultConfig(ctx context.Context, region string) (aws.Config, error) {
	return config.LoadDefaultConfig(ctx, config.WithRegion(region))
}

// ClientProvider builds a client on first use and caches it until Invalidate.
type ClientProvider[T any] struct {
	region      string
	buildClient func(cfg aws.Config) *T
	loadConfig  ConfigLoader

	mu     sync.Mutex
	client *T
}

func NewClientProvider[T any](region string, buildClient func(cfg aws.Config) *T) *ClientProvider[T] {
	return &ClientProvider[T]{region: region, buildClient: buildClient, loadConfig: LoadDefaultConfig}
}

// WithConfigLoader replaces the shared-config loader, mostly for tests.
func (cp *ClientProvider[T]) WithConfigLoader(load ConfigLoader) *ClientProvider[T] {
	cp.loadConfig = load
	return cp
}

func (cp *ClientProvider[T]) Client(ctx context.Context) (*T, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if cp.client == nil {
		cfg, err := cp.loadConfig(ctx, cp.region)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		cp.client = cp.buildClient(cfg)
	}
	return cp.client, nil
}

func (cp *ClientProvider[T]) Invalidate() {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.client = nil
}

// Classify wraps API errors that mean the credentials expired with
// ClientInvalidated. Other errors are returned unchanged.
func Classify(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && expiredCodes[apiErr.ErrorCode()] {
		return fmt.Errorf("%w: %w", ClientInvalidated, err)
	}
	return err
}

type CallerIdentityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// CallerARN resolves the identity the credentials belong to.
func CallerARN(ctx context.Context, api CallerIdentityAPI) (string, error) {
	resp, err := api.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("get caller identity: %w", Classify(err))
	}
	return aws.ToString(resp.Arn), nil
}

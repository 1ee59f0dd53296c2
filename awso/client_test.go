package awso

import (
	"context"
	"errors"
	"github.com/aws/aws-sdk-go-v2/aws"
	awssts "github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func p(s string) *string {
	return &s
}

func staticConfig(loads *int) ConfigLoader {
	return func(_ context.Context, region string) (aws.Config, error) {
		*loads++
		return aws.Config{Region: region}, nil
	}
}

func TestClientCaching(t *testing.T) {
	buildClientInvocations := 0
	loads := 0
	cp := NewClientProvider("eu-west-1", func(cfg aws.Config) *string {
		buildClientInvocations++
		return p("dummy client in " + cfg.Region)
	}).WithConfigLoader(staticConfig(&loads))

	for i := 0; i < 5; i++ {
		client, err := cp.Client(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "dummy client in eu-west-1", *client)
	}

	assert.Equal(t, 1, buildClientInvocations)
	assert.Equal(t, 1, loads)
}

func TestInvalidateRebuildsClient(t *testing.T) {
	buildClientInvocations := 0
	loads := 0
	cp := NewClientProvider("us-east-1", func(cfg aws.Config) *string {
		buildClientInvocations++
		return p("dummy client")
	}).WithConfigLoader(staticConfig(&loads))

	_, err := cp.Client(context.Background())
	require.NoError(t, err)
	cp.Invalidate()
	_, err = cp.Client(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, buildClientInvocations)
	assert.Equal(t, 2, loads)
}

func TestClientConfigError(t *testing.T) {
	cp := NewClientProvider("us-east-1", func(cfg aws.Config) *string {
		t.Fatal("client must not be built without config")
		return nil
	}).WithConfigLoader(func(context.Context, string) (aws.Config, error) {
		return aws.Config{}, errors.New("no shared config")
	})

	_, err := cp.Client(context.Background())

	assert.ErrorContains(t, err, "no shared config")
}

func TestClassify(t *testing.T) {
	expired := &smithy.GenericAPIError{Code: "ExpiredToken", Message: "token expired"}
	throttled := &smithy.GenericAPIError{Code: "Throttling", Message: "slow down"}
	plain := errors.New("connection refused")

	assert.ErrorIs(t, Classify(expired), ClientInvalidated)
	assert.ErrorIs(t, Classify(expired), expired)
	assert.NotErrorIs(t, Classify(throttled), ClientInvalidated)
	assert.Equal(t, plain, Classify(plain))
	assert.Nil(t, Classify(nil))
}

type fakeSTS struct {
	arn string
	err error
}

func (f fakeSTS) GetCallerIdentity(context.Context, *awssts.GetCallerIdentityInput, ...func(*awssts.Options)) (*awssts.GetCallerIdentityOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &awssts.GetCallerIdentityOutput{Arn: p(f.arn)}, nil
}

func TestCallerARN(t *testing.T) {
	arn, err := CallerARN(context.Background(), fakeSTS{arn: "arn:aws:iam::123456789012:user/bridge"})
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:iam::123456789012:user/bridge", arn)

	_, err = CallerARN(context.Background(), fakeSTS{err: &smithy.GenericAPIError{Code: "ExpiredTokenException"}})
	assert.ErrorIs(t, err, ClientInvalidated)
}

// Compile-time check that the real client satisfies the narrow interface.
var _ CallerIdentityAPI = (*awssts.Client)(nil)

package edgeauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

type mockSSMClient struct {
	value   string
	err     error
	calls   int
	regions []string
	names   []string
}

func (m *mockSSMClient) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	m.calls++
	var o ssm.Options
	for _, fn := range optFns {
		fn(&o)
	}
	m.regions = append(m.regions, o.Region)
	m.names = append(m.names, aws.ToString(params.Name))
	if m.err != nil {
		return nil, m.err
	}
	return &ssm.GetParameterOutput{
		Parameter: &ssmtypes.Parameter{Value: aws.String(m.value)},
	}, nil
}

func TestPoolFromID(t *testing.T) {
	p, err := PoolFromID("ca-central-1_AbCdEf")
	require.NoError(t, err)
	assert.Equal(t, "ca-central-1", p.Region)
	assert.Equal(t, "https://cognito-idp.ca-central-1.amazonaws.com/ca-central-1_AbCdEf", p.Issuer())
	assert.Equal(t, "https://cognito-idp.ca-central-1.amazonaws.com/ca-central-1_AbCdEf/.well-known/jwks.json", p.JWKSURL())

	for _, bad := range []string{"", "nounderscore", "_suffix"} {
		_, err := PoolFromID(bad)
		assert.Error(t, err, bad)
	}
}

func TestStaticPool_IgnoresRegion(t *testing.T) {
	sp, err := NewStaticPool("us-west-2_XYZ")
	require.NoError(t, err)

	p, err := sp.Resolve(context.Background(), "ca-central-1")
	require.NoError(t, err)
	assert.Equal(t, "us-west-2_XYZ", p.ID)
	assert.Equal(t, "us-west-2", p.Region)

	_, err = NewStaticPool("garbage")
	assert.Error(t, err)
}

func TestParameterPool_ResolveInDeclaredRegion(t *testing.T) {
	client := &mockSSMClient{value: "ca-central-1_Pool1"}
	pools := NewParameterPool(client)

	p, err := pools.Resolve(context.Background(), "ca-central-1")
	require.NoError(t, err)
	assert.Equal(t, "ca-central-1_Pool1", p.ID)
	assert.Equal(t, []string{"ca-central-1"}, client.regions)
	assert.Equal(t, []string{types.ParamUserPool}, client.names)
}

func TestParameterPool_EmptyRegion(t *testing.T) {
	client := &mockSSMClient{value: "ca-central-1_Pool1"}
	_, err := NewParameterPool(client).Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnknownRegion)
	assert.Zero(t, client.calls)
}

func TestParameterPool_EmptyOrMalformedValue(t *testing.T) {
	_, err := NewParameterPool(&mockSSMClient{}).Resolve(context.Background(), "ca-central-1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "is empty")

	_, err = NewParameterPool(&mockSSMClient{value: "bogus"}).Resolve(context.Background(), "ca-central-1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")
}

func TestParameterPool_APIError(t *testing.T) {
	client := &mockSSMClient{err: assert.AnError}
	_, err := NewParameterPool(client, WithParameterName("/custom/pool")).Resolve(context.Background(), "ca-central-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GetParameter /custom/pool")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestParameterPool_CacheTTL(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	client := &mockSSMClient{value: "ca-central-1_Pool1"}
	pools := NewParameterPool(client,
		WithCacheTTL(time.Minute),
		WithClock(func() time.Time { return now }),
	)

	ctx := context.Background()
	_, err := pools.Resolve(ctx, "ca-central-1")
	require.NoError(t, err)
	_, err = pools.Resolve(ctx, "ca-central-1")
	require.NoError(t, err)
	assert.Equal(t, 1, client.calls)

	_, err = pools.Resolve(ctx, "us-east-1")
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls)

	now = now.Add(2 * time.Minute)
	_, err = pools.Resolve(ctx, "ca-central-1")
	require.NoError(t, err)
	assert.Equal(t, 3, client.calls)
}

func TestParameterPool_NoCacheByDefault(t *testing.T) {
	client := &mockSSMClient{value: "ca-central-1_Pool1"}
	pools := NewParameterPool(client)
	for i := 0; i < 3; i++ {
		_, err := pools.Resolve(context.Background(), "ca-central-1")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, client.calls)
}

func TestParameterPool_BreakerOpens(t *testing.T) {
	client := &mockSSMClient{err: errors.New("throttled")}
	pools := NewParameterPool(client, WithBreakerSettings(gobreaker.Settings{
		Name:    "test",
		Timeout: time.Hour,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 2
		},
	}))

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := pools.Resolve(ctx, "ca-central-1")
		require.Error(t, err)
	}
	_, err := pools.Resolve(ctx, "ca-central-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, client.calls)
}

type regionalSSMClient struct {
	values map[string]string
	calls  map[string]int
}

func (r *regionalSSMClient) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	var o ssm.Options
	for _, fn := range optFns {
		fn(&o)
	}
	if r.calls == nil {
		r.calls = make(map[string]int)
	}
	r.calls[o.Region]++
	v, ok := r.values[o.Region]
	if !ok {
		return nil, errors.New("could not connect to endpoint")
	}
	return &ssm.GetParameterOutput{
		Parameter: &ssmtypes.Parameter{Value: aws.String(v)},
	}, nil
}

func TestParameterPool_BreakerIsPerRegion(t *testing.T) {
	client := &regionalSSMClient{values: map[string]string{"ca-central-1": "ca-central-1_Pool1"}}
	pools := NewParameterPool(client)

	ctx := context.Background()
	for i := 0; i < 6; i++ {
		_, err := pools.Resolve(ctx, "xx-bogus-1")
		require.Error(t, err)
	}
	_, err := pools.Resolve(ctx, "xx-bogus-1")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 5, client.calls["xx-bogus-1"])

	p, err := pools.Resolve(ctx, "ca-central-1")
	require.NoError(t, err)
	assert.Equal(t, "ca-central-1_Pool1", p.ID)
}

func TestParameterPool_RejectsMalformedRegion(t *testing.T) {
	client := &mockSSMClient{value: "ca-central-1_Pool1"}
	pools := NewParameterPool(client)

	for _, bad := range []string{"not a region", "CA-CENTRAL-1", "ca-central", "ca-central-1/../x", "a-b-1"} {
		_, err := pools.Resolve(context.Background(), bad)
		assert.ErrorIs(t, err, ErrInvalidRegion, bad)
	}
	assert.Zero(t, client.calls)

	for _, good := range []string{"us-east-1", "ap-southeast-2", "us-gov-west-1", "eu-central-2"} {
		_, err := pools.Resolve(context.Background(), good)
		assert.NoError(t, err, good)
	}
}

package edgeauth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/sony/gobreaker"

	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

// ErrUnknownRegion is returned when a pool cannot be resolved for the
// region a request declares.
var ErrUnknownRegion = errors.New("edgeauth: region is required to resolve the user pool")

// ErrInvalidRegion is returned when the declared region is not shaped like
// an AWS region name.
var ErrInvalidRegion = errors.New("edgeauth: malformed region")

var regionPattern = regexp.MustCompile(`^[a-z]{2}(-[a-z]+)+-[0-9]{1,2}$`)

// maxBreakers bounds the per-region breaker set.
const maxBreakers = 64

// Pool identifies a Cognito user pool.
type Pool struct {
	ID     string
	Region string
}

// Issuer returns the token issuer URL for the pool.
func (p Pool) Issuer() string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", p.Region, p.ID)
}

// JWKSURL returns the pool's signing key set location.
func (p Pool) JWKSURL() string {
	return p.Issuer() + "/.well-known/jwks.json"
}

// PoolFromID derives the pool region from a Cognito pool id of the form
// "<region>_<suffix>".
func PoolFromID(id string) (Pool, error) {
	region, _, ok := strings.Cut(id, "_")
	if !ok || region == "" {
		return Pool{}, fmt.Errorf("edgeauth: malformed user pool id %q", id)
	}
	return Pool{ID: id, Region: region}, nil
}

// PoolResolver maps the region a request declares to the user pool that
// issued its token.
type PoolResolver interface {
	Resolve(ctx context.Context, region string) (Pool, error)
}

// StaticPool always resolves to one pool fixed at deployment time.
type StaticPool struct {
	pool Pool
}

// NewStaticPool creates a resolver pinned to the given pool id.
func NewStaticPool(id string) (*StaticPool, error) {
	p, err := PoolFromID(id)
	if err != nil {
		return nil, err
	}
	return &StaticPool{pool: p}, nil
}

// Resolve ignores the declared region and returns the fixed pool.
func (s *StaticPool) Resolve(context.Context, string) (Pool, error) {
	return s.pool, nil
}

// SSMAPI is the subset of the SSM client used to look up the pool id.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ParameterPool resolves the pool id from a parameter-store entry in the
// region the request declares. Lookups run through a circuit breaker kept
// per region, and may be cached for a TTL. A zero TTL looks the parameter up
// on every request.
type ParameterPool struct {
	client    SSMAPI
	parameter string
	ttl       time.Duration
	now       func() time.Time
	settings  gobreaker.Settings

	mu       sync.Mutex
	cache    map[string]cachedPool
	breakers map[string]*gobreaker.CircuitBreaker
}

type cachedPool struct {
	pool      Pool
	expiresAt time.Time
}

// ParameterPoolOption configures a ParameterPool.
type ParameterPoolOption func(*ParameterPool)

// WithParameterName overrides the parameter holding the pool id.
func WithParameterName(name string) ParameterPoolOption {
	return func(p *ParameterPool) { p.parameter = name }
}

// WithCacheTTL caches resolved pools per region for ttl.
func WithCacheTTL(ttl time.Duration) ParameterPoolOption {
	return func(p *ParameterPool) { p.ttl = ttl }
}

// WithClock overrides the time source (useful for testing).
func WithClock(now func() time.Time) ParameterPoolOption {
	return func(p *ParameterPool) { p.now = now }
}

// WithBreakerSettings replaces the default circuit breaker settings. Each
// region gets its own breaker built from st.
func WithBreakerSettings(st gobreaker.Settings) ParameterPoolOption {
	return func(p *ParameterPool) { p.settings = st }
}

// NewParameterPool creates a resolver backed by the given SSM client.
func NewParameterPool(client SSMAPI, opts ...ParameterPoolOption) *ParameterPool {
	p := &ParameterPool{
		client:    client,
		parameter: types.ParamUserPool,
		now:       time.Now,
		cache:     make(map[string]cachedPool),
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
		settings: gobreaker.Settings{
			Name:    "ssm-user-pool",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Resolve looks up the pool id parameter in the given region.
func (p *ParameterPool) Resolve(ctx context.Context, region string) (Pool, error) {
	if region == "" {
		return Pool{}, ErrUnknownRegion
	}
	if !regionPattern.MatchString(region) {
		return Pool{}, fmt.Errorf("%w: %q", ErrInvalidRegion, region)
	}

	if pool, ok := p.cached(region); ok {
		return pool, nil
	}

	out, err := p.breaker(region).Execute(func() (interface{}, error) {
		return p.client.GetParameter(ctx, &ssm.GetParameterInput{
			Name: aws.String(p.parameter),
		}, func(o *ssm.Options) { o.Region = region })
	})
	if err != nil {
		return Pool{}, fmt.Errorf("edgeauth: GetParameter %s in %s failed: %w", p.parameter, region, err)
	}

	res, _ := out.(*ssm.GetParameterOutput)
	if res == nil || res.Parameter == nil || aws.ToString(res.Parameter.Value) == "" {
		return Pool{}, fmt.Errorf("edgeauth: parameter %s in %s is empty", p.parameter, region)
	}

	pool, err := PoolFromID(aws.ToString(res.Parameter.Value))
	if err != nil {
		return Pool{}, err
	}
	p.store(region, pool)
	return pool, nil
}

// breaker returns the circuit breaker for region, creating it on first use.
// Past maxBreakers the set is reset.
func (p *ParameterPool) breaker(region string) *gobreaker.CircuitBreaker {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cb, ok := p.breakers[region]; ok {
		return cb
	}
	if len(p.breakers) >= maxBreakers {
		p.breakers = make(map[string]*gobreaker.CircuitBreaker)
	}
	st := p.settings
	st.Name = p.settings.Name + "/" + region
	cb := gobreaker.NewCircuitBreaker(st)
	p.breakers[region] = cb
	return cb
}

func (p *ParameterPool) cached(region string) (Pool, bool) {
	if p.ttl <= 0 {
		return Pool{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.cache[region]
	if !ok || !p.now().Before(c.expiresAt) {
		return Pool{}, false
	}
	return c.pool, true
}

func (p *ParameterPool) store(region string, pool Pool) {
	if p.ttl <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache[region] = cachedPool{pool: pool, expiresAt: p.now().Add(p.ttl)}
}

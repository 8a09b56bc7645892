// Package circuitbreaker guards the Azure OpenAI upstream with a
// Redis-backed breaker so replicas share one view of upstream health.
// State transitions happen atomically in Lua.
package circuitbreaker

import (
	"context"
	"fmt"
	"time"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/egile-labs/egile-marketing/internal/models"
)

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "HalfOpen"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Config tunes breaker behavior. Zero values take the defaults below.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	ResetAfter       time.Duration
}

const (
	defaultFailureThreshold = 5
	defaultSuccessThreshold = 2
	defaultResetAfter       = 30 * time.Second
	commandTimeout          = 1 * time.Second
)

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = defaultFailureThreshold
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = defaultSuccessThreshold
	}
	if c.ResetAfter <= 0 {
		c.ResetAfter = defaultResetAfter
	}
	return c
}

// Key layout under "circuit_breaker:<service>:".
const (
	keyState     = "state"
	keyFailures  = "failures"
	keySuccesses = "successes"
	keyOpenedAt  = "opened_at"
)

var (
	// allowScript admits a request, moving Open to HalfOpen once the reset
	// window has elapsed.
	// KEYS: state, opened_at, successes  ARGV: now (unix), reset window (seconds)
	allowScript = redis.NewScript(`
		local state = tonumber(redis.call('GET', KEYS[1]) or '0')
		if state == 1 then
			local openedAt = tonumber(redis.call('GET', KEYS[2]) or '0')
			if tonumber(ARGV[1]) - openedAt >= tonumber(ARGV[2]) then
				redis.call('SET', KEYS[1], 2)
				redis.call('SET', KEYS[3], 0)
				return 1
			end
			return 0
		end
		return 1
	`)

	// successScript resets the failure count and closes the breaker after
	// enough HalfOpen probes succeed.
	// KEYS: state, failures, successes  ARGV: success threshold
	successScript = redis.NewScript(`
		local state = tonumber(redis.call('GET', KEYS[1]) or '0')
		redis.call('SET', KEYS[2], 0)
		if state == 2 then
			local n = redis.call('INCR', KEYS[3])
			if n >= tonumber(ARGV[1]) then
				redis.call('SET', KEYS[1], 0)
				redis.call('SET', KEYS[3], 0)
				return 1
			end
		end
		return 0
	`)

	// failureScript opens the breaker when Closed crosses the failure
	// threshold, or on any HalfOpen failure.
	// KEYS: state, failures, opened_at, successes  ARGV: failure threshold, now (unix)
	failureScript = redis.NewScript(`
		local state = tonumber(redis.call('GET', KEYS[1]) or '0')
		local failures = redis.call('INCR', KEYS[2])
		if state == 2 or (state == 0 and failures >= tonumber(ARGV[1])) then
			redis.call('SET', KEYS[1], 1)
			redis.call('SET', KEYS[3], ARGV[2])
			redis.call('SET', KEYS[4], 0)
			return 1
		end
		return 0
	`)
)

// CircuitBreaker shares breaker state for one upstream service through Redis.
// A nil *CircuitBreaker is valid and admits everything.
type CircuitBreaker struct {
	redisClient *redis.Client
	serviceName string
	config      Config
	keyPrefix   string
}

// New creates a breaker for the named service.
func New(redisClient *redis.Client, serviceName string, config Config) *CircuitBreaker {
	return &CircuitBreaker{
		redisClient: redisClient,
		serviceName: serviceName,
		config:      config.withDefaults(),
		keyPrefix:   "circuit_breaker:" + serviceName + ":",
	}
}

func (cb *CircuitBreaker) key(suffix string) string {
	return cb.keyPrefix + suffix
}

// Allow reports whether a request may proceed. Redis errors fail open: a
// broken breaker store must not take the gateway down with it.
func (cb *CircuitBreaker) Allow(ctx context.Context) error {
	if cb == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	res, err := allowScript.Run(ctx, cb.redisClient,
		[]string{cb.key(keyState), cb.key(keyOpenedAt), cb.key(keySuccesses)},
		time.Now().Unix(), int(cb.config.ResetAfter.Seconds()),
	).Int()
	if err != nil {
		fiberlog.Warnf("Circuit breaker %s: redis error, failing open: %v", cb.serviceName, err)
		return nil
	}

	if res == 0 {
		return models.NewCircuitBreakerError(cb.serviceName)
	}
	return nil
}

// RecordSuccess records a successful upstream call.
func (cb *CircuitBreaker) RecordSuccess(ctx context.Context) {
	if cb == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	res, err := successScript.Run(ctx, cb.redisClient,
		[]string{cb.key(keyState), cb.key(keyFailures), cb.key(keySuccesses)},
		cb.config.SuccessThreshold,
	).Int()
	if err != nil {
		fiberlog.Warnf("Circuit breaker %s: failed to record success: %v", cb.serviceName, err)
		return
	}
	if res == 1 {
		fiberlog.Infof("Circuit breaker %s: closed after successful probes", cb.serviceName)
	}
}

// RecordFailure records a failed upstream call.
func (cb *CircuitBreaker) RecordFailure(ctx context.Context) {
	if cb == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	res, err := failureScript.Run(ctx, cb.redisClient,
		[]string{cb.key(keyState), cb.key(keyFailures), cb.key(keyOpenedAt), cb.key(keySuccesses)},
		cb.config.FailureThreshold, time.Now().Unix(),
	).Int()
	if err != nil {
		fiberlog.Warnf("Circuit breaker %s: failed to record failure: %v", cb.serviceName, err)
		return
	}
	if res == 1 {
		fiberlog.Warnf("Circuit breaker %s: opened", cb.serviceName)
	}
}

// CurrentState reads the shared state, defaulting to Closed on errors.
func (cb *CircuitBreaker) CurrentState(ctx context.Context) State {
	if cb == nil {
		return Closed
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	val, err := cb.redisClient.Get(ctx, cb.key(keyState)).Int()
	if err != nil {
		return Closed
	}
	return State(val)
}

package session

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/singleflight"

	"github.com/fenwick/fustream/errs"
	"github.com/fenwick/fustream/internal/observability"
	"github.com/fenwick/fustream/internal/telemetry"
)

// Config tunes the token lifecycle.
type Config struct {
	// Validity is the venue-side lifetime of a listen key.
	Validity time.Duration
	// RenewFraction of Validity at which the keep-alive is issued.
	RenewFraction float64
	// RenewRetries bounds keep-alive attempts before the token degrades.
	RenewRetries uint
	// RetryInitialInterval seeds the backoff between failed attempts.
	RetryInitialInterval time.Duration
}

// Manager owns the listen-key token. Concurrent Acquire calls share one
// in-flight request; a background Run loop renews the token and degrades
// it to invalid when renewal keeps failing.
type Manager struct {
	api     API
	cfg     Config
	metrics *telemetry.Metrics

	// onExpired fires once per degradation, outside the manager lock.
	onExpired func(error)

	mu      sync.Mutex
	token   string
	valid   bool
	renewAt time.Time

	renewCh chan struct{}
	sf      singleflight.Group
}

// NewManager builds a Manager around the given REST boundary.
func NewManager(api API, cfg Config, metrics *telemetry.Metrics, onExpired func(error)) *Manager {
	if cfg.RenewFraction <= 0 || cfg.RenewFraction >= 1 {
		cfg.RenewFraction = 0.5
	}
	if cfg.Validity <= 0 {
		cfg.Validity = 60 * time.Minute
	}
	if cfg.RenewRetries == 0 {
		cfg.RenewRetries = 3
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = time.Second
	}
	return &Manager{
		api:       api,
		cfg:       cfg,
		metrics:   metrics,
		onExpired: onExpired,
		renewCh:   make(chan struct{}, 1),
	}
}

func (m *Manager) renewAfter() time.Duration {
	return time.Duration(float64(m.cfg.Validity) * m.cfg.RenewFraction)
}

// Acquire returns a valid token, creating one if the cached token is
// missing or degraded. Concurrent callers collapse onto one request.
func (m *Manager) Acquire(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.valid && m.token != "" {
		token := m.token
		m.mu.Unlock()
		return token, nil
	}
	m.mu.Unlock()

	v, err, _ := m.sf.Do("acquire", func() (any, error) {
		m.mu.Lock()
		if m.valid && m.token != "" {
			token := m.token
			m.mu.Unlock()
			return token, nil
		}
		m.mu.Unlock()

		token, err := m.api.Create(ctx)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.token = token
		m.valid = true
		m.renewAt = time.Now().Add(m.renewAfter())
		m.mu.Unlock()

		select {
		case m.renewCh <- struct{}{}:
		default:
		}
		observability.Log().Info("session token acquired")
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Token returns the cached token and whether it is currently valid.
func (m *Manager) Token() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.valid && m.token != ""
}

// Invalidate degrades the cached token so the next Acquire creates a
// fresh one. Used when the venue reports the key expired.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.valid = false
	m.mu.Unlock()
}

// Run drives the renewal loop until ctx is done. It sleeps until the
// next renewal point, retries the keep-alive with exponential backoff up
// to the configured bound, and degrades the token on exhaustion.
func (m *Manager) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		m.mu.Lock()
		hasToken := m.valid && m.token != ""
		wait := time.Until(m.renewAt)
		m.mu.Unlock()

		if !hasToken {
			select {
			case <-ctx.Done():
				return
			case <-m.renewCh:
				continue
			}
		}

		if wait > 0 {
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-m.renewCh:
				timer.Stop()
				continue
			case <-timer.C:
			}
		}

		m.renewOnce(ctx)
		if ctx.Err() != nil {
			return
		}
	}
}

func (m *Manager) renewOnce(ctx context.Context) {
	m.mu.Lock()
	token := m.token
	valid := m.valid
	m.mu.Unlock()
	if !valid || token == "" {
		return
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.cfg.RetryInitialInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, m.api.KeepAlive(ctx, token)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(m.cfg.RenewRetries))

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.metrics.RecordTokenRenewal(ctx, "failed")
		m.mu.Lock()
		m.valid = false
		m.mu.Unlock()
		observability.Log().Error("session token renewal exhausted, token degraded",
			observability.Err(err))
		if m.onExpired != nil {
			m.onExpired(errs.New(errs.CodeTokenExpired,
				errs.WithMessage("keep-alive retries exhausted"),
				errs.WithCause(err)))
		}
		return
	}

	m.metrics.RecordTokenRenewal(ctx, "ok")
	m.mu.Lock()
	m.renewAt = time.Now().Add(m.renewAfter())
	m.mu.Unlock()
	observability.Log().Debug("session token renewed")
}

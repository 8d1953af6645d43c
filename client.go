// Package fustream is a long-lived client for the Binance USD-M futures
// websocket feed. Consumers declare logical streams, call Start, and
// drain a single ordered channel of typed events; reconnection,
// resubscription, and listen-key renewal happen behind the scenes.
package fustream

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/fenwick/fustream/config"
	"github.com/fenwick/fustream/errs"
	"github.com/fenwick/fustream/events"
	"github.com/fenwick/fustream/internal/conn"
	"github.com/fenwick/fustream/internal/dispatch"
	"github.com/fenwick/fustream/internal/observability"
	"github.com/fenwick/fustream/internal/queue"
	"github.com/fenwick/fustream/internal/session"
	"github.com/fenwick/fustream/internal/telemetry"
	"github.com/fenwick/fustream/streams"
)

// SetLogger routes the client's structured logs to l. Passing nil
// restores the no-op default.
func SetLogger(l *slog.Logger) {
	if l == nil {
		observability.SetLogger(nil)
		return
	}
	observability.SetLogger(observability.SlogLogger{L: l})
}

// State mirrors the connection supervisor's state for observation.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateSubscribing  State = "subscribing"
	StateActive       State = "active"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

// Client is the feed client. Construct with New, declare streams with
// Subscribe, then Start and drain Events.
type Client struct {
	cfg       config.Config
	set       *streams.Set
	metrics   *telemetry.Metrics
	transport conn.Transport

	session *session.Manager
	sup     *conn.Supervisor
	q       *queue.Queue[events.Event]
	out     chan events.Event

	started atomic.Bool
	running atomic.Bool
	closed  atomic.Bool
	cancel  context.CancelFunc
	wg      conc.WaitGroup

	closeOnce sync.Once
}

// New validates cfg and builds a Client. Credentials select the
// authenticated user-data session; without them the client serves
// market streams only.
func New(cfg config.Config) (*Client, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:       cfg,
		set:       streams.NewSet(),
		transport: conn.WSTransport{},
		out:       make(chan events.Event),
	}
	c.q = queue.New[events.Event](256, cfg.QueueSoftCap)
	c.metrics = telemetry.New(string(cfg.Endpoint), c.q.Len)

	if cfg.Credentials.Configured() {
		rest := session.NewREST(cfg.ListenKeyEndpoint(), cfg.Credentials.APIKey, cfg.HTTPTimeout)
		c.session = session.NewManager(rest, session.Config{
			Validity:             cfg.TokenValidity,
			RenewFraction:        cfg.TokenRenewFraction,
			RenewRetries:         cfg.TokenRenewRetries,
			RetryInitialInterval: cfg.ReconnectInitialInterval,
		}, c.metrics, func(err error) {
			c.push(events.Event{
				Type:       events.TypeTokenExpired,
				ReceivedAt: time.Now(),
				Err:        err,
			})
		})
	}
	return c, nil
}

// Subscribe adds streams to the desired set. Before Start the set is
// simply recorded; on a live connection the new streams are subscribed
// incrementally. Duplicates are no-ops either way.
func (c *Client) Subscribe(ctx context.Context, specs ...streams.Spec) error {
	fresh, err := c.mutateSet(specs, true)
	if err != nil {
		return err
	}
	if c.running.Load() && len(fresh) > 0 {
		return c.sup.Control(ctx, "SUBSCRIBE", fresh)
	}
	return nil
}

// Unsubscribe removes streams from the desired set and, on a live
// connection, unsubscribes them from the venue.
func (c *Client) Unsubscribe(ctx context.Context, specs ...streams.Spec) error {
	removed, err := c.mutateSet(specs, false)
	if err != nil {
		return err
	}
	if c.running.Load() && len(removed) > 0 {
		return c.sup.Control(ctx, "UNSUBSCRIBE", removed)
	}
	return nil
}

func (c *Client) mutateSet(specs []streams.Spec, add bool) ([]string, error) {
	for _, spec := range specs {
		if !spec.Valid() {
			return nil, errs.New(errs.CodeInvalid, errs.WithMessage("invalid stream spec"))
		}
	}
	changed := make([]string, 0, len(specs))
	for _, spec := range specs {
		if c.set.Contains(spec) != add {
			changed = append(changed, spec.Name())
		}
	}
	if add {
		c.set.Add(specs...)
	} else {
		c.set.Remove(specs...)
	}
	return changed, nil
}

// Streams returns the current desired set in subscription order.
func (c *Client) Streams() []streams.Spec {
	return c.set.Snapshot()
}

// Start brings the client up. For authenticated sessions the first
// token acquisition happens synchronously, so credential problems fail
// Start instead of surfacing later as events. The connection itself is
// established in the background; ctx cancellation stops the client the
// same way Close does.
func (c *Client) Start(ctx context.Context) error {
	if c.closed.Load() {
		return errs.New(errs.CodeInvalid, errs.WithMessage("client is closed"))
	}
	if !c.started.CompareAndSwap(false, true) {
		return errs.New(errs.CodeInvalid, errs.WithMessage("client already started"))
	}

	if c.session != nil {
		if _, err := c.session.Acquire(ctx); err != nil {
			c.started.Store(false)
			return err
		}
	} else if c.set.Len() == 0 {
		c.started.Store(false)
		return errs.New(errs.CodeInvalid,
			errs.WithMessage("no streams subscribed and no credentials configured"))
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.sup = conn.NewSupervisor(conn.Options{
		URL:             c.connectURL,
		Transport:       c.transport,
		Set:             c.set,
		Reconnect:       c.cfg.ShouldReconnect(),
		InitialBackoff:  c.cfg.ReconnectInitialInterval,
		MaxBackoff:      c.cfg.ReconnectMaxInterval,
		ReadIdleTimeout: c.cfg.ReadIdleTimeout,
		Emit:            c.handleEvent,
		Decoder:         &dispatch.Decoder{Metrics: c.metrics},
		Metrics:         c.metrics,
	})

	c.wg.Go(func() {
		c.sup.Run(runCtx)
		c.q.Close()
	})
	if c.session != nil {
		c.wg.Go(func() {
			c.session.Run(runCtx)
		})
	}
	c.wg.Go(func() {
		c.pump(runCtx)
	})
	c.running.Store(true)

	observability.Log().Info("client started",
		observability.String("endpoint", string(c.cfg.Endpoint)),
		observability.Int("streams", c.set.Len()))
	return nil
}

// connectURL anchors authenticated sessions at the listen key and
// unauthenticated ones at the first subscribed stream.
func (c *Client) connectURL(ctx context.Context) (string, error) {
	base := c.cfg.WebsocketBase()
	if c.session != nil {
		token, err := c.session.Acquire(ctx)
		if err != nil {
			return "", err
		}
		return base + "/ws/" + token, nil
	}
	names := c.set.Names()
	if len(names) == 0 {
		return "", errs.New(errs.CodeInvalid, errs.WithMessage("no streams to anchor connection"))
	}
	return base + "/ws/" + names[0], nil
}

func (c *Client) handleEvent(ev events.Event) {
	if ev.Type == events.TypeListenKeyExpired && c.session != nil {
		c.session.Invalidate()
	}
	c.push(ev)
}

func (c *Client) push(ev events.Event) {
	c.q.Push(ev)
}

// pump bridges the internal queue to the consumer channel. The channel
// closes when the queue drains after a terminal drop or Close.
func (c *Client) pump(ctx context.Context) {
	defer close(c.out)
	for {
		ev, ok := c.q.Pop()
		if !ok {
			return
		}
		select {
		case c.out <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// Events returns the consumer channel. Events arrive in dispatch order;
// the channel closes after Close or a non-resilient disconnect.
func (c *Client) Events() <-chan events.Event {
	return c.out
}

// State reports the connection supervisor's current state.
func (c *Client) State() State {
	if c.sup == nil {
		return StateDisconnected
	}
	return State(c.sup.State().String())
}

// QueueStats describes the internal event queue.
type QueueStats struct {
	Depth    int
	MaxDepth int
	Pushed   int64
	Popped   int64
}

// QueueStats exposes internal queue counters for monitoring.
func (c *Client) QueueStats() QueueStats {
	s := c.q.Stats()
	return QueueStats{
		Depth:    s.Depth,
		MaxDepth: s.MaxDepth,
		Pushed:   s.Pushed,
		Popped:   s.Popped,
	}
}

// Close stops the client and waits for its goroutines. Safe to call
// multiple times and before Start.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if c.cancel != nil {
			c.cancel()
		}
		if c.started.Load() {
			c.wg.Wait()
		}
		observability.Log().Info("client closed")
	})
}

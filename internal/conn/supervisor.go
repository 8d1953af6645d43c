package conn

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/fenwick/fustream/errs"
	"github.com/fenwick/fustream/events"
	"github.com/fenwick/fustream/internal/dispatch"
	"github.com/fenwick/fustream/internal/observability"
	"github.com/fenwick/fustream/internal/telemetry"
	"github.com/fenwick/fustream/streams"
)

const (
	// The venue caps control messages at 5 per second per connection.
	controlInterval = 250 * time.Millisecond
	// Keep subscribe payloads modest; large sets go out in chunks.
	maxStreamsPerRequest = 100

	writeTimeout = 5 * time.Second
	dialTimeout  = 10 * time.Second
)

// Options configures a Supervisor.
type Options struct {
	// URL resolves the connect URL for each attempt. For authenticated
	// sessions this acquires the listen key, so it can fail and is
	// retried under the same backoff as dialing.
	URL func(ctx context.Context) (string, error)

	Transport Transport
	Set       *streams.Set

	// Reconnect selects resilience. When false, the first connection
	// drop is terminal: one Disconnected event, then the loop exits.
	Reconnect      bool
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// ReadIdleTimeout is the silent-drop watchdog. A connection that
	// produces no frame within the window is treated as dead.
	ReadIdleTimeout time.Duration

	Emit    func(events.Event)
	Decoder *dispatch.Decoder
	Metrics *telemetry.Metrics
}

// Supervisor runs the connection state machine. All state transitions
// happen on the Run goroutine.
type Supervisor struct {
	opts  Options
	state atomic.Int32
	msgID atomic.Uint64

	connMu sync.RWMutex
	conn   Conn

	limiter *rate.Limiter
}

type controlRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     uint64   `json:"id"`
}

// NewSupervisor builds a supervisor; Run must be called to start it.
func NewSupervisor(opts Options) *Supervisor {
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	if opts.ReadIdleTimeout <= 0 {
		opts.ReadIdleTimeout = 4 * time.Minute
	}
	return &Supervisor{
		opts:    opts,
		limiter: rate.NewLimiter(rate.Every(controlInterval), 1),
	}
}

// State returns the current connection state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

func (s *Supervisor) setState(next State) {
	prev := State(s.state.Swap(int32(next)))
	if prev != next {
		observability.Log().Debug("connection state changed",
			observability.String("from", prev.String()),
			observability.String("to", next.String()))
	}
}

// Run drives connect, subscribe, read, and reconnect until ctx is done
// or a non-resilient drop occurs. Either way it leaves the state at
// Closed.
func (s *Supervisor) Run(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.opts.InitialBackoff
	bo.MaxInterval = s.opts.MaxBackoff

	for {
		if ctx.Err() != nil {
			s.setState(StateClosed)
			return
		}

		dropErr := s.runOnce(ctx, bo)
		if ctx.Err() != nil {
			s.setState(StateClosed)
			return
		}
		if dropErr != nil && !s.opts.Reconnect {
			s.setState(StateClosed)
			s.emit(events.Event{
				Type:       events.TypeDisconnected,
				ReceivedAt: time.Now(),
				Err:        dropErr,
			})
			return
		}

		s.setState(StateReconnecting)
		s.opts.Metrics.RecordReconnect(ctx, "retry")
		wait := bo.NextBackOff()
		observability.Log().Info("connection dropped, reconnecting",
			observability.Err(dropErr),
			observability.String("backoff", wait.String()))
		select {
		case <-ctx.Done():
			s.setState(StateClosed)
			return
		case <-time.After(wait):
		}
	}
}

// runOnce performs one connect/subscribe/read cycle and returns the
// error that ended it.
func (s *Supervisor) runOnce(ctx context.Context, bo *backoff.ExponentialBackOff) error {
	s.setState(StateConnecting)
	url, err := s.opts.URL(ctx)
	if err != nil {
		s.emitError(err)
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	conn, err := s.opts.Transport.Dial(dialCtx, url)
	cancel()
	if err != nil {
		return errs.New(errs.CodeNetwork, errs.WithMessage("dial"), errs.WithCause(err))
	}

	connID := uuid.NewString()
	observability.Log().Info("connected",
		observability.String("conn_id", connID))

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	defer func() {
		s.connMu.Lock()
		s.conn = nil
		s.connMu.Unlock()
		_ = conn.Close()
	}()

	s.setState(StateSubscribing)
	if err := s.subscribeAll(ctx, conn); err != nil {
		return err
	}
	bo.Reset()

	s.setState(StateActive)
	return s.readLoop(ctx, conn)
}

// subscribeAll resends the full desired set on the fresh connection, in
// snapshot order, chunked and paced to the venue's control budget.
func (s *Supervisor) subscribeAll(ctx context.Context, conn Conn) error {
	names := s.opts.Set.Names()
	if len(names) == 0 {
		return nil
	}
	return s.sendControl(ctx, conn, "SUBSCRIBE", names)
}

// Control sends a SUBSCRIBE or UNSUBSCRIBE for names on the live
// connection. When no connection is up this is a no-op: the desired set
// is replayed in full on the next subscribe pass.
func (s *Supervisor) Control(ctx context.Context, method string, names []string) error {
	if len(names) == 0 {
		return nil
	}
	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()
	if conn == nil {
		return nil
	}
	return s.sendControl(ctx, conn, method, names)
}

func (s *Supervisor) sendControl(ctx context.Context, conn Conn, method string, names []string) error {
	for _, chunk := range chunkNames(names, maxStreamsPerRequest) {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		req := controlRequest{
			Method: method,
			Params: chunk,
			ID:     s.msgID.Add(1),
		}
		data, err := json.Marshal(req)
		if err != nil {
			return errs.New(errs.CodeInvalid, errs.WithMessage("marshal "+method), errs.WithCause(err))
		}
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		err = conn.Write(writeCtx, data)
		cancel()
		if err != nil {
			return errs.New(errs.CodeNetwork, errs.WithMessage("write "+method), errs.WithCause(err))
		}
		s.opts.Metrics.RecordControl(ctx, 1)
		observability.Log().Debug("control message sent",
			observability.String("method", method),
			observability.Int("streams", len(chunk)))
	}
	return nil
}

// readLoop reads frames until the connection dies or the watchdog trips.
// Every frame becomes exactly one emitted event, in arrival order.
func (s *Supervisor) readLoop(ctx context.Context, conn Conn) error {
	for {
		readCtx, cancel := context.WithTimeout(ctx, s.opts.ReadIdleTimeout)
		data, err := conn.Read(readCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return errs.New(errs.CodeNetwork,
					errs.WithMessage("connection silent beyond idle window"))
			}
			return errs.New(errs.CodeNetwork, errs.WithMessage("read"), errs.WithCause(err))
		}

		s.opts.Metrics.RecordFrame(ctx, len(data))
		ev := s.opts.Decoder.Decode(data, time.Now())
		s.emit(ev)
		s.opts.Metrics.RecordEvent(ctx, string(ev.Type), ev.Stream)
	}
}

func chunkNames(names []string, size int) [][]string {
	if len(names) == 0 {
		return nil
	}
	if size <= 0 || len(names) <= size {
		snapshot := make([]string, len(names))
		copy(snapshot, names)
		return [][]string{snapshot}
	}
	chunks := make([][]string, 0, (len(names)+size-1)/size)
	for start := 0; start < len(names); start += size {
		end := start + size
		if end > len(names) {
			end = len(names)
		}
		chunk := make([]string, end-start)
		copy(chunk, names[start:end])
		chunks = append(chunks, chunk)
	}
	return chunks
}

func (s *Supervisor) emit(ev events.Event) {
	if s.opts.Emit != nil {
		s.opts.Emit(ev)
	}
}

func (s *Supervisor) emitError(err error) {
	s.emit(events.Event{
		Type:       events.TypeError,
		ReceivedAt: time.Now(),
		Err:        err,
	})
}

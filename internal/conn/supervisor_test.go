package conn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/fenwick/fustream/events"
	"github.com/fenwick/fustream/internal/dispatch"
	"github.com/fenwick/fustream/streams"
)

type fakeConn struct {
	mu     sync.Mutex
	writes [][]byte
	frames chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, errors.New("connection reset")
	case frame, ok := <-c.frames:
		if !ok {
			return nil, errors.New("connection reset")
		}
		return frame, nil
	}
}

func (c *fakeConn) Write(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) sentRequests(t *testing.T) []controlRequest {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]controlRequest, 0, len(c.writes))
	for _, raw := range c.writes {
		var req controlRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			t.Fatalf("unparseable control frame %q: %v", raw, err)
		}
		out = append(out, req)
	}
	return out
}

type fakeTransport struct {
	mu    sync.Mutex
	conns []*fakeConn
	ready chan *fakeConn
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{ready: make(chan *fakeConn, 16)}
}

func (tr *fakeTransport) Dial(ctx context.Context, url string) (Conn, error) {
	conn := newFakeConn()
	tr.mu.Lock()
	tr.conns = append(tr.conns, conn)
	tr.mu.Unlock()
	tr.ready <- conn
	return conn, nil
}

func (tr *fakeTransport) await(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case conn := <-tr.ready:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("no connection dialed")
		return nil
	}
}

type gatedConn struct {
	*fakeConn
	writeGate chan struct{}
}

func (c *gatedConn) Write(ctx context.Context, data []byte) error {
	select {
	case <-c.writeGate:
	case <-ctx.Done():
		return ctx.Err()
	}
	return c.fakeConn.Write(ctx, data)
}

// gatedTransport blocks Dial and the first Write of each connection until
// the test releases them, pinning the supervisor in the corresponding state.
type gatedTransport struct {
	inner     *fakeTransport
	dialGate  chan struct{}
	writeGate chan struct{}
}

func newGatedTransport() *gatedTransport {
	return &gatedTransport{
		inner:     newFakeTransport(),
		dialGate:  make(chan struct{}),
		writeGate: make(chan struct{}),
	}
}

func (tr *gatedTransport) Dial(ctx context.Context, url string) (Conn, error) {
	select {
	case <-tr.dialGate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	c, err := tr.inner.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	return &gatedConn{fakeConn: c.(*fakeConn), writeGate: tr.writeGate}, nil
}

func collector() (func(events.Event), *[]events.Event, *sync.Mutex) {
	var mu sync.Mutex
	var got []events.Event
	emit := func(ev events.Event) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	}
	return emit, &got, &mu
}

func testOptions(tr Transport, set *streams.Set, emit func(events.Event)) Options {
	return Options{
		URL:             func(context.Context) (string, error) { return "ws://test/ws/anchor", nil },
		Transport:       tr,
		Set:             set,
		Reconnect:       true,
		InitialBackoff:  time.Millisecond,
		MaxBackoff:      5 * time.Millisecond,
		ReadIdleTimeout: time.Second,
		Emit:            emit,
		Decoder:         &dispatch.Decoder{},
	}
}

func TestSubscribesSnapshotOnConnect(t *testing.T) {
	set := streams.NewSet()
	set.Add(streams.BookTicker("btcusdt"), streams.AggTrade("ethusdt"), streams.AllTickers())

	tr := newFakeTransport()
	emit, _, _ := collector()
	sup := NewSupervisor(testOptions(tr, set, emit))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { defer close(done); sup.Run(ctx) }()

	conn := tr.await(t)
	waitFor(t, func() bool { return len(conn.sentRequests(t)) == 1 })

	reqs := conn.sentRequests(t)
	if reqs[0].Method != "SUBSCRIBE" {
		t.Fatalf("method = %q", reqs[0].Method)
	}
	want := []string{"btcusdt@bookTicker", "ethusdt@aggTrade", "!ticker@arr"}
	if fmt.Sprint(reqs[0].Params) != fmt.Sprint(want) {
		t.Fatalf("params = %v, want %v", reqs[0].Params, want)
	}
	waitFor(t, func() bool { return sup.State() == StateActive })
	cancel()
	<-done
	if sup.State() != StateClosed {
		t.Fatalf("final state = %v", sup.State())
	}
}

func TestEmitsDecodedEventsInOrder(t *testing.T) {
	set := streams.NewSet()
	set.Add(streams.BookTicker("btcusdt"))

	tr := newFakeTransport()
	emit, got, mu := collector()
	sup := NewSupervisor(testOptions(tr, set, emit))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	conn := tr.await(t)
	conn.frames <- []byte(`{"result":null,"id":1}`)
	conn.frames <- []byte(`{"e":"bookTicker","s":"BTCUSDT","u":1,"b":"1","B":"2","a":"3","A":"4","E":5,"T":5}`)
	conn.frames <- []byte(`{"e":"aggTrade","s":"BTCUSDT","a":9,"p":"10","q":"1","f":1,"l":2,"T":6,"E":6,"m":true}`)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(*got) >= 3
	})
	mu.Lock()
	defer mu.Unlock()
	wantTypes := []events.Type{events.TypeSubscribeAck, events.TypeBookTicker, events.TypeAggTrade}
	for i, want := range wantTypes {
		if (*got)[i].Type != want {
			t.Fatalf("event[%d] = %q, want %q", i, (*got)[i].Type, want)
		}
	}
}

func TestResubscribesAfterDrop(t *testing.T) {
	set := streams.NewSet()
	set.Add(streams.MarkPrice("btcusdt", streams.MarkPrice1s))

	tr := newFakeTransport()
	emit, _, _ := collector()
	sup := NewSupervisor(testOptions(tr, set, emit))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	first := tr.await(t)
	waitFor(t, func() bool { return len(first.sentRequests(t)) == 1 })
	_ = first.Close()

	second := tr.await(t)
	waitFor(t, func() bool { return len(second.sentRequests(t)) == 1 })
	reqs := second.sentRequests(t)
	if len(reqs[0].Params) != 1 || reqs[0].Params[0] != "btcusdt@markPrice@1s" {
		t.Fatalf("resubscribe params = %v", reqs[0].Params)
	}
	if reqs[0].ID < 2 {
		t.Fatalf("request ids should keep increasing, got %d", reqs[0].ID)
	}
}

func TestReconnectWalksFullStateSequence(t *testing.T) {
	set := streams.NewSet()
	set.Add(streams.BookTicker("btcusdt"))

	tr := newGatedTransport()
	emit, _, _ := collector()
	opts := testOptions(tr, set, emit)
	opts.InitialBackoff = 50 * time.Millisecond
	opts.MaxBackoff = 100 * time.Millisecond
	sup := NewSupervisor(opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	// Dial is gated, so connecting is observable before the first conn.
	waitFor(t, func() bool { return sup.State() == StateConnecting })
	tr.dialGate <- struct{}{}

	// The snapshot subscribe write is gated, holding subscribing.
	waitFor(t, func() bool { return sup.State() == StateSubscribing })
	first := tr.inner.await(t)
	tr.writeGate <- struct{}{}
	waitFor(t, func() bool { return sup.State() == StateActive })

	// Drop: reconnecting through the backoff wait, connecting again at
	// the gated redial, then subscribing and active on the new conn.
	_ = first.Close()
	waitFor(t, func() bool { return sup.State() == StateReconnecting })
	waitFor(t, func() bool { return sup.State() == StateConnecting })
	tr.dialGate <- struct{}{}
	waitFor(t, func() bool { return sup.State() == StateSubscribing })
	tr.inner.await(t)
	tr.writeGate <- struct{}{}
	waitFor(t, func() bool { return sup.State() == StateActive })
}

func TestLargeSnapshotIsChunked(t *testing.T) {
	set := streams.NewSet()
	for i := 0; i < 250; i++ {
		set.Add(streams.BookTicker(fmt.Sprintf("sym%03dusdt", i)))
	}

	tr := newFakeTransport()
	emit, _, _ := collector()
	sup := NewSupervisor(testOptions(tr, set, emit))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	conn := tr.await(t)
	waitFor(t, func() bool { return len(conn.sentRequests(t)) == 3 })

	reqs := conn.sentRequests(t)
	sizes := []int{len(reqs[0].Params), len(reqs[1].Params), len(reqs[2].Params)}
	if sizes[0] != 100 || sizes[1] != 100 || sizes[2] != 50 {
		t.Fatalf("chunk sizes = %v", sizes)
	}
	if !(reqs[0].ID < reqs[1].ID && reqs[1].ID < reqs[2].ID) {
		t.Fatalf("ids not increasing: %d %d %d", reqs[0].ID, reqs[1].ID, reqs[2].ID)
	}
	if reqs[0].Params[0] != "sym000usdt@bookTicker" || reqs[2].Params[49] != "sym249usdt@bookTicker" {
		t.Fatal("snapshot order not preserved across chunks")
	}
}

func TestNonResilientDropIsTerminal(t *testing.T) {
	set := streams.NewSet()
	set.Add(streams.BookTicker("btcusdt"))

	tr := newFakeTransport()
	emit, got, mu := collector()
	opts := testOptions(tr, set, emit)
	opts.Reconnect = false
	sup := NewSupervisor(opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { defer close(done); sup.Run(ctx) }()

	conn := tr.await(t)
	waitFor(t, func() bool { return sup.State() == StateActive })
	_ = conn.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop after non-resilient drop")
	}
	if sup.State() != StateClosed {
		t.Fatalf("state = %v, want closed", sup.State())
	}

	mu.Lock()
	defer mu.Unlock()
	last := (*got)[len(*got)-1]
	if last.Type != events.TypeDisconnected {
		t.Fatalf("last event = %q, want disconnected", last.Type)
	}
	if last.Err == nil {
		t.Fatal("terminal event should carry the drop cause")
	}
}

func TestWatchdogTripsOnSilentConnection(t *testing.T) {
	set := streams.NewSet()
	set.Add(streams.BookTicker("btcusdt"))

	tr := newFakeTransport()
	emit, _, _ := collector()
	opts := testOptions(tr, set, emit)
	opts.ReadIdleTimeout = 30 * time.Millisecond
	sup := NewSupervisor(opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	tr.await(t)
	// No frames arrive; the idle watchdog should force a redial.
	second := tr.await(t)
	if second == nil {
		t.Fatal("watchdog did not trigger reconnect")
	}
}

func TestControlSendsOnLiveConnection(t *testing.T) {
	set := streams.NewSet()
	set.Add(streams.BookTicker("btcusdt"))

	tr := newFakeTransport()
	emit, _, _ := collector()
	sup := NewSupervisor(testOptions(tr, set, emit))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	conn := tr.await(t)
	waitFor(t, func() bool { return sup.State() == StateActive })

	if err := sup.Control(ctx, "UNSUBSCRIBE", []string{"btcusdt@bookTicker"}); err != nil {
		t.Fatalf("control: %v", err)
	}
	waitFor(t, func() bool { return len(conn.sentRequests(t)) == 2 })
	reqs := conn.sentRequests(t)
	if reqs[1].Method != "UNSUBSCRIBE" {
		t.Fatalf("method = %q", reqs[1].Method)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

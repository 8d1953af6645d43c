// Package telemetry records client metrics against the global OTel meter.
// Exporter wiring is left to the embedding application.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "fustream"

var (
	attrEndpoint = attribute.Key("endpoint")
	attrEvent    = attribute.Key("event_type")
	attrStream   = attribute.Key("stream")
	attrReason   = attribute.Key("reason")
)

// Metrics bundles the client's instruments. A nil *Metrics is a valid
// no-op receiver.
type Metrics struct {
	endpoint string

	framesReceived metric.Int64Counter
	frameBytes     metric.Int64Histogram
	eventsEmitted  metric.Int64Counter
	decodeErrors   metric.Int64Counter
	reconnects     metric.Int64Counter
	controlSends   metric.Int64Counter
	tokenRenewals  metric.Int64Counter
	queueDepth     metric.Int64ObservableGauge
}

// New registers the client instruments. depth is sampled by the queue
// gauge callback; it must be safe to call from any goroutine.
func New(endpoint string, depth func() int) *Metrics {
	meter := otel.Meter(meterName)
	m := &Metrics{endpoint: endpoint}

	m.framesReceived, _ = meter.Int64Counter("fustream_ws_frames",
		metric.WithDescription("Frames received on the websocket connection"),
		metric.WithUnit("{frame}"))

	m.frameBytes, _ = meter.Int64Histogram("fustream_ws_frame_bytes",
		metric.WithDescription("Size of received websocket frames"),
		metric.WithUnit("By"))

	m.eventsEmitted, _ = meter.Int64Counter("fustream_events_emitted",
		metric.WithDescription("Typed events delivered to the consumer queue"),
		metric.WithUnit("{event}"))

	m.decodeErrors, _ = meter.Int64Counter("fustream_decode_errors",
		metric.WithDescription("Frames that failed payload decoding"),
		metric.WithUnit("{error}"))

	m.reconnects, _ = meter.Int64Counter("fustream_reconnects",
		metric.WithDescription("Reconnect attempts made by the connection supervisor"),
		metric.WithUnit("{reconnect}"))

	m.controlSends, _ = meter.Int64Counter("fustream_control_messages",
		metric.WithDescription("SUBSCRIBE/UNSUBSCRIBE control messages sent"),
		metric.WithUnit("{message}"))

	m.tokenRenewals, _ = meter.Int64Counter("fustream_token_renewals",
		metric.WithDescription("Session token keep-alive attempts"),
		metric.WithUnit("{renewal}"))

	if depth != nil {
		m.queueDepth, _ = meter.Int64ObservableGauge("fustream_queue_depth",
			metric.WithDescription("Events buffered between dispatcher and consumer"),
			metric.WithUnit("{event}"),
			metric.WithInt64Callback(func(_ context.Context, observer metric.Int64Observer) error {
				observer.Observe(int64(depth()), metric.WithAttributes(attrEndpoint.String(endpoint)))
				return nil
			}))
	}

	return m
}

func (m *Metrics) base() attribute.KeyValue {
	return attrEndpoint.String(m.endpoint)
}

// RecordFrame counts one received frame and its size.
func (m *Metrics) RecordFrame(ctx context.Context, bytes int) {
	if m == nil || m.framesReceived == nil {
		return
	}
	ctx = ensureContext(ctx)
	m.framesReceived.Add(ctx, 1, metric.WithAttributes(m.base()))
	if m.frameBytes != nil && bytes > 0 {
		m.frameBytes.Record(ctx, int64(bytes), metric.WithAttributes(m.base()))
	}
}

// RecordEvent counts one event handed to the consumer queue.
func (m *Metrics) RecordEvent(ctx context.Context, eventType, stream string) {
	if m == nil || m.eventsEmitted == nil {
		return
	}
	attrs := []attribute.KeyValue{m.base(), attrEvent.String(eventType)}
	if stream != "" {
		attrs = append(attrs, attrStream.String(stream))
	}
	m.eventsEmitted.Add(ensureContext(ctx), 1, metric.WithAttributes(attrs...))
}

// RecordDecodeError counts one frame that failed decoding.
func (m *Metrics) RecordDecodeError(ctx context.Context, reason string) {
	if m == nil || m.decodeErrors == nil {
		return
	}
	attrs := []attribute.KeyValue{m.base()}
	if reason != "" {
		attrs = append(attrs, attrReason.String(reason))
	}
	m.decodeErrors.Add(ensureContext(ctx), 1, metric.WithAttributes(attrs...))
}

// RecordReconnect counts one reconnect attempt.
func (m *Metrics) RecordReconnect(ctx context.Context, reason string) {
	if m == nil || m.reconnects == nil {
		return
	}
	attrs := []attribute.KeyValue{m.base()}
	if reason != "" {
		attrs = append(attrs, attrReason.String(reason))
	}
	m.reconnects.Add(ensureContext(ctx), 1, metric.WithAttributes(attrs...))
}

// RecordControl counts control messages sent on the socket.
func (m *Metrics) RecordControl(ctx context.Context, count int) {
	if m == nil || m.controlSends == nil || count <= 0 {
		return
	}
	m.controlSends.Add(ensureContext(ctx), int64(count), metric.WithAttributes(m.base()))
}

// RecordTokenRenewal counts one keep-alive attempt with its result.
func (m *Metrics) RecordTokenRenewal(ctx context.Context, result string) {
	if m == nil || m.tokenRenewals == nil {
		return
	}
	attrs := []attribute.KeyValue{m.base()}
	if result != "" {
		attrs = append(attrs, attrReason.String(result))
	}
	m.tokenRenewals.Add(ensureContext(ctx), 1, metric.WithAttributes(attrs...))
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

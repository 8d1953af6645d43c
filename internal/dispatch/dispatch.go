// Package dispatch classifies and decodes raw feed frames into typed
// events. Frames are handled in three stages: control acknowledgments,
// event-tagged objects, and event-tagged anonymous arrays. Anything else
// is surfaced rather than dropped, either as a decode Error or as an
// Unhandled event carrying the raw frame.
package dispatch

import (
	"bytes"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/fenwick/fustream/errs"
	"github.com/fenwick/fustream/events"
	"github.com/fenwick/fustream/internal/telemetry"
)

// Decoder turns raw frames into events. The zero value is usable; the
// metrics field may be nil.
type Decoder struct {
	Metrics *telemetry.Metrics
}

type envelope struct {
	Event  string               `json:"e"`
	Symbol string               `json:"s"`
	ID     *uint64              `json:"id"`
	Error  *events.ControlError `json:"error"`
}

// Decode maps one frame to exactly one Event. It never returns an error;
// failures become TypeError events so the consumer sees every frame's
// fate in arrival order.
func (d *Decoder) Decode(raw []byte, receivedAt time.Time) events.Event {
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) > 0 && trimmed[0] == '{':
		return d.decodeObject(trimmed, receivedAt)
	case len(trimmed) > 0 && trimmed[0] == '[':
		return d.decodeArray(trimmed, receivedAt)
	default:
		return d.errorEvent(raw, receivedAt, "frame is neither object nor array", nil)
	}
}

func (d *Decoder) decodeObject(raw []byte, receivedAt time.Time) events.Event {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return d.errorEvent(raw, receivedAt, "malformed frame", err)
	}

	if env.Event == "" {
		if env.ID != nil {
			ev := events.Event{
				Type:       events.TypeSubscribeAck,
				ReceivedAt: receivedAt,
				Payload:    events.SubscribeAck{ID: *env.ID, Error: env.Error},
			}
			if env.Error != nil {
				ev.Err = errs.New(errs.CodeUpstream,
					errs.WithMessage("control request rejected: "+env.Error.Message))
			}
			return ev
		}
		return d.unhandled(raw, receivedAt, "")
	}

	payload, ok, err := decodeTagged(events.Type(env.Event), raw)
	if err != nil {
		return d.errorEvent(raw, receivedAt, "decode "+env.Event, err)
	}
	if !ok {
		return d.unhandled(raw, receivedAt, env.Symbol)
	}
	return events.Event{
		Type:       events.Type(env.Event),
		Stream:     strings.ToLower(env.Symbol),
		ReceivedAt: receivedAt,
		Payload:    payload,
	}
}

func (d *Decoder) decodeArray(raw []byte, receivedAt time.Time) events.Event {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return d.errorEvent(raw, receivedAt, "malformed array frame", err)
	}
	if len(items) == 0 {
		return d.unhandled(raw, receivedAt, "")
	}
	var head envelope
	if err := json.Unmarshal(items[0], &head); err != nil || head.Event == "" {
		return d.unhandled(raw, receivedAt, "")
	}

	payload, ok, err := decodeBatch(events.Type(head.Event), raw)
	if err != nil {
		return d.errorEvent(raw, receivedAt, "decode "+head.Event+" batch", err)
	}
	if !ok {
		return d.unhandled(raw, receivedAt, "")
	}
	return events.Event{
		Type:       events.Type(head.Event),
		ReceivedAt: receivedAt,
		Payload:    payload,
	}
}

func decodeTagged(tag events.Type, raw []byte) (any, bool, error) {
	switch tag {
	case events.TypeBookTicker:
		return unmarshal[events.BookTicker](raw)
	case events.TypeAggTrade:
		return unmarshal[events.AggTrade](raw)
	case events.TypeMarkPrice:
		return unmarshal[events.MarkPrice](raw)
	case events.TypeKline:
		return unmarshal[events.Kline](raw)
	case events.TypeContinuousKline:
		return unmarshal[events.ContinuousKline](raw)
	case events.TypeMiniTicker:
		return unmarshal[events.MiniTicker](raw)
	case events.TypeTicker:
		return unmarshal[events.Ticker](raw)
	case events.TypeForceOrder:
		return unmarshal[events.ForceOrder](raw)
	case events.TypeDepthUpdate:
		return unmarshal[events.DepthUpdate](raw)
	case events.TypeCompositeIndex:
		return unmarshal[events.CompositeIndex](raw)
	case events.TypeContractInfo:
		return unmarshal[events.ContractInfo](raw)
	case events.TypeAssetIndex:
		return unmarshal[events.AssetIndex](raw)
	case events.TypeAccountUpdate:
		return unmarshal[events.AccountUpdate](raw)
	case events.TypeOrderUpdate:
		return unmarshal[events.OrderUpdate](raw)
	case events.TypeMarginCall:
		return unmarshal[events.MarginCall](raw)
	case events.TypeAccountConfigUpdate:
		return unmarshal[events.AccountConfigUpdate](raw)
	case events.TypeStrategyUpdate:
		return unmarshal[events.StrategyUpdate](raw)
	case events.TypeGridUpdate:
		return unmarshal[events.GridUpdate](raw)
	case events.TypeConditionalOrderTriggerReject:
		return unmarshal[events.ConditionalOrderTriggerReject](raw)
	case events.TypeListenKeyExpired:
		return unmarshal[events.ListenKeyExpired](raw)
	default:
		return nil, false, nil
	}
}

// decodeBatch handles the all-market "@arr" streams, which deliver one
// anonymous array per frame.
func decodeBatch(tag events.Type, raw []byte) (any, bool, error) {
	switch tag {
	case events.TypeMarkPrice:
		return unmarshal[[]events.MarkPrice](raw)
	case events.TypeMiniTicker:
		return unmarshal[[]events.MiniTicker](raw)
	case events.TypeTicker:
		return unmarshal[[]events.Ticker](raw)
	case events.TypeBookTicker:
		return unmarshal[[]events.BookTicker](raw)
	case events.TypeAssetIndex:
		return unmarshal[[]events.AssetIndex](raw)
	case events.TypeForceOrder:
		return unmarshal[[]events.ForceOrder](raw)
	default:
		return nil, false, nil
	}
}

func unmarshal[T any](raw []byte) (any, bool, error) {
	var payload T
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, true, err
	}
	return payload, true, nil
}

func (d *Decoder) errorEvent(raw []byte, receivedAt time.Time, msg string, cause error) events.Event {
	d.Metrics.RecordDecodeError(nil, msg)
	opts := []errs.Option{errs.WithMessage(msg)}
	if cause != nil {
		opts = append(opts, errs.WithCause(cause))
	}
	return events.Event{
		Type:       events.TypeError,
		ReceivedAt: receivedAt,
		Raw:        append([]byte(nil), raw...),
		Err:        errs.New(errs.CodeDecode, opts...),
	}
}

func (d *Decoder) unhandled(raw []byte, receivedAt time.Time, symbol string) events.Event {
	return events.Event{
		Type:       events.TypeUnhandled,
		Stream:     strings.ToLower(symbol),
		ReceivedAt: receivedAt,
		Raw:        append([]byte(nil), raw...),
	}
}

// Package events defines the typed event union delivered to consumers.
// Every frame the feed produces maps to exactly one Event; unknown
// frames are retained as Unhandled rather than dropped.
package events

import "time"

// Type identifies the payload kind. Market and account values mirror the
// venue's event tags; synthetic values are produced by the client itself.
type Type string

const (
	// Market data events.
	TypeBookTicker      Type = "bookTicker"
	TypeAggTrade        Type = "aggTrade"
	TypeMarkPrice       Type = "markPriceUpdate"
	TypeKline           Type = "kline"
	TypeContinuousKline Type = "continuous_kline"
	TypeMiniTicker      Type = "24hrMiniTicker"
	TypeTicker          Type = "24hrTicker"
	TypeForceOrder      Type = "forceOrder"
	TypeDepthUpdate     Type = "depthUpdate"
	TypeCompositeIndex  Type = "compositeIndex"
	TypeContractInfo    Type = "contractInfo"
	TypeAssetIndex      Type = "assetIndexUpdate"

	// Account (user-data) events.
	TypeAccountUpdate                 Type = "ACCOUNT_UPDATE"
	TypeOrderUpdate                   Type = "ORDER_TRADE_UPDATE"
	TypeMarginCall                    Type = "MARGIN_CALL"
	TypeAccountConfigUpdate           Type = "ACCOUNT_CONFIG_UPDATE"
	TypeStrategyUpdate                Type = "STRATEGY_UPDATE"
	TypeGridUpdate                    Type = "GRID_UPDATE"
	TypeConditionalOrderTriggerReject Type = "CONDITIONAL_ORDER_TRIGGER_REJECT"
	TypeListenKeyExpired              Type = "listenKeyExpired"

	// Synthetic events produced by the client.
	TypeSubscribeAck Type = "subscribe_ack"
	TypeTokenExpired Type = "token_expired"
	TypeError        Type = "error"
	TypeDisconnected Type = "disconnected"
	TypeUnhandled    Type = "unhandled"
)

// Event is a single delivery on the consumer channel.
//
// Payload holds the typed struct for the Type (a slice for batch
// streams); Raw is set for Unhandled and Error events so nothing is
// lost; Err carries the cause on Error, TokenExpired, and Disconnected
// events, and on a SubscribeAck the venue rejected.
type Event struct {
	Type       Type
	Stream     string
	ReceivedAt time.Time
	Payload    any
	Raw        []byte
	Err        error
}

// Synthetic reports whether the event was produced by the client rather
// than decoded from a venue frame.
func (e Event) Synthetic() bool {
	switch e.Type {
	case TypeSubscribeAck, TypeTokenExpired, TypeError, TypeDisconnected, TypeUnhandled:
		return true
	}
	return false
}

// ControlError is the venue's rejection of a control request.
type ControlError struct {
	Code    int64  `json:"code"`
	Message string `json:"msg"`
}

// SubscribeAck is the control-channel response to a SUBSCRIBE or
// UNSUBSCRIBE request. Error is nil on success.
type SubscribeAck struct {
	ID    uint64        `json:"id"`
	Error *ControlError `json:"error"`
}

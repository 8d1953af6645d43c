// Package streams models the logical stream identifiers of the USD-M
// futures feed. A Spec is identified solely by its canonical wire name;
// two Specs with the same name are the same subscription.
package streams

import (
	"fmt"
	"strings"
)

// Spec is a single logical stream. The zero value is invalid; use the
// constructors.
type Spec struct {
	name string
}

// Name returns the canonical wire name, e.g. "btcusdt@bookTicker".
func (s Spec) Name() string { return s.name }

func (s Spec) String() string { return s.name }

// Valid reports whether the Spec was produced by a constructor.
func (s Spec) Valid() bool { return s.name != "" }

// KlineInterval enumerates candlestick intervals.
type KlineInterval string

const (
	Interval1m  KlineInterval = "1m"
	Interval3m  KlineInterval = "3m"
	Interval5m  KlineInterval = "5m"
	Interval15m KlineInterval = "15m"
	Interval30m KlineInterval = "30m"
	Interval1h  KlineInterval = "1h"
	Interval2h  KlineInterval = "2h"
	Interval4h  KlineInterval = "4h"
	Interval6h  KlineInterval = "6h"
	Interval8h  KlineInterval = "8h"
	Interval12h KlineInterval = "12h"
	Interval1d  KlineInterval = "1d"
	Interval3d  KlineInterval = "3d"
	Interval1w  KlineInterval = "1w"
	Interval1M  KlineInterval = "1M"
)

// ContractType enumerates continuous-contract kinds.
type ContractType string

const (
	ContractPerpetual      ContractType = "perpetual"
	ContractCurrentQuarter ContractType = "current_quarter"
	ContractNextQuarter    ContractType = "next_quarter"
)

// MarkPriceSpeed is the mark-price update cadence. The venue default is
// 3s; its suffix is omitted from the wire name.
type MarkPriceSpeed string

const (
	MarkPrice3s MarkPriceSpeed = "3s"
	MarkPrice1s MarkPriceSpeed = "1s"
)

func (s MarkPriceSpeed) suffix() string {
	if s == MarkPrice1s {
		return "@1s"
	}
	return ""
}

// DepthSpeed is the depth update cadence. The venue default is 250ms;
// its suffix is omitted from the wire name.
type DepthSpeed string

const (
	Depth250ms DepthSpeed = "250ms"
	Depth500ms DepthSpeed = "500ms"
	Depth100ms DepthSpeed = "100ms"
)

func (s DepthSpeed) suffix() string {
	switch s {
	case Depth500ms, Depth100ms:
		return "@" + string(s)
	default:
		return ""
	}
}

// DepthLevel is the partial-depth book size. LevelDiff selects the diff
// stream, which carries incremental updates instead of a fixed ladder.
type DepthLevel int

const (
	LevelDiff DepthLevel = 0
	Level5    DepthLevel = 5
	Level10   DepthLevel = 10
	Level20   DepthLevel = 20
)

func symbol(sym string) string {
	return strings.ToLower(strings.TrimSpace(sym))
}

// BookTicker streams best bid/ask updates for one symbol.
func BookTicker(sym string) Spec {
	return Spec{name: symbol(sym) + "@bookTicker"}
}

// AllBookTickers streams best bid/ask updates for every symbol.
func AllBookTickers() Spec {
	return Spec{name: "!bookTicker"}
}

// AggTrade streams aggregated trades for one symbol.
func AggTrade(sym string) Spec {
	return Spec{name: symbol(sym) + "@aggTrade"}
}

// MarkPrice streams mark price and funding rate for one symbol.
func MarkPrice(sym string, speed MarkPriceSpeed) Spec {
	return Spec{name: symbol(sym) + "@markPrice" + speed.suffix()}
}

// AllMarkPrices streams mark prices for every symbol as batch frames.
func AllMarkPrices(speed MarkPriceSpeed) Spec {
	return Spec{name: "!markPrice@arr" + speed.suffix()}
}

// Kline streams candlesticks for one symbol at the given interval.
func Kline(sym string, interval KlineInterval) Spec {
	return Spec{name: fmt.Sprintf("%s@kline_%s", symbol(sym), interval)}
}

// ContinuousKline streams candlesticks for a continuous contract pair.
func ContinuousKline(pair string, contract ContractType, interval KlineInterval) Spec {
	return Spec{name: fmt.Sprintf("%s_%s@continuousKline_%s", symbol(pair), contract, interval)}
}

// MiniTicker streams the rolling 24h mini ticker for one symbol.
func MiniTicker(sym string) Spec {
	return Spec{name: symbol(sym) + "@miniTicker"}
}

// AllMiniTickers streams mini tickers for every symbol as batch frames.
func AllMiniTickers() Spec {
	return Spec{name: "!miniTicker@arr"}
}

// Ticker streams the rolling 24h full ticker for one symbol.
func Ticker(sym string) Spec {
	return Spec{name: symbol(sym) + "@ticker"}
}

// AllTickers streams full tickers for every symbol as batch frames.
func AllTickers() Spec {
	return Spec{name: "!ticker@arr"}
}

// ForceOrder streams liquidation orders for one symbol.
func ForceOrder(sym string) Spec {
	return Spec{name: symbol(sym) + "@forceOrder"}
}

// AllForceOrders streams liquidation orders for every symbol.
func AllForceOrders() Spec {
	return Spec{name: "!forceOrder@arr"}
}

// Depth streams the order book for one symbol. LevelDiff selects the
// incremental diff stream; Level5/10/20 select a partial book ladder.
func Depth(sym string, level DepthLevel, speed DepthSpeed) Spec {
	name := symbol(sym) + "@depth"
	if level != LevelDiff {
		name += fmt.Sprintf("%d", int(level))
	}
	return Spec{name: name + speed.suffix()}
}

// CompositeIndex streams composite index constituents for one symbol.
func CompositeIndex(sym string) Spec {
	return Spec{name: symbol(sym) + "@compositeIndex"}
}

// ContractInfo streams contract bring-online/offline notices.
func ContractInfo() Spec {
	return Spec{name: "!contractInfo"}
}

// AssetIndex streams the multi-asset mode asset index for one symbol.
func AssetIndex(sym string) Spec {
	return Spec{name: symbol(sym) + "@assetIndex"}
}

// AllAssetIndexes streams asset indexes for every symbol as batch frames.
func AllAssetIndexes() Spec {
	return Spec{name: "!assetIndex@arr"}
}

// Raw wraps an already-canonical wire name. It exists for names the
// constructors do not cover yet; the caller owns correctness.
func Raw(name string) Spec {
	return Spec{name: strings.TrimSpace(name)}
}

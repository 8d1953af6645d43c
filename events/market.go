package events

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// PriceLevel is one order book ladder entry, carried on the wire as a
// two-element array of numeric strings.
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

func (l *PriceLevel) UnmarshalJSON(data []byte) error {
	var pair [2]decimal.Decimal
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("price level: %w", err)
	}
	l.Price = pair[0]
	l.Quantity = pair[1]
	return nil
}

func (l PriceLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]decimal.Decimal{l.Price, l.Quantity})
}

// BookTicker is a best bid/ask update.
type BookTicker struct {
	EventTime       int64           `json:"E"`
	TransactionTime int64           `json:"T"`
	Symbol          string          `json:"s"`
	UpdateID        int64           `json:"u"`
	BidPrice        decimal.Decimal `json:"b"`
	BidQuantity     decimal.Decimal `json:"B"`
	AskPrice        decimal.Decimal `json:"a"`
	AskQuantity     decimal.Decimal `json:"A"`
}

// AggTrade is an aggregated trade.
type AggTrade struct {
	EventTime    int64           `json:"E"`
	Symbol       string          `json:"s"`
	AggTradeID   int64           `json:"a"`
	Price        decimal.Decimal `json:"p"`
	Quantity     decimal.Decimal `json:"q"`
	FirstTradeID int64           `json:"f"`
	LastTradeID  int64           `json:"l"`
	TradeTime    int64           `json:"T"`
	BuyerIsMaker bool            `json:"m"`
}

// MarkPrice is a mark price and funding update.
type MarkPrice struct {
	EventTime            int64           `json:"E"`
	Symbol               string          `json:"s"`
	MarkPrice            decimal.Decimal `json:"p"`
	IndexPrice           decimal.Decimal `json:"i"`
	EstimatedSettlePrice decimal.Decimal `json:"P"`
	FundingRate          decimal.Decimal `json:"r"`
	NextFundingTime      int64           `json:"T"`
}

// KlineData is the candlestick body shared by Kline and ContinuousKline.
type KlineData struct {
	StartTime           int64           `json:"t"`
	CloseTime           int64           `json:"T"`
	Symbol              string          `json:"s"`
	Interval            string          `json:"i"`
	FirstTradeID        int64           `json:"f"`
	LastTradeID         int64           `json:"L"`
	Open                decimal.Decimal `json:"o"`
	Close               decimal.Decimal `json:"c"`
	High                decimal.Decimal `json:"h"`
	Low                 decimal.Decimal `json:"l"`
	Volume              decimal.Decimal `json:"v"`
	TradeCount          int64           `json:"n"`
	Closed              bool            `json:"x"`
	QuoteVolume         decimal.Decimal `json:"q"`
	TakerBuyVolume      decimal.Decimal `json:"V"`
	TakerBuyQuoteVolume decimal.Decimal `json:"Q"`
}

// Kline is a per-symbol candlestick update.
type Kline struct {
	EventTime int64     `json:"E"`
	Symbol    string    `json:"s"`
	Kline     KlineData `json:"k"`
}

// ContinuousKline is a continuous-contract candlestick update.
type ContinuousKline struct {
	EventTime    int64     `json:"E"`
	Pair         string    `json:"ps"`
	ContractType string    `json:"ct"`
	Kline        KlineData `json:"k"`
}

// MiniTicker is a rolling 24h mini ticker.
type MiniTicker struct {
	EventTime   int64           `json:"E"`
	Symbol      string          `json:"s"`
	Close       decimal.Decimal `json:"c"`
	Open        decimal.Decimal `json:"o"`
	High        decimal.Decimal `json:"h"`
	Low         decimal.Decimal `json:"l"`
	Volume      decimal.Decimal `json:"v"`
	QuoteVolume decimal.Decimal `json:"q"`
}

// Ticker is a rolling 24h full ticker.
type Ticker struct {
	EventTime          int64           `json:"E"`
	Symbol             string          `json:"s"`
	PriceChange        decimal.Decimal `json:"p"`
	PriceChangePercent decimal.Decimal `json:"P"`
	WeightedAvgPrice   decimal.Decimal `json:"w"`
	LastPrice          decimal.Decimal `json:"c"`
	LastQuantity       decimal.Decimal `json:"Q"`
	Open               decimal.Decimal `json:"o"`
	High               decimal.Decimal `json:"h"`
	Low                decimal.Decimal `json:"l"`
	Volume             decimal.Decimal `json:"v"`
	QuoteVolume        decimal.Decimal `json:"q"`
	StatsOpenTime      int64           `json:"O"`
	StatsCloseTime     int64           `json:"C"`
	FirstTradeID       int64           `json:"F"`
	LastTradeID        int64           `json:"L"`
	TradeCount         int64           `json:"n"`
}

// ForceOrderDetail is the liquidation order body.
type ForceOrderDetail struct {
	Symbol              string          `json:"s"`
	Side                string          `json:"S"`
	OrderType           string          `json:"o"`
	TimeInForce         string          `json:"f"`
	OriginalQuantity    decimal.Decimal `json:"q"`
	Price               decimal.Decimal `json:"p"`
	AveragePrice        decimal.Decimal `json:"ap"`
	OrderStatus         string          `json:"X"`
	LastFilledQuantity  decimal.Decimal `json:"l"`
	AccumulatedQuantity decimal.Decimal `json:"z"`
	TradeTime           int64           `json:"T"`
}

// ForceOrder is a liquidation order event.
type ForceOrder struct {
	EventTime int64            `json:"E"`
	Order     ForceOrderDetail `json:"o"`
}

// DepthUpdate is an order book update, partial or diff.
type DepthUpdate struct {
	EventTime         int64        `json:"E"`
	TransactionTime   int64        `json:"T"`
	Symbol            string       `json:"s"`
	FirstUpdateID     int64        `json:"U"`
	FinalUpdateID     int64        `json:"u"`
	PrevFinalUpdateID int64        `json:"pu"`
	Bids              []PriceLevel `json:"b"`
	Asks              []PriceLevel `json:"a"`
}

// IndexComponent is one constituent of a composite index.
type IndexComponent struct {
	BaseAsset        string          `json:"b"`
	QuoteAsset       string          `json:"q"`
	WeightInQuantity decimal.Decimal `json:"w"`
	WeightInPercent  decimal.Decimal `json:"W"`
	IndexPrice       decimal.Decimal `json:"i"`
}

// CompositeIndex is a composite index update with its constituents.
type CompositeIndex struct {
	EventTime  int64            `json:"E"`
	Symbol     string           `json:"s"`
	Price      decimal.Decimal  `json:"p"`
	Components []IndexComponent `json:"c"`
}

// NotionalBracket is one leverage bracket of a contract.
type NotionalBracket struct {
	Bracket          int             `json:"bs"`
	FloorNotional    decimal.Decimal `json:"bnf"`
	CapNotional      decimal.Decimal `json:"bnc"`
	MaintMarginRatio decimal.Decimal `json:"mmr"`
	Auxiliary        decimal.Decimal `json:"cf"`
	MinLeverage      int             `json:"mi"`
	MaxLeverage      int             `json:"ma"`
}

// ContractInfo is a contract bring-online/offline notice.
type ContractInfo struct {
	EventTime    int64             `json:"E"`
	Symbol       string            `json:"s"`
	Pair         string            `json:"ps"`
	ContractType string            `json:"ct"`
	DeliveryDate int64             `json:"dt"`
	OnboardDate  int64             `json:"ot"`
	Status       string            `json:"cs"`
	Brackets     []NotionalBracket `json:"bks"`
}

// AssetIndex is a multi-assets mode index update.
type AssetIndex struct {
	EventTime             int64           `json:"E"`
	Symbol                string          `json:"s"`
	IndexPrice            decimal.Decimal `json:"i"`
	BidBuffer             decimal.Decimal `json:"b"`
	AskBuffer             decimal.Decimal `json:"a"`
	BidRate               decimal.Decimal `json:"B"`
	AskRate               decimal.Decimal `json:"A"`
	AutoExchangeBidBuffer decimal.Decimal `json:"q"`
	AutoExchangeAskBuffer decimal.Decimal `json:"g"`
	AutoExchangeBidRate   decimal.Decimal `json:"Q"`
	AutoExchangeAskRate   decimal.Decimal `json:"G"`
}

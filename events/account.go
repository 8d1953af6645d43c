package events

import "github.com/shopspring/decimal"

// BalanceUpdate is one balance entry of an ACCOUNT_UPDATE frame.
type BalanceUpdate struct {
	Asset              string          `json:"a"`
	WalletBalance      decimal.Decimal `json:"wb"`
	CrossWalletBalance decimal.Decimal `json:"cw"`
	BalanceChange      decimal.Decimal `json:"bc"`
}

// PositionUpdate is one position entry of an ACCOUNT_UPDATE frame.
type PositionUpdate struct {
	Symbol              string          `json:"s"`
	PositionAmount      decimal.Decimal `json:"pa"`
	EntryPrice          decimal.Decimal `json:"ep"`
	AccumulatedRealized decimal.Decimal `json:"cr"`
	UnrealizedPnL       decimal.Decimal `json:"up"`
	MarginType          string          `json:"mt"`
	IsolatedWallet      decimal.Decimal `json:"iw"`
	PositionSide        string          `json:"ps"`
}

// AccountUpdate reports balance and position changes.
type AccountUpdate struct {
	EventTime       int64 `json:"E"`
	TransactionTime int64 `json:"T"`
	Data            struct {
		Reason    string           `json:"m"`
		Balances  []BalanceUpdate  `json:"B"`
		Positions []PositionUpdate `json:"P"`
	} `json:"a"`
}

// OrderDetail is the order body of an ORDER_TRADE_UPDATE frame.
type OrderDetail struct {
	Symbol               string          `json:"s"`
	ClientOrderID        string          `json:"c"`
	Side                 string          `json:"S"`
	OrderType            string          `json:"o"`
	TimeInForce          string          `json:"f"`
	OriginalQuantity     decimal.Decimal `json:"q"`
	OriginalPrice        decimal.Decimal `json:"p"`
	AveragePrice         decimal.Decimal `json:"ap"`
	StopPrice            decimal.Decimal `json:"sp"`
	ExecutionType        string          `json:"x"`
	OrderStatus          string          `json:"X"`
	OrderID              int64           `json:"i"`
	LastFilledQuantity   decimal.Decimal `json:"l"`
	AccumulatedQuantity  decimal.Decimal `json:"z"`
	LastFilledPrice      decimal.Decimal `json:"L"`
	CommissionAsset      string          `json:"N"`
	Commission           decimal.Decimal `json:"n"`
	TradeTime            int64           `json:"T"`
	TradeID              int64           `json:"t"`
	BidsNotional         decimal.Decimal `json:"b"`
	AsksNotional         decimal.Decimal `json:"a"`
	IsMaker              bool            `json:"m"`
	IsReduceOnly         bool            `json:"R"`
	StopPriceWorkingType string          `json:"wt"`
	OriginalOrderType    string          `json:"ot"`
	PositionSide         string          `json:"ps"`
	ClosePosition        bool            `json:"cp"`
	ActivationPrice      decimal.Decimal `json:"AP"`
	CallbackRate         decimal.Decimal `json:"cr"`
	RealizedProfit       decimal.Decimal `json:"rp"`
}

// OrderUpdate reports an order or trade state change.
type OrderUpdate struct {
	EventTime       int64       `json:"E"`
	TransactionTime int64       `json:"T"`
	Order           OrderDetail `json:"o"`
}

// MarginCallPosition is one at-risk position in a MARGIN_CALL frame.
type MarginCallPosition struct {
	Symbol                  string          `json:"s"`
	PositionSide            string          `json:"ps"`
	PositionAmount          decimal.Decimal `json:"pa"`
	MarginType              string          `json:"mt"`
	IsolatedWallet          decimal.Decimal `json:"iw"`
	MarkPrice               decimal.Decimal `json:"mp"`
	UnrealizedPnL           decimal.Decimal `json:"up"`
	MaintenanceMarginNeeded decimal.Decimal `json:"mm"`
}

// MarginCall warns that positions approach liquidation.
type MarginCall struct {
	EventTime          int64                `json:"E"`
	CrossWalletBalance decimal.Decimal      `json:"cw"`
	Positions          []MarginCallPosition `json:"p"`
}

// AccountConfigUpdate reports leverage or multi-assets mode changes.
type AccountConfigUpdate struct {
	EventTime       int64 `json:"E"`
	TransactionTime int64 `json:"T"`
	LeverageChange  *struct {
		Symbol   string `json:"s"`
		Leverage int    `json:"l"`
	} `json:"ac"`
	MultiAssetsChange *struct {
		MultiAssets bool `json:"j"`
	} `json:"ai"`
}

// StrategyDetail is the strategy body of a STRATEGY_UPDATE frame.
type StrategyDetail struct {
	StrategyID   int64  `json:"si"`
	StrategyType string `json:"st"`
	Status       string `json:"ss"`
	Symbol       string `json:"s"`
	UpdateTime   int64  `json:"ut"`
	OpCode       int64  `json:"c"`
}

// StrategyUpdate reports a trading strategy lifecycle change.
type StrategyUpdate struct {
	EventTime       int64          `json:"E"`
	TransactionTime int64          `json:"T"`
	Strategy        StrategyDetail `json:"su"`
}

// GridDetail is the grid body of a GRID_UPDATE frame.
type GridDetail struct {
	StrategyID            int64           `json:"si"`
	StrategyType          string          `json:"st"`
	Status                string          `json:"ss"`
	Symbol                string          `json:"s"`
	RealizedPnL           decimal.Decimal `json:"r"`
	UnmatchedAveragePrice decimal.Decimal `json:"up"`
	UnmatchedQuantity     decimal.Decimal `json:"uq"`
	UnmatchedFee          decimal.Decimal `json:"uf"`
	MatchedPnL            decimal.Decimal `json:"mp"`
	UpdateTime            int64           `json:"ut"`
}

// GridUpdate reports grid strategy position and PnL changes.
type GridUpdate struct {
	EventTime       int64      `json:"E"`
	TransactionTime int64      `json:"T"`
	Grid            GridDetail `json:"gu"`
}

// OrderRejectDetail is the rejection body of a conditional order
// trigger reject frame.
type OrderRejectDetail struct {
	Symbol  string `json:"s"`
	OrderID int64  `json:"i"`
	Reason  string `json:"r"`
}

// ConditionalOrderTriggerReject reports a conditional order whose
// trigger the venue refused to execute.
type ConditionalOrderTriggerReject struct {
	EventTime       int64             `json:"E"`
	MessageSendTime int64             `json:"T"`
	Reject          OrderRejectDetail `json:"or"`
}

// ListenKeyExpired means the venue invalidated the session token; the
// client also raises a synthetic TokenExpired when renewal degrades.
type ListenKeyExpired struct {
	EventTime int64 `json:"E"`
}

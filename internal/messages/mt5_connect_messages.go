package messages

import (
	"encoding/json"
	"time"
)

type Platform string

const (
	MT5 Platform = "mt5"
)

type MessageStatus string

const (
	StatusSuccess MessageStatus = "success"
	StatusFailure MessageStatus = "failure"
	StatusPending MessageStatus = "pending"
)

type MessageType string

const (
	TypeConnect        MessageType = "connect"
	TypeAccountInfo    MessageType = "account_info"
	TypeAccountSymbols MessageType = "account_symbols"
	TypeHistorical     MessageType = "historical_data"
	TypePlaceOrder     MessageType = "place_order"
	TypeClosePosition  MessageType = "close_position"
	TypeSymbolInfo     MessageType = "symbol_info"
	TypeDailyReport    MessageType = "daily_report"
	TypeError          MessageType = "error"
	TypeDisconnect     MessageType = "disconnect"
)

// Trade directions accepted by order placement.
const (
	ActionBuy  = "buy"
	ActionSell = "sell"
)

// All incoming client messages are expected to have this payload structure.
type MT5ConnectMsg struct {
	Type     MessageType     `json:"type" validate:"required,messagetype_enum"`
	ClientId string          `json:"client_id"`
	Platform Platform        `json:"platform" validate:"omitempty,platform_enum"`
	Payload  json.RawMessage `json:"payload"`
}

// All outgoing client messages should have this payload structure
type MT5ConnectMsgRes struct {
	Type     MessageType     `json:"type"`
	Status   MessageStatus   `json:"status"`
	ClientId string          `json:"client-id"`
	Payload  json.RawMessage `json:"payload"`
}

func CreateSuccessResponse(msgType MessageType, clientID string, payload []byte) MT5ConnectMsgRes {
	return MT5ConnectMsgRes{
		Type:     msgType,
		Status:   StatusSuccess,
		ClientId: clientID,
		Payload:  payload,
	}
}

func CreateErrorResponse(clientID string, errData []byte) MT5ConnectMsgRes {
	return MT5ConnectMsgRes{
		Type:     TypeError,
		Status:   StatusFailure,
		ClientId: clientID,
		Payload:  errData,
	}
}

// Payload that should be contained in the payload field of MT5ConnectMsg for a
// terminal connection. Every field is required; connect is refused when any is
// missing.
type ConnectPayload struct {
	Login        int64  `json:"login" validate:"required"`
	Password     string `json:"password" validate:"required"`
	Server       string `json:"server" validate:"required"`
	TerminalPath string `json:"terminal_path" validate:"required"`
}

// HistoricalDataPayload carries the fields required to request historical bars
// for a symbol.
type HistoricalDataPayload struct {
	Symbol    string `json:"symbol" validate:"required"`
	Timeframe int    `json:"timeframe" validate:"gt=0"`
	Count     int    `json:"count" validate:"gt=0"`
}

// PlaceOrderPayload carries the fields required to place a market order.
type PlaceOrderPayload struct {
	Symbol     string  `json:"symbol" validate:"required"`
	Action     string  `json:"action" validate:"required,tradeaction_enum"`
	Volume     float64 `json:"volume" validate:"gt=0"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Comment    string  `json:"comment"`
	Strategy   string  `json:"strategy"`
}

// ClosePositionPayload carries the fields required to close an open position.
// Volume overrides the position volume when set.
type ClosePositionPayload struct {
	PositionId int64    `json:"position_id" validate:"required"`
	Volume     *float64 `json:"volume"`
	Reason     string   `json:"reason"`
}

// SymbolInfoPayload carries the fields required to request additional symbol
// information.
type SymbolInfoPayload struct {
	Symbol string `json:"symbol" validate:"required"`
}

// MT5ConnectError contains description of an error that occurred while processing a client's request
type MT5ConnectError struct {
	Description string `json:"description"`
}

// AccountInfo is a model message containing the account snapshot.
type AccountInfo struct {
	Login      int64   `json:"login"`
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	Margin     float64 `json:"margin"`
	FreeMargin float64 `json:"free_margin"`
	Leverage   int64   `json:"leverage"`
}

// SymbolInfo is a model message containing trading instrument information.
type SymbolInfo struct {
	Name           string  `json:"name"` //E.g EURUSD
	Point          float64 `json:"point"`
	Spread         int64   `json:"spread"`
	TradeAllowed   bool    `json:"trade_allowed"`
	CurrencyBase   string  `json:"currency_base"`
	CurrencyProfit string  `json:"currency_profit"`
	VolumeMin      float64 `json:"volume_min"`
	VolumeMax      float64 `json:"volume_max"`
	VolumeStep     float64 `json:"volume_step"`
	TradeTickValue float64 `json:"trade_tick_value"`
}

// Bar is a model message providing the OHLCV values of a single bar with the
// timestamp already normalized to a calendar time.
type Bar struct {
	Time       time.Time `json:"time"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	TickVolume int64     `json:"tick_volume"`
	Spread     int64     `json:"spread"`
	RealVolume int64     `json:"real_volume"`
}

// OrderResult is a model message carrying the ticket and execution price of a
// placed order.
type OrderResult struct {
	Order int64   `json:"order"`
	Price float64 `json:"price"`
}

// CloseResult is a model message describing the outcome of a position close.
type CloseResult struct {
	PositionId int64   `json:"position_id"`
	Symbol     string  `json:"symbol"`
	Volume     float64 `json:"volume"`
	Price      float64 `json:"price"`
	Profit     float64 `json:"profit"`
}

// TradeRecord is a model message describing a completed trade as stored by the
// market store.
type TradeRecord struct {
	Strategy   string    `json:"strategy"`
	Symbol     string    `json:"symbol"`
	Action     string    `json:"action"`
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Volume     float64   `json:"volume"`
	Profit     float64   `json:"profit"`
	Comment    string    `json:"comment"`
}

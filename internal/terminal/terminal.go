package terminal

import (
	"context"
	"fmt"
)

// MT5 timeframe identifiers expressed in minutes.
const (
	TimeframeM1  = 1
	TimeframeM5  = 5
	TimeframeM15 = 15
	TimeframeM30 = 30
	TimeframeH1  = 60
	TimeframeH4  = 240
	TimeframeD1  = 1440
	TimeframeW1  = 10080
	TimeframeMN1 = 43200
)

// MT5 trade request constants as defined by the terminal API.
const (
	TradeActionDeal = 1

	OrderTypeBuy  = 0
	OrderTypeSell = 1

	OrderTimeGTC = 0

	OrderFillingFOK = 0
	OrderFillingIOC = 1

	TradeRetcodeDone = 10009

	SymbolTradeModeFull = 4
)

// Credentials are the fields the terminal requires to initialize a session.
type Credentials struct {
	Login    int64  `json:"login"`
	Password string `json:"password"`
	Server   string `json:"server"`
	Path     string `json:"path"`
}

// AccountInfo is the terminal's view of the trading account.
type AccountInfo struct {
	Login      int64   `json:"login"`
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	Margin     float64 `json:"margin"`
	MarginFree float64 `json:"margin_free"`
	Leverage   int64   `json:"leverage"`
}

// SymbolInfo is the terminal's view of a trading instrument.
type SymbolInfo struct {
	Name           string  `json:"name"`
	Point          float64 `json:"point"`
	Spread         int64   `json:"spread"`
	TradeMode      int     `json:"trade_mode"`
	CurrencyBase   string  `json:"currency_base"`
	CurrencyProfit string  `json:"currency_profit"`
	VolumeMin      float64 `json:"volume_min"`
	VolumeMax      float64 `json:"volume_max"`
	VolumeStep     float64 `json:"volume_step"`
	TradeTickValue float64 `json:"trade_tick_value"`
}

// Tick is the current top-of-book quote for a symbol.
type Tick struct {
	Time int64   `json:"time"`
	Bid  float64 `json:"bid"`
	Ask  float64 `json:"ask"`
}

// Rate is a single historical bar as the terminal reports it, with the
// timestamp still in epoch seconds.
type Rate struct {
	Time       int64   `json:"time"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	TickVolume int64   `json:"tick_volume"`
	Spread     int64   `json:"spread"`
	RealVolume int64   `json:"real_volume"`
}

// Position is an open position as the terminal reports it.
type Position struct {
	Ticket    int64   `json:"ticket"`
	Symbol    string  `json:"symbol"`
	Type      int     `json:"type"`
	Volume    float64 `json:"volume"`
	PriceOpen float64 `json:"price_open"`
	Profit    float64 `json:"profit"`
}

// TradeRequest mirrors the terminal's order_send request structure.
type TradeRequest struct {
	Action      int     `json:"action"`
	Symbol      string  `json:"symbol"`
	Volume      float64 `json:"volume"`
	Type        int     `json:"type"`
	Price       float64 `json:"price"`
	StopLoss    float64 `json:"sl"`
	TakeProfit  float64 `json:"tp"`
	Deviation   int     `json:"deviation"`
	Magic       int64   `json:"magic"`
	Comment     string  `json:"comment"`
	TypeTime    int     `json:"type_time"`
	TypeFilling int     `json:"type_filling"`
	Position    int64   `json:"position,omitempty"`
}

// TradeResult mirrors the terminal's order_send result structure.
type TradeResult struct {
	Retcode uint32  `json:"retcode"`
	Order   int64   `json:"order"`
	Deal    int64   `json:"deal"`
	Price   float64 `json:"price"`
	Comment string  `json:"comment"`
}

// Error carries the terminal error code alongside its description so callers
// can log the code the way the terminal reports it.
type Error struct {
	Code        int    `json:"code"`
	Description string `json:"description"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("terminal error %d: %s", e.Code, e.Description)
}

// Terminal defines the set of terminal API calls required by the supported
// mt5-connect functionality. The production implementation is [Bridge]; tests
// substitute fakes.
type Terminal interface {
	Initialize(ctx context.Context, creds Credentials) error
	Shutdown(ctx context.Context) error
	AccountInfo(ctx context.Context) (*AccountInfo, error)
	Symbols(ctx context.Context) ([]string, error)
	SymbolInfo(ctx context.Context, symbol string) (*SymbolInfo, error)
	SymbolTick(ctx context.Context, symbol string) (*Tick, error)
	CopyRatesFromPos(ctx context.Context, symbol string, timeframe, start, count int) ([]Rate, error)
	PositionGet(ctx context.Context, ticket int64) (*Position, error)
	OrderSend(ctx context.Context, req *TradeRequest) (*TradeResult, error)
}

package applications

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"mt5-connect/internal/messages"
	"mt5-connect/internal/messagevalidator"
	"mt5-connect/internal/terminal"

	"github.com/rs/zerolog"
)

// Defaults preserved from the original integration. The sufficiency ratio
// decides when cached bars are enough to skip the terminal fetch; deviation
// and magic are attached to every order request.
const (
	DefaultCacheSufficiency = 0.8
	DefaultOrderDeviation   = 10
	DefaultOrderMagic       = 123456
)

// MarketStore is the optional database collaborator the client may hold for
// read-through caching of historical bars.
type MarketStore interface {
	GetMarketData(symbol string, timeframe int, count int) ([]messages.Bar, error)
	SaveMarketData(symbol string, timeframe int, bars []messages.Bar) error
	GetTrades(limit int) ([]messages.TradeRecord, error)
}

// MT5Client mediates all terminal interactions. Every operation checks its
// preconditions before touching the terminal and converts terminal failures
// into logged error returns; nothing panics across this boundary.
type MT5Client struct {
	terminal     terminal.Terminal
	store        MarketStore
	msgvalidator *messagevalidator.MT5ConnectMessageValidator
	log          zerolog.Logger
	connected    bool

	// Configurable order and cache defaults.
	CacheSufficiency float64
	OrderDeviation   int
	OrderMagic       int64
}

// NewMT5Client creates a new client instance with the required fields. The
// store may be nil; historical data is then always fetched from the terminal.
func NewMT5Client(term terminal.Terminal, store MarketStore, log zerolog.Logger) *MT5Client {
	return &MT5Client{
		terminal:         term,
		store:            store,
		msgvalidator:     messagevalidator.New(),
		log:              log.With().Str("component", "mt5_client").Logger(),
		CacheSufficiency: DefaultCacheSufficiency,
		OrderDeviation:   DefaultOrderDeviation,
		OrderMagic:       DefaultOrderMagic,
	}
}

// Connected reports whether a terminal session is established.
func (c *MT5Client) Connected() bool {
	return c.connected
}

// Connect establishes the terminal session. It refuses to touch the terminal
// when any credential field is missing or the terminal executable path does
// not exist on disk.
func (c *MT5Client) Connect(ctx context.Context, creds messages.ConnectPayload) error {
	if err := c.msgvalidator.Validate(creds); err != nil {
		c.log.Warn().Err(err).Msg("connect attempted with incomplete credentials")
		return fmt.Errorf("incomplete connect credentials: %w", err)
	}

	if _, err := os.Stat(creds.TerminalPath); err != nil {
		c.log.Warn().Str("path", creds.TerminalPath).Msg("terminal executable not found")
		return fmt.Errorf("terminal executable not found: %s", creds.TerminalPath)
	}

	err := c.terminal.Initialize(ctx, terminal.Credentials{
		Login:    creds.Login,
		Password: creds.Password,
		Server:   creds.Server,
		Path:     creds.TerminalPath,
	})
	if err != nil {
		c.logTerminalError("terminal initialization failed", err)
		return fmt.Errorf("failed to connect to terminal: %w", err)
	}

	c.connected = true
	c.log.Info().Int64("login", creds.Login).Msg("connected to terminal")
	return nil
}

// Disconnect releases the terminal session. It is a no-op when no session is
// established.
func (c *MT5Client) Disconnect(ctx context.Context) error {
	if !c.connected {
		return nil
	}
	if err := c.terminal.Shutdown(ctx); err != nil {
		c.logTerminalError("terminal shutdown failed", err)
	}
	c.connected = false
	c.log.Info().Msg("disconnected from terminal")
	return nil
}

// GetAccountInfo returns the current account snapshot.
func (c *MT5Client) GetAccountInfo(ctx context.Context) (*messages.AccountInfo, error) {
	if err := c.requireConnected("account info"); err != nil {
		return nil, err
	}

	info, err := c.terminal.AccountInfo(ctx)
	if err != nil {
		c.logTerminalError("failed to retrieve account info", err)
		return nil, err
	}

	return &messages.AccountInfo{
		Login:      info.Login,
		Balance:    info.Balance,
		Equity:     info.Equity,
		Margin:     info.Margin,
		FreeMargin: info.MarginFree,
		Leverage:   info.Leverage,
	}, nil
}

// GetSymbols returns the names of all tradable symbols. Any failure is logged
// and yields an empty slice.
func (c *MT5Client) GetSymbols(ctx context.Context) []string {
	if err := c.requireConnected("symbols"); err != nil {
		return []string{}
	}

	symbols, err := c.terminal.Symbols(ctx)
	if err != nil {
		c.logTerminalError("failed to retrieve symbol list", err)
		return []string{}
	}
	return symbols
}

// GetHistoricalData returns the count most recent bars for symbol and
// timeframe. When a store is configured it is queried first and its result
// returned as-is when it holds at least CacheSufficiency of the requested
// count; otherwise the terminal is queried and the result persisted back.
func (c *MT5Client) GetHistoricalData(ctx context.Context, symbol string, timeframe, count int) ([]messages.Bar, error) {
	if err := c.requireConnected("historical data"); err != nil {
		return nil, err
	}

	req := messages.HistoricalDataPayload{Symbol: symbol, Timeframe: timeframe, Count: count}
	if err := c.msgvalidator.Validate(req); err != nil {
		c.log.Warn().Str("symbol", symbol).Int("timeframe", timeframe).Int("count", count).
			Msg("invalid historical data request parameters")
		return nil, fmt.Errorf("invalid historical data request: %w", err)
	}

	if c.store != nil {
		cached, err := c.store.GetMarketData(symbol, timeframe, count)
		if err != nil {
			c.log.Error().Err(err).Str("symbol", symbol).Msg("market store lookup failed")
		} else if float64(len(cached)) >= float64(count)*c.CacheSufficiency {
			c.log.Debug().Str("symbol", symbol).Int("timeframe", timeframe).
				Int("bars", len(cached)).Msg("using cached market data")
			return cached, nil
		}
	}

	rates, err := c.terminal.CopyRatesFromPos(ctx, symbol, timeframe, 0, count)
	if err != nil {
		c.logTerminalError("failed to retrieve bars from terminal", err)
		return nil, err
	}
	if len(rates) == 0 {
		c.log.Warn().Str("symbol", symbol).Int("timeframe", timeframe).Msg("terminal returned no bars")
		return nil, fmt.Errorf("no bars returned for %s", symbol)
	}

	bars := make([]messages.Bar, len(rates))
	for i, r := range rates {
		bars[i] = messages.Bar{
			Time:       time.Unix(r.Time, 0).UTC(),
			Open:       r.Open,
			High:       r.High,
			Low:        r.Low,
			Close:      r.Close,
			TickVolume: r.TickVolume,
			Spread:     r.Spread,
			RealVolume: r.RealVolume,
		}
	}

	if c.store != nil {
		if err := c.store.SaveMarketData(symbol, timeframe, bars); err != nil {
			c.log.Error().Err(err).Str("symbol", symbol).Msg("failed to persist market data")
		}
	}

	return bars, nil
}

// PlaceOrder submits a market order and returns its ticket. Invalid or unknown
// parameters never reach order submission.
func (c *MT5Client) PlaceOrder(ctx context.Context, order messages.PlaceOrderPayload) (*messages.OrderResult, error) {
	if err := c.requireConnected("order placement"); err != nil {
		return nil, err
	}

	if err := c.msgvalidator.Validate(order); err != nil {
		c.log.Warn().Str("symbol", order.Symbol).Float64("volume", order.Volume).
			Msg("invalid order parameters")
		return nil, fmt.Errorf("invalid order parameters: %w", err)
	}

	if _, err := c.terminal.SymbolInfo(ctx, order.Symbol); err != nil {
		c.log.Error().Err(err).Str("symbol", order.Symbol).Msg("symbol not found in terminal")
		return nil, fmt.Errorf("unknown symbol %s: %w", order.Symbol, err)
	}

	tick, err := c.terminal.SymbolTick(ctx, order.Symbol)
	if err != nil {
		c.logTerminalError("failed to retrieve current quote", err)
		return nil, err
	}

	orderType := terminal.OrderTypeBuy
	price := tick.Ask
	if order.Action == messages.ActionSell {
		orderType = terminal.OrderTypeSell
		price = tick.Bid
	}

	req := &terminal.TradeRequest{
		Action:      terminal.TradeActionDeal,
		Symbol:      order.Symbol,
		Volume:      order.Volume,
		Type:        orderType,
		Price:       price,
		Deviation:   c.OrderDeviation,
		Magic:       c.OrderMagic,
		Comment:     order.Comment,
		TypeTime:    terminal.OrderTimeGTC,
		TypeFilling: terminal.OrderFillingIOC,
	}
	if order.StopLoss > 0 {
		req.StopLoss = order.StopLoss
	}
	if order.TakeProfit > 0 {
		req.TakeProfit = order.TakeProfit
	}

	result, err := c.terminal.OrderSend(ctx, req)
	if err != nil {
		c.logTerminalError("failed to send order", err)
		return nil, err
	}
	if result == nil {
		c.log.Error().Str("symbol", order.Symbol).Msg("terminal returned no order result")
		return nil, errors.New("terminal returned no order result")
	}
	if result.Retcode != terminal.TradeRetcodeDone {
		c.log.Error().Str("symbol", order.Symbol).Uint32("retcode", result.Retcode).
			Str("comment", result.Comment).Msg("order rejected by terminal")
		return nil, fmt.Errorf("order rejected: %s", result.Comment)
	}

	c.log.Info().Int64("order", result.Order).Str("symbol", order.Symbol).
		Str("action", order.Action).Float64("volume", order.Volume).
		Float64("price", price).Msg("order placed")
	return &messages.OrderResult{Order: result.Order, Price: result.Price}, nil
}

// ClosePosition closes an open position by submitting the offsetting deal.
// Volume defaults to the full position volume when nil.
func (c *MT5Client) ClosePosition(ctx context.Context, positionID int64, volume *float64) (*messages.CloseResult, error) {
	if err := c.requireConnected("position close"); err != nil {
		return nil, err
	}

	position, err := c.terminal.PositionGet(ctx, positionID)
	if err != nil {
		c.log.Warn().Err(err).Int64("position", positionID).Msg("position not found")
		return nil, fmt.Errorf("position %d not found: %w", positionID, err)
	}

	closeVolume := position.Volume
	if volume != nil {
		closeVolume = *volume
	}

	tick, err := c.terminal.SymbolTick(ctx, position.Symbol)
	if err != nil {
		c.logTerminalError("failed to retrieve current quote", err)
		return nil, err
	}

	// Close on the opposite side of the book.
	closeType := terminal.OrderTypeBuy
	price := tick.Ask
	if position.Type == terminal.OrderTypeBuy {
		closeType = terminal.OrderTypeSell
		price = tick.Bid
	}

	req := &terminal.TradeRequest{
		Action:      terminal.TradeActionDeal,
		Position:    positionID,
		Symbol:      position.Symbol,
		Volume:      closeVolume,
		Type:        closeType,
		Price:       price,
		Deviation:   c.OrderDeviation,
		Magic:       c.OrderMagic,
		Comment:     "position close",
		TypeTime:    terminal.OrderTimeGTC,
		TypeFilling: terminal.OrderFillingIOC,
	}

	result, err := c.terminal.OrderSend(ctx, req)
	if err != nil {
		c.logTerminalError("failed to close position", err)
		return nil, err
	}
	if result == nil {
		c.log.Error().Int64("position", positionID).Msg("terminal returned no close result")
		return nil, errors.New("terminal returned no close result")
	}
	if result.Retcode != terminal.TradeRetcodeDone {
		c.log.Error().Int64("position", positionID).Uint32("retcode", result.Retcode).
			Str("comment", result.Comment).Msg("position close rejected by terminal")
		return nil, fmt.Errorf("position close rejected: %s", result.Comment)
	}

	c.log.Info().Int64("position", positionID).Str("symbol", position.Symbol).
		Float64("price", price).Msg("position closed")
	return &messages.CloseResult{
		PositionId: positionID,
		Symbol:     position.Symbol,
		Volume:     closeVolume,
		Price:      price,
		Profit:     position.Profit,
	}, nil
}

// GetSymbolInfo returns instrument information for symbol.
func (c *MT5Client) GetSymbolInfo(ctx context.Context, symbol string) (*messages.SymbolInfo, error) {
	if err := c.requireConnected("symbol info"); err != nil {
		return nil, err
	}

	req := messages.SymbolInfoPayload{Symbol: symbol}
	if err := c.msgvalidator.Validate(req); err != nil {
		c.log.Warn().Msg("symbol info requested without a symbol")
		return nil, fmt.Errorf("invalid symbol info request: %w", err)
	}

	info, err := c.terminal.SymbolInfo(ctx, symbol)
	if err != nil {
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("unknown symbol")
		return nil, fmt.Errorf("unknown symbol %s: %w", symbol, err)
	}

	return &messages.SymbolInfo{
		Name:           info.Name,
		Point:          info.Point,
		Spread:         info.Spread,
		TradeAllowed:   info.TradeMode == terminal.SymbolTradeModeFull,
		CurrencyBase:   info.CurrencyBase,
		CurrencyProfit: info.CurrencyProfit,
		VolumeMin:      info.VolumeMin,
		VolumeMax:      info.VolumeMax,
		VolumeStep:     info.VolumeStep,
		TradeTickValue: info.TradeTickValue,
	}, nil
}

func (c *MT5Client) requireConnected(op string) error {
	if c.connected {
		return nil
	}
	c.log.Warn().Str("operation", op).Msg("attempted terminal operation without a connection")
	return errors.New("not connected to terminal")
}

func (c *MT5Client) logTerminalError(msg string, err error) {
	var terr *terminal.Error
	if errors.As(err, &terr) {
		c.log.Error().Int("terminal_code", terr.Code).Str("description", terr.Description).Msg(msg)
		return
	}
	c.log.Error().Err(err).Msg(msg)
}

package router

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mt5-connect/internal/adapters"
	"mt5-connect/internal/messages"
	"mt5-connect/internal/messagevalidator"
	"mt5-connect/internal/models"
	"mt5-connect/notify"
	"mt5-connect/persistence"

	"github.com/rs/zerolog"
)

// Notifier is the slice of the Telegram bot the router forwards trade
// lifecycle events to.
type Notifier interface {
	NotifyTradeOpened(symbol, action string, volume, price, stopLoss, takeProfit float64, strategy string) error
	NotifyTradeClosed(symbol string, positionID int64, profit, price float64, reason string) error
	NotifyError(errorMessage string) error
	SendDailyReport(store notify.TradeStore) error
}

// PlatformFactory creates a fresh platform session for a newly connecting
// client.
type PlatformFactory func() adapters.PlatformAdapter

// Router dispatches incoming client messages to the platform session owned by
// the client and forwards trade lifecycle events to the notifier.
type Router struct {
	db           *persistence.MarketDb
	notifier     Notifier
	factory      PlatformFactory
	msgvalidator *messagevalidator.MT5ConnectMessageValidator
	log          zerolog.Logger
}

// NewRouter creates a new Router instance. The notifier may be nil; lifecycle
// events are then not forwarded.
func NewRouter(db *persistence.MarketDb, notifier Notifier, factory PlatformFactory, log zerolog.Logger) *Router {
	return &Router{
		db:           db,
		notifier:     notifier,
		factory:      factory,
		msgvalidator: messagevalidator.New(),
		log:          log.With().Str("component", "router").Logger(),
	}
}

// Route dispatches an incoming message to the matching handler. The handler's
// response envelope is pushed onto the client's send channel; a handler error
// is returned so the caller can report it back to the client.
func (r *Router) Route(ctx context.Context, client *models.MT5ConnectClient, msg messages.MT5ConnectMsg) error {
	if err := r.msgvalidator.Validate(msg); err != nil {
		return fmt.Errorf("invalid mt5-connect message: %w", err)
	}

	switch msg.Type {
	case messages.TypeConnect:
		return r.handleConnect(ctx, client, msg.Payload)
	case messages.TypeAccountInfo:
		return r.handleAccountInfo(ctx, client)
	case messages.TypeAccountSymbols:
		return r.handleAccountSymbols(ctx, client)
	case messages.TypeHistorical:
		return r.handleHistoricalData(ctx, client, msg.Payload)
	case messages.TypePlaceOrder:
		return r.handlePlaceOrder(ctx, client, msg.Payload)
	case messages.TypeClosePosition:
		return r.handleClosePosition(ctx, client, msg.Payload)
	case messages.TypeSymbolInfo:
		return r.handleSymbolInfo(ctx, client, msg.Payload)
	case messages.TypeDailyReport:
		return r.handleDailyReport(client)
	case messages.TypeDisconnect:
		return r.handleDisconnect(ctx, client)
	default:
		return fmt.Errorf("unsupported message type: %s", msg.Type)
	}
}

func (r *Router) handleConnect(ctx context.Context, client *models.MT5ConnectClient, payload json.RawMessage) error {
	var creds messages.ConnectPayload
	if err := json.Unmarshal(payload, &creds); err != nil {
		return fmt.Errorf("invalid connect message format: %w", err)
	}

	platform := r.factory()
	if err := platform.Connect(ctx, creds); err != nil {
		return err
	}
	client.Platform = platform

	return r.respond(client, messages.TypeConnect, nil)
}

func (r *Router) handleAccountInfo(ctx context.Context, client *models.MT5ConnectClient) error {
	platform, err := r.clientPlatform(client)
	if err != nil {
		return err
	}

	info, err := platform.GetAccountInfo(ctx)
	if err != nil {
		return err
	}
	return r.respondJSON(client, messages.TypeAccountInfo, info)
}

func (r *Router) handleAccountSymbols(ctx context.Context, client *models.MT5ConnectClient) error {
	platform, err := r.clientPlatform(client)
	if err != nil {
		return err
	}
	return r.respondJSON(client, messages.TypeAccountSymbols, platform.GetSymbols(ctx))
}

func (r *Router) handleHistoricalData(ctx context.Context, client *models.MT5ConnectClient, payload json.RawMessage) error {
	platform, err := r.clientPlatform(client)
	if err != nil {
		return err
	}

	var req messages.HistoricalDataPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("invalid historical data message format: %w", err)
	}

	bars, err := platform.GetHistoricalData(ctx, req.Symbol, req.Timeframe, req.Count)
	if err != nil {
		return err
	}
	return r.respondJSON(client, messages.TypeHistorical, bars)
}

func (r *Router) handlePlaceOrder(ctx context.Context, client *models.MT5ConnectClient, payload json.RawMessage) error {
	platform, err := r.clientPlatform(client)
	if err != nil {
		return err
	}

	var order messages.PlaceOrderPayload
	if err := json.Unmarshal(payload, &order); err != nil {
		return fmt.Errorf("invalid place order message format: %w", err)
	}

	result, err := platform.PlaceOrder(ctx, order)
	if err != nil {
		r.notifyError(fmt.Sprintf("Не удалось разместить ордер на %s: %v", order.Symbol, err))
		return err
	}

	if r.notifier != nil {
		if err := r.notifier.NotifyTradeOpened(order.Symbol, order.Action, order.Volume,
			result.Price, order.StopLoss, order.TakeProfit, order.Strategy); err != nil {
			r.log.Error().Err(err).Int64("order", result.Order).Msg("failed to forward trade opened notification")
		}
	}

	return r.respondJSON(client, messages.TypePlaceOrder, result)
}

func (r *Router) handleClosePosition(ctx context.Context, client *models.MT5ConnectClient, payload json.RawMessage) error {
	platform, err := r.clientPlatform(client)
	if err != nil {
		return err
	}

	var req messages.ClosePositionPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("invalid close position message format: %w", err)
	}

	result, err := platform.ClosePosition(ctx, req.PositionId, req.Volume)
	if err != nil {
		r.notifyError(fmt.Sprintf("Не удалось закрыть позицию #%d: %v", req.PositionId, err))
		return err
	}

	if r.db != nil {
		trade := messages.TradeRecord{
			Symbol:    result.Symbol,
			ExitTime:  time.Now(),
			ExitPrice: result.Price,
			Volume:    result.Volume,
			Profit:    result.Profit,
			Comment:   req.Reason,
		}
		if err := r.db.SaveTrade(trade); err != nil {
			r.log.Error().Err(err).Str("symbol", result.Symbol).Msg("failed to persist closed trade")
		}
	}

	if r.notifier != nil {
		if err := r.notifier.NotifyTradeClosed(result.Symbol, result.PositionId,
			result.Profit, result.Price, req.Reason); err != nil {
			r.log.Error().Err(err).Int64("position", result.PositionId).Msg("failed to forward trade closed notification")
		}
	}

	return r.respondJSON(client, messages.TypeClosePosition, result)
}

func (r *Router) handleSymbolInfo(ctx context.Context, client *models.MT5ConnectClient, payload json.RawMessage) error {
	platform, err := r.clientPlatform(client)
	if err != nil {
		return err
	}

	var req messages.SymbolInfoPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("invalid symbol info message format: %w", err)
	}

	info, err := platform.GetSymbolInfo(ctx, req.Symbol)
	if err != nil {
		return err
	}
	return r.respondJSON(client, messages.TypeSymbolInfo, info)
}

func (r *Router) handleDailyReport(client *models.MT5ConnectClient) error {
	if r.notifier == nil {
		return fmt.Errorf("no notifier configured")
	}

	var store notify.TradeStore
	if r.db != nil {
		store = r.db
	}
	if err := r.notifier.SendDailyReport(store); err != nil {
		return err
	}
	return r.respond(client, messages.TypeDailyReport, nil)
}

func (r *Router) handleDisconnect(ctx context.Context, client *models.MT5ConnectClient) error {
	if client.Platform == nil {
		return nil
	}
	if err := client.Platform.Disconnect(ctx); err != nil {
		return err
	}
	client.Platform = nil
	return r.respond(client, messages.TypeDisconnect, nil)
}

func (r *Router) clientPlatform(client *models.MT5ConnectClient) (adapters.PlatformAdapter, error) {
	if client.Platform == nil {
		return nil, fmt.Errorf("client %s has no established platform session", client.ID)
	}
	return client.Platform, nil
}

func (r *Router) notifyError(description string) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.NotifyError(description); err != nil {
		r.log.Error().Err(err).Msg("failed to forward error notification")
	}
}

func (r *Router) respondJSON(client *models.MT5ConnectClient, msgType messages.MessageType, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s response payload: %w", msgType, err)
	}
	return r.respond(client, msgType, data)
}

func (r *Router) respond(client *models.MT5ConnectClient, msgType messages.MessageType, payload []byte) error {
	res := messages.CreateSuccessResponse(msgType, client.ID, payload)
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal %s response: %w", msgType, err)
	}
	select {
	case client.Send <- data:
	default:
		r.log.Warn().Str("client", client.ID).Str("type", string(msgType)).
			Msg("client send buffer full, dropping response")
	}
	return nil
}

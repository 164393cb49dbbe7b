package terminal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type bridgeRequest struct {
	ID     uint64      `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

type bridgeResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error,omitempty"`
}

// Bridge is the production Terminal implementation. It speaks JSON
// request/response frames over a websocket connection to the MT5 gateway
// running next to the terminal. Round-trips are serialized; the gateway
// answers one request at a time.
type Bridge struct {
	endpoint string
	port     int32
	conn     *websocket.Conn
	nextID   uint64
	mu       sync.Mutex
	log      zerolog.Logger
}

// NewBridge creates a bridge for the gateway listening at endpoint:port.
func NewBridge(endpoint string, port int32, log zerolog.Logger) *Bridge {
	return &Bridge{
		endpoint: endpoint,
		port:     port,
		log:      log.With().Str("component", "terminal_bridge").Logger(),
	}
}

// Initialize dials the gateway and asks the terminal to start a session with
// the given credentials.
func (b *Bridge) Initialize(ctx context.Context, creds Credentials) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	if b.endpoint == "" {
		return fmt.Errorf("missing terminal gateway endpoint in configuration")
	}
	if b.port == 0 {
		return fmt.Errorf("missing terminal gateway port in configuration")
	}

	url := fmt.Sprintf("ws://%s:%d", b.endpoint, b.port)
	b.log.Info().Str("url", url).Msg("establishing connection to terminal gateway")

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial terminal gateway: %w", err)
	}

	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()

	if err := b.call(ctx, "initialize", creds, nil); err != nil {
		b.closeConn()
		return err
	}
	return nil
}

// Shutdown releases the terminal session and closes the gateway connection.
func (b *Bridge) Shutdown(ctx context.Context) error {
	err := b.call(ctx, "shutdown", nil, nil)
	b.closeConn()
	return err
}

func (b *Bridge) AccountInfo(ctx context.Context) (*AccountInfo, error) {
	var info AccountInfo
	if err := b.call(ctx, "account_info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (b *Bridge) Symbols(ctx context.Context) ([]string, error) {
	var names []string
	if err := b.call(ctx, "symbols_get", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (b *Bridge) SymbolInfo(ctx context.Context, symbol string) (*SymbolInfo, error) {
	var info SymbolInfo
	params := map[string]string{"symbol": symbol}
	if err := b.call(ctx, "symbol_info", params, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (b *Bridge) SymbolTick(ctx context.Context, symbol string) (*Tick, error) {
	var tick Tick
	params := map[string]string{"symbol": symbol}
	if err := b.call(ctx, "symbol_info_tick", params, &tick); err != nil {
		return nil, err
	}
	return &tick, nil
}

func (b *Bridge) CopyRatesFromPos(ctx context.Context, symbol string, timeframe, start, count int) ([]Rate, error) {
	var rates []Rate
	params := map[string]interface{}{
		"symbol":    symbol,
		"timeframe": timeframe,
		"start_pos": start,
		"count":     count,
	}
	if err := b.call(ctx, "copy_rates_from_pos", params, &rates); err != nil {
		return nil, err
	}
	return rates, nil
}

func (b *Bridge) PositionGet(ctx context.Context, ticket int64) (*Position, error) {
	var position Position
	params := map[string]int64{"ticket": ticket}
	if err := b.call(ctx, "positions_get", params, &position); err != nil {
		return nil, err
	}
	return &position, nil
}

func (b *Bridge) OrderSend(ctx context.Context, req *TradeRequest) (*TradeResult, error) {
	var result TradeResult
	if err := b.call(ctx, "order_send", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// call performs one serialized request/response round-trip with the gateway.
// A gateway error frame is returned as *Error so callers can log the
// terminal's error code.
func (b *Bridge) call(ctx context.Context, method string, params, result interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		return fmt.Errorf("terminal gateway connection not established")
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = b.conn.SetWriteDeadline(deadline)
		_ = b.conn.SetReadDeadline(deadline)
	}

	b.nextID++
	req := bridgeRequest{
		ID:     b.nextID,
		Method: method,
		Params: params,
	}
	if err := b.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("failed to send %s request: %w", method, err)
	}

	for {
		var resp bridgeResponse
		if err := b.conn.ReadJSON(&resp); err != nil {
			return fmt.Errorf("failed to read %s response: %w", method, err)
		}
		if resp.ID != req.ID {
			b.log.Warn().Uint64("id", resp.ID).Msg("discarding gateway frame with unexpected id")
			continue
		}
		if resp.Error != nil {
			return resp.Error
		}
		if result == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("failed to unmarshal %s result: %w", method, err)
		}
		return nil
	}
}

func (b *Bridge) closeConn() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		_ = b.conn.Close()
		b.conn = nil
	}
}

package adapters

import (
	"context"

	"mt5-connect/internal/messages"
)

// Platform defines a set of method signatures that are common for all trading platforms APIs and that are required by
// mt5-connect supported functionality
type PlatformAdapter interface {
	Connect(ctx context.Context, creds messages.ConnectPayload) error
	Connected() bool
	GetAccountInfo(ctx context.Context) (*messages.AccountInfo, error)
	GetSymbols(ctx context.Context) []string
	GetHistoricalData(ctx context.Context, symbol string, timeframe, count int) ([]messages.Bar, error)
	PlaceOrder(ctx context.Context, order messages.PlaceOrderPayload) (*messages.OrderResult, error)
	ClosePosition(ctx context.Context, positionID int64, volume *float64) (*messages.CloseResult, error)
	GetSymbolInfo(ctx context.Context, symbol string) (*messages.SymbolInfo, error)
	Disconnect(ctx context.Context) error
}

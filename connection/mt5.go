package connection

import (
	"context"
	"fmt"

	"mt5-connect/config"
	"mt5-connect/internal/applications"
	"mt5-connect/internal/messages"
	"mt5-connect/internal/terminal"

	"github.com/rs/zerolog"
)

// EstablishMT5Connection builds a bridge-backed client from the application
// configuration and connects it to the terminal.
func EstablishMT5Connection(ctx context.Context, mt5Config *config.MT5Config, store applications.MarketStore, log zerolog.Logger) (*applications.MT5Client, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	mt5Config.Endpoint = cfg.Servers.Terminal.Endpoint
	mt5Config.Port = cfg.Servers.Terminal.Port

	bridge := terminal.NewBridge(mt5Config.Endpoint, mt5Config.Port, log)
	client := applications.NewMT5Client(bridge, store, log)

	creds := messages.ConnectPayload{
		Login:        mt5Config.Login,
		Password:     mt5Config.Password,
		Server:       mt5Config.Server,
		TerminalPath: mt5Config.TerminalPath,
	}
	if err := client.Connect(ctx, creds); err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}

	return client, nil
}

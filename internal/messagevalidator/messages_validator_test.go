package messagevalidator

import (
	"testing"

	"mt5-connect/internal/messages"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMessageType(t *testing.T) {
	v := New()

	msg := messages.MT5ConnectMsg{Type: messages.TypeConnect}
	assert.NoError(t, v.Validate(msg))

	msg.Type = "trend_bars"
	assert.Error(t, v.Validate(msg))

	msg.Type = ""
	assert.Error(t, v.Validate(msg))
}

func TestValidateConnectPayload(t *testing.T) {
	v := New()

	payload := messages.ConnectPayload{
		Login:        12345,
		Password:     "x",
		Server:       "s",
		TerminalPath: "/terminal",
	}
	require.NoError(t, v.Validate(payload))

	payload.Password = ""
	assert.Error(t, v.Validate(payload))
}

func TestValidateTradeAction(t *testing.T) {
	v := New()

	order := messages.PlaceOrderPayload{Symbol: "EURUSD", Action: messages.ActionBuy, Volume: 1}
	require.NoError(t, v.Validate(order))

	order.Action = messages.ActionSell
	require.NoError(t, v.Validate(order))

	order.Action = "close"
	assert.Error(t, v.Validate(order))
}

func TestValidateOrderVolume(t *testing.T) {
	v := New()

	order := messages.PlaceOrderPayload{Symbol: "EURUSD", Action: messages.ActionBuy, Volume: 0}
	assert.Error(t, v.Validate(order))

	order.Volume = -0.5
	assert.Error(t, v.Validate(order))
}

package models

import (
	"mt5-connect/internal/adapters"

	"github.com/gorilla/websocket"
)

// MT5ConnectClient is one websocket caller and the platform session it owns.
// Access to the platform adapter is serialized through the manager's routing
// loop; the adapter itself holds no internal locking.
type MT5ConnectClient struct {
	ID       string
	Conn     *websocket.Conn
	Platform adapters.PlatformAdapter
	Send     chan []byte
}

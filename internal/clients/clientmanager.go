package clients

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"mt5-connect/internal/messages"
	"mt5-connect/internal/models"
	"mt5-connect/router"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	SendBufferSize = 256

	// WriteWait bounds each websocket write to a client.
	WriteWait = 10 * time.Second
)

type MT5ConnectClientManager struct {
	clients                map[string]*models.MT5ConnectClient
	IncomingClientMessages chan []byte
	Register               chan *models.MT5ConnectClient
	Unregister             chan *models.MT5ConnectClient
	msgRouter              *router.Router
	log                    zerolog.Logger
	sync.RWMutex
}

// NewClientManager creates a new client manager instance
func NewClientManager(msgRouter *router.Router, log zerolog.Logger) *MT5ConnectClientManager {
	return &MT5ConnectClientManager{
		clients:                make(map[string]*models.MT5ConnectClient),
		IncomingClientMessages: make(chan []byte),
		Register:               make(chan *models.MT5ConnectClient),
		Unregister:             make(chan *models.MT5ConnectClient),
		msgRouter:              msgRouter,
		log:                    log.With().Str("component", "client_manager").Logger(),
	}
}

// StartClientManagement is responsible for handling client activities, from
// registering and unregistering clients to routing messages to the [router.Router].
func (m *MT5ConnectClientManager) StartClientManagement(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-m.Register:
			m.Lock()
			m.clients[client.ID] = client
			m.Unlock()
			go m.writeClientMessages(client)

		case client := <-m.Unregister:
			m.Lock()
			if _, ok := m.clients[client.ID]; ok {
				disconnectMsg := messages.MT5ConnectMsg{
					Type:     messages.TypeDisconnect,
					ClientId: client.ID,
				}
				if err := m.msgRouter.Route(ctx, client, disconnectMsg); err != nil {
					m.log.Error().Err(err).Str("client", client.ID).Msg("failed to release platform session")
				}
				close(client.Send)
				delete(m.clients, client.ID)
			}
			m.Unlock()

		case incomingMsg := <-m.IncomingClientMessages:
			var msg messages.MT5ConnectMsg
			if err := json.Unmarshal(incomingMsg, &msg); err != nil {
				m.log.Error().Err(err).Msg("invalid mt5-connect message")
				continue
			}
			m.RLock()
			client, exists := m.clients[msg.ClientId]
			m.RUnlock()
			if !exists {
				m.log.Warn().Str("client", msg.ClientId).Msg("client not found")
				continue
			}
			if err := m.msgRouter.Route(ctx, client, msg); err != nil {
				m.log.Error().Err(err).Str("client", client.ID).Str("type", string(msg.Type)).
					Msg("failed to process client message")
				m.writeClientError(client, err)
			}
		}
	}
}

// writeClientMessages pumps response envelopes from the client's send channel
// to its websocket connection. It is the connection's only writer, so the
// write deadline is managed here.
func (m *MT5ConnectClientManager) writeClientMessages(client *models.MT5ConnectClient) {
	for msg := range client.Send {
		client.Conn.SetWriteDeadline(time.Now().Add(WriteWait))
		if err := client.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			m.log.Error().Err(err).Str("client", client.ID).Msg("client write failed")
			return
		}
	}
	m.log.Info().Str("client", client.ID).Msg("stopped listening to client (channel closed)")
}

func (m *MT5ConnectClientManager) writeClientError(client *models.MT5ConnectClient, routeErr error) {
	errPayload, err := json.Marshal(messages.MT5ConnectError{Description: routeErr.Error()})
	if err != nil {
		m.log.Error().Err(err).Str("client", client.ID).Msg("failed to marshal error payload")
		return
	}
	res := messages.CreateErrorResponse(client.ID, errPayload)
	data, err := json.Marshal(res)
	if err != nil {
		m.log.Error().Err(err).Str("client", client.ID).Msg("failed to marshal error response")
		return
	}
	select {
	case client.Send <- data:
	default:
		m.log.Warn().Str("client", client.ID).Msg("client send buffer full, dropping error response")
	}
}

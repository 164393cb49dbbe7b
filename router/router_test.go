package router

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"mt5-connect/internal/adapters"
	"mt5-connect/internal/messages"
	"mt5-connect/internal/models"
	"mt5-connect/notify"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlatform struct {
	connectErr   error
	connected    bool
	orderResult  *messages.OrderResult
	orderErr     error
	closeResult  *messages.CloseResult
	closeErr     error
	disconnected bool
}

func (f *fakePlatform) Connect(ctx context.Context, creds messages.ConnectPayload) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakePlatform) Connected() bool { return f.connected }

func (f *fakePlatform) GetAccountInfo(ctx context.Context) (*messages.AccountInfo, error) {
	return &messages.AccountInfo{Login: 12345, Balance: 1000}, nil
}

func (f *fakePlatform) GetSymbols(ctx context.Context) []string {
	return []string{"EURUSD", "GBPUSD"}
}

func (f *fakePlatform) GetHistoricalData(ctx context.Context, symbol string, timeframe, count int) ([]messages.Bar, error) {
	return []messages.Bar{}, nil
}

func (f *fakePlatform) PlaceOrder(ctx context.Context, order messages.PlaceOrderPayload) (*messages.OrderResult, error) {
	return f.orderResult, f.orderErr
}

func (f *fakePlatform) ClosePosition(ctx context.Context, positionID int64, volume *float64) (*messages.CloseResult, error) {
	return f.closeResult, f.closeErr
}

func (f *fakePlatform) GetSymbolInfo(ctx context.Context, symbol string) (*messages.SymbolInfo, error) {
	return &messages.SymbolInfo{Name: symbol}, nil
}

func (f *fakePlatform) Disconnect(ctx context.Context) error {
	f.disconnected = true
	return nil
}

type openedEvent struct {
	symbol   string
	action   string
	volume   float64
	price    float64
	strategy string
}

type closedEvent struct {
	symbol     string
	positionID int64
	profit     float64
	reason     string
}

type fakeNotifier struct {
	opened  []openedEvent
	closed  []closedEvent
	errors  []string
	reports int
}

func (f *fakeNotifier) NotifyTradeOpened(symbol, action string, volume, price, stopLoss, takeProfit float64, strategy string) error {
	f.opened = append(f.opened, openedEvent{symbol, action, volume, price, strategy})
	return nil
}

func (f *fakeNotifier) NotifyTradeClosed(symbol string, positionID int64, profit, price float64, reason string) error {
	f.closed = append(f.closed, closedEvent{symbol, positionID, profit, reason})
	return nil
}

func (f *fakeNotifier) NotifyError(errorMessage string) error {
	f.errors = append(f.errors, errorMessage)
	return nil
}

func (f *fakeNotifier) SendDailyReport(store notify.TradeStore) error {
	f.reports++
	return nil
}

func testClient() *models.MT5ConnectClient {
	return &models.MT5ConnectClient{
		ID:   "client-1",
		Send: make(chan []byte, 16),
	}
}

func newTestRouter(platform *fakePlatform, notifier Notifier) *Router {
	factory := func() adapters.PlatformAdapter { return platform }
	return NewRouter(nil, notifier, factory, zerolog.Nop())
}

func rawMsg(t *testing.T, msgType messages.MessageType, payload interface{}) messages.MT5ConnectMsg {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		raw = data
	}
	return messages.MT5ConnectMsg{Type: msgType, ClientId: "client-1", Payload: raw}
}

func receiveResponse(t *testing.T, client *models.MT5ConnectClient) messages.MT5ConnectMsgRes {
	t.Helper()
	select {
	case data := <-client.Send:
		var res messages.MT5ConnectMsgRes
		require.NoError(t, json.Unmarshal(data, &res))
		return res
	default:
		t.Fatal("expected a response envelope on the client send channel")
		return messages.MT5ConnectMsgRes{}
	}
}

func TestRouteConnectEstablishesPlatformSession(t *testing.T) {
	platform := &fakePlatform{}
	r := newTestRouter(platform, nil)
	client := testClient()

	msg := rawMsg(t, messages.TypeConnect, messages.ConnectPayload{
		Login: 12345, Password: "x", Server: "s", TerminalPath: "/terminal",
	})
	require.NoError(t, r.Route(context.Background(), client, msg))

	assert.NotNil(t, client.Platform)
	res := receiveResponse(t, client)
	assert.Equal(t, messages.TypeConnect, res.Type)
	assert.Equal(t, messages.StatusSuccess, res.Status)
}

func TestRouteConnectFailureIsReturned(t *testing.T) {
	platform := &fakePlatform{connectErr: errors.New("authorization failed")}
	r := newTestRouter(platform, nil)
	client := testClient()

	msg := rawMsg(t, messages.TypeConnect, messages.ConnectPayload{})
	require.Error(t, r.Route(context.Background(), client, msg))
	assert.Nil(t, client.Platform)
}

func TestRouteRejectsInvalidMessageType(t *testing.T) {
	r := newTestRouter(&fakePlatform{}, nil)
	client := testClient()

	err := r.Route(context.Background(), client, messages.MT5ConnectMsg{Type: "unknown_op", ClientId: "client-1"})
	assert.Error(t, err)
}

func TestRouteRequiresPlatformSession(t *testing.T) {
	r := newTestRouter(&fakePlatform{}, nil)
	client := testClient()

	err := r.Route(context.Background(), client, rawMsg(t, messages.TypeAccountInfo, nil))
	assert.Error(t, err)
}

func TestRoutePlaceOrderForwardsNotification(t *testing.T) {
	platform := &fakePlatform{orderResult: &messages.OrderResult{Order: 777, Price: 1.10500}}
	notifier := &fakeNotifier{}
	r := newTestRouter(platform, notifier)
	client := testClient()
	client.Platform = platform

	msg := rawMsg(t, messages.TypePlaceOrder, messages.PlaceOrderPayload{
		Symbol: "EURUSD", Action: messages.ActionBuy, Volume: 1.0, Strategy: "trend",
	})
	require.NoError(t, r.Route(context.Background(), client, msg))

	require.Len(t, notifier.opened, 1)
	assert.Equal(t, "EURUSD", notifier.opened[0].symbol)
	assert.Equal(t, 1.10500, notifier.opened[0].price)
	assert.Equal(t, "trend", notifier.opened[0].strategy)

	res := receiveResponse(t, client)
	assert.Equal(t, messages.TypePlaceOrder, res.Type)
	assert.Equal(t, messages.StatusSuccess, res.Status)
}

func TestRoutePlaceOrderFailureNotifiesError(t *testing.T) {
	platform := &fakePlatform{orderErr: errors.New("order rejected")}
	notifier := &fakeNotifier{}
	r := newTestRouter(platform, notifier)
	client := testClient()
	client.Platform = platform

	msg := rawMsg(t, messages.TypePlaceOrder, messages.PlaceOrderPayload{
		Symbol: "EURUSD", Action: messages.ActionBuy, Volume: 1.0,
	})
	require.Error(t, r.Route(context.Background(), client, msg))

	assert.Empty(t, notifier.opened)
	require.Len(t, notifier.errors, 1)
	assert.Contains(t, notifier.errors[0], "EURUSD")
}

func TestRouteClosePositionForwardsNotification(t *testing.T) {
	platform := &fakePlatform{closeResult: &messages.CloseResult{
		PositionId: 42, Symbol: "EURUSD", Volume: 1.0, Price: 1.10750, Profit: 12.5,
	}}
	notifier := &fakeNotifier{}
	r := newTestRouter(platform, notifier)
	client := testClient()
	client.Platform = platform

	msg := rawMsg(t, messages.TypeClosePosition, messages.ClosePositionPayload{
		PositionId: 42, Reason: "take profit",
	})
	require.NoError(t, r.Route(context.Background(), client, msg))

	require.Len(t, notifier.closed, 1)
	assert.Equal(t, int64(42), notifier.closed[0].positionID)
	assert.Equal(t, 12.5, notifier.closed[0].profit)
	assert.Equal(t, "take profit", notifier.closed[0].reason)
}

func TestRouteDailyReport(t *testing.T) {
	notifier := &fakeNotifier{}
	r := newTestRouter(&fakePlatform{}, notifier)
	client := testClient()

	require.NoError(t, r.Route(context.Background(), client, rawMsg(t, messages.TypeDailyReport, nil)))
	assert.Equal(t, 1, notifier.reports)
}

func TestRouteDailyReportWithoutNotifier(t *testing.T) {
	r := newTestRouter(&fakePlatform{}, nil)
	client := testClient()

	assert.Error(t, r.Route(context.Background(), client, rawMsg(t, messages.TypeDailyReport, nil)))
}

func TestRouteDoesNotBlockOnFullSendBuffer(t *testing.T) {
	platform := &fakePlatform{}
	r := newTestRouter(platform, nil)
	client := &models.MT5ConnectClient{ID: "client-1", Send: make(chan []byte, 1)}
	client.Send <- []byte("stale")

	msg := rawMsg(t, messages.TypeConnect, messages.ConnectPayload{
		Login: 12345, Password: "x", Server: "s", TerminalPath: "/terminal",
	})

	done := make(chan error, 1)
	go func() {
		done <- r.Route(context.Background(), client, msg)
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("routing stalled on a full client send buffer")
	}
}

func TestRouteDisconnectReleasesSession(t *testing.T) {
	platform := &fakePlatform{connected: true}
	r := newTestRouter(platform, nil)
	client := testClient()
	client.Platform = platform

	require.NoError(t, r.Route(context.Background(), client, rawMsg(t, messages.TypeDisconnect, nil)))

	assert.True(t, platform.disconnected)
	assert.Nil(t, client.Platform)
}

package notify

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"mt5-connect/internal/messages"

	"github.com/rs/zerolog"
)

const (
	// DefaultEndpoint is the Telegram Bot API host.
	DefaultEndpoint = "https://api.telegram.org"

	// SendTimeout bounds every delivery attempt.
	SendTimeout = 10 * time.Second
)

// TradeStore is the capability the daily report needs from the database
// collaborator.
type TradeStore interface {
	GetTrades(limit int) ([]messages.TradeRecord, error)
}

// TelegramBot delivers trade lifecycle notifications to a Telegram chat. A
// delivery failure is logged and reported as an error return; it never panics
// into the caller.
type TelegramBot struct {
	token    string
	chatID   string
	endpoint string
	enabled  bool
	client   *http.Client
	log      zerolog.Logger
}

// NewTelegramBot creates an enabled bot for the given credentials. Both the
// token and the chat id are required.
func NewTelegramBot(token, chatID string, log zerolog.Logger) (*TelegramBot, error) {
	if token == "" || chatID == "" {
		return nil, errors.New("telegram bot token and chat id are required")
	}
	return &TelegramBot{
		token:    token,
		chatID:   chatID,
		endpoint: DefaultEndpoint,
		enabled:  true,
		client:   &http.Client{Timeout: SendTimeout},
		log:      log.With().Str("component", "telegram_bot").Logger(),
	}, nil
}

// SetEndpoint overrides the Bot API host, e.g. for a local proxy.
func (b *TelegramBot) SetEndpoint(endpoint string) {
	if endpoint != "" {
		b.endpoint = endpoint
	}
}

// Enabled reports whether the bot holds credentials and may send.
func (b *TelegramBot) Enabled() bool {
	return b.enabled
}

// SendMessage delivers text to the configured chat. A 502 from the Bot API is
// retried exactly once; the retry's outcome is final. Transport failures are
// reported without retrying.
func (b *TelegramBot) SendMessage(text string) error {
	if !b.enabled {
		b.log.Warn().Msg("send attempted without configured telegram credentials")
		return errors.New("telegram bot is not configured")
	}

	status, body, err := b.post(text)
	if err != nil {
		b.log.Error().Err(err).Msg("failed to reach telegram api")
		return fmt.Errorf("telegram api unreachable: %w", err)
	}
	if status == http.StatusOK {
		b.log.Info().Str("text", text).Msg("notification delivered")
		return nil
	}

	b.log.Error().Int("status", status).Str("body", string(body)).Msg("telegram api returned an error")

	if status == http.StatusBadGateway {
		b.log.Warn().Msg("bad gateway from telegram api, retrying once")
		status, body, err = b.post(text)
		if err != nil {
			b.log.Error().Err(err).Msg("failed to reach telegram api on retry")
			return fmt.Errorf("telegram api unreachable: %w", err)
		}
		if status == http.StatusOK {
			b.log.Info().Str("text", text).Msg("notification delivered on retry")
			return nil
		}
		b.log.Error().Int("status", status).Str("body", string(body)).Msg("telegram api returned an error on retry")
	}

	return fmt.Errorf("telegram api returned status %d", status)
}

func (b *TelegramBot) post(text string) (int, []byte, error) {
	params := url.Values{
		"chat_id":    {b.chatID},
		"text":       {text},
		"parse_mode": {"HTML"},
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", b.endpoint, b.token)
	resp, err := b.client.PostForm(endpoint, params)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, body, nil
}

// NotifyTradeOpened reports a newly opened trade.
func (b *TelegramBot) NotifyTradeOpened(symbol, action string, volume, price, stopLoss, takeProfit float64, strategy string) error {
	direction := "Покупка"
	if action == messages.ActionSell {
		direction = "Продажа"
	}
	message := fmt.Sprintf(
		"<b>📈 Открыта сделка</b>\n"+
			"Стратегия: <code>%s</code>\n"+
			"Символ: <code>%s</code>\n"+
			"Действие: <code>%s</code>\n"+
			"Объем: <code>%.2f</code>\n"+
			"Цена: <code>%.5f</code>\n"+
			"Стоп-лосс: <code>%.5f</code>\n"+
			"Тейк-профит: <code>%.5f</code>",
		strategy, symbol, direction, volume, price, stopLoss, takeProfit,
	)
	return b.SendMessage(message)
}

// NotifyTradeClosed reports a closed trade with its realized profit.
func (b *TelegramBot) NotifyTradeClosed(symbol string, positionID int64, profit, price float64, reason string) error {
	profitColor := "🟢"
	if profit < 0 {
		profitColor = "🔴"
	}
	message := fmt.Sprintf(
		"<b>📉 Закрыта сделка</b>\n"+
			"Символ: <code>%s</code>\n"+
			"ID позиции: <code>%d</code>\n"+
			"Прибыль: %s <code>%.2f</code>\n"+
			"Цена закрытия: <code>%.5f</code>\n"+
			"Причина: <code>%s</code>",
		symbol, positionID, profitColor, profit, price, reason,
	)
	return b.SendMessage(message)
}

// NotifyError reports an integration error to the chat.
func (b *TelegramBot) NotifyError(errorMessage string) error {
	return b.SendMessage(fmt.Sprintf("<b>⚠️ Ошибка</b>\n<code>%s</code>", errorMessage))
}

// SendDailyReport aggregates today's closed trades from the store and sends a
// summary.
func (b *TelegramBot) SendDailyReport(store TradeStore) error {
	if !b.enabled {
		b.log.Warn().Msg("daily report attempted without configured telegram credentials")
		return errors.New("telegram bot is not configured")
	}
	if store == nil {
		b.log.Warn().Msg("daily report attempted without a trade store")
		return errors.New("no trade store configured")
	}

	trades, err := store.GetTrades(100)
	if err != nil {
		b.log.Error().Err(err).Msg("failed to load trades for daily report")
		return fmt.Errorf("failed to load trades: %w", err)
	}

	now := time.Now()
	total := 0
	profit := 0.0
	for _, trade := range trades {
		exitY, exitM, exitD := trade.ExitTime.Date()
		nowY, nowM, nowD := now.Date()
		if exitY == nowY && exitM == nowM && exitD == nowD {
			total++
			profit += trade.Profit
		}
	}

	message := fmt.Sprintf(
		"📊 Отчет за %s\nСделок: %d\nПрибыль: %.2f",
		now.Format("2006-01-02"), total, profit,
	)
	return b.SendMessage(message)
}

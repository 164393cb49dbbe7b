package config

import (
	"os"

	"github.com/spf13/viper"
)

type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// NewTelegramConfig reads the bot credentials from the environment, falling
// back to the viper configuration.
func NewTelegramConfig() *TelegramConfig {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		token = viper.GetString("telegram.bot-token")
	}
	chatID := os.Getenv("TELEGRAM_CHAT_ID")
	if chatID == "" {
		chatID = viper.GetString("telegram.chat-id")
	}
	return &TelegramConfig{
		BotToken: token,
		ChatID:   chatID,
	}
}

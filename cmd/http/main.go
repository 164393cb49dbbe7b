package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"mt5-connect/config"
	"mt5-connect/internal/adapters"
	"mt5-connect/internal/applications"
	"mt5-connect/internal/clients"
	"mt5-connect/internal/models"
	"mt5-connect/internal/terminal"
	"mt5-connect/notify"
	"mt5-connect/persistence"
	"mt5-connect/router"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func startWsService(clientManager *clients.MT5ConnectClientManager, cfg *config.Config, logger zerolog.Logger) {
	http.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		ws, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			logger.Error().Err(err).Msg("failed to upgrade connection to ws")
			return
		}
		defer ws.Close()

		clientID := req.URL.Query().Get("mt5-connect-client-id")

		client := &models.MT5ConnectClient{
			ID:   clientID,
			Conn: ws,
			Send: make(chan []byte, clients.SendBufferSize),
		}

		clientManager.Register <- client
		defer func() { clientManager.Unregister <- client }()

		for {
			ws.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, rawMsg, err := ws.ReadMessage()
			if err != nil {
				logger.Warn().Err(err).Str("client", clientID).Msg("client read loop stopped")
				break
			}
			clientManager.IncomingClientMessages <- rawMsg
		}
	})

	addr := fmt.Sprintf(":%d", cfg.Servers.MT5Connect.Port)
	logger.Info().Str("addr", addr).Msg("mt5-connect gateway listening")
	log.Fatal(http.ListenAndServe(addr, nil))
}

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		logger.Info().Msg("no .env file found, using environment values")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to read app configurations %v", err)
	}

	mdb := &persistence.MarketDb{}
	if err := mdb.Create(cfg.Database.Path); err != nil {
		log.Fatalf("Failed to initialize market db: %v", err)
	}
	defer mdb.Close()

	tgCfg := config.NewTelegramConfig()
	bot, err := notify.NewTelegramBot(tgCfg.BotToken, tgCfg.ChatID, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram notifications disabled")
	} else {
		bot.SetEndpoint(cfg.Telegram.Endpoint)
	}

	factory := func() adapters.PlatformAdapter {
		bridge := terminal.NewBridge(cfg.Servers.Terminal.Endpoint, cfg.Servers.Terminal.Port, logger)
		return applications.NewMT5Client(bridge, mdb, logger)
	}

	var notifier router.Notifier
	if bot != nil {
		notifier = bot
	}
	msgRouter := router.NewRouter(mdb, notifier, factory, logger)
	clientManager := clients.NewClientManager(msgRouter, logger)

	ctx := context.Background()
	go clientManager.StartClientManagement(ctx)

	if bot != nil {
		schedule := cfg.Telegram.ReportSchedule
		if schedule == "" {
			schedule = "0 21 * * *"
		}
		c := cron.New()
		if _, err := c.AddFunc(schedule, func() {
			if err := bot.SendDailyReport(mdb); err != nil {
				logger.Error().Err(err).Msg("failed to send daily report")
			}
		}); err != nil {
			logger.Error().Err(err).Str("schedule", schedule).Msg("invalid report schedule")
		} else {
			c.Start()
			defer c.Stop()
		}
	}

	startWsService(clientManager, cfg, logger)
}

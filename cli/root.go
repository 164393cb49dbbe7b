package cli

import (
	"context"
	"log"
	"os"

	"mt5-connect/config"
	"mt5-connect/connection"
	"mt5-connect/internal/applications"
	"mt5-connect/persistence"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	platform string
	cfgFile  string
	login    int64
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.mt5connect.yaml)")
	rootCmd.PersistentFlags().StringVarP(&platform, "platform", "p", "mt5", "platform to connect to")
	rootCmd.PersistentFlags().Int64VarP(&login, "login", "l", 0, "Terminal account login (required)")
}

func initConfig() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment/config values")
	}

	viper.SetConfigType("yaml")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to get home dir: %v", err)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".mt5connect")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("Config file not found, using flags/defaults")
		} else {
			log.Fatalf("Config error: %v", err)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:   "mt5-connect",
	Short: "Connect an MT5 trading account and forward trade events to Telegram",
	Run: func(cmd *cobra.Command, args []string) {
		switch platform {
		case "mt5":
			runMT5()
		default:
			log.Fatalf("Unsupported platform: %s", platform)
		}
	},
}

func runMT5() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	ctx := context.Background()

	var store applications.MarketStore
	if cfg, err := config.LoadConfig(); err == nil && cfg.Database.Path != "" {
		mdb := &persistence.MarketDb{}
		if err := mdb.Create(cfg.Database.Path); err != nil {
			log.Fatalf("Failed to initialize market db: %v", err)
		}
		defer mdb.Close()
		store = mdb
	}

	mt5Cfg := config.NewMT5Config(login)
	client, err := connection.EstablishMT5Connection(ctx, mt5Cfg, store, logger)
	if err != nil {
		log.Fatalf("Failed to establish MT5 connection: %v", err)
	}
	defer client.Disconnect(ctx)

	info, err := client.GetAccountInfo(ctx)
	if err != nil {
		log.Fatalf("Failed to retrieve account info: %v", err)
	}
	logger.Info().Int64("login", info.Login).Float64("balance", info.Balance).
		Float64("equity", info.Equity).Int64("leverage", info.Leverage).
		Msg("account snapshot")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

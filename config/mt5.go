package config

import "github.com/spf13/viper"

type MT5Config struct {
	Login        int64
	Password     string
	Server       string
	TerminalPath string
	Endpoint     string
	Port         int32
}

func NewMT5Config(login int64) *MT5Config {
	return &MT5Config{
		Login:        login,
		Password:     viper.GetString("platform.mt5.password"),
		Server:       viper.GetString("platform.mt5.server"),
		TerminalPath: viper.GetString("platform.mt5.terminal-path"),
	}
}

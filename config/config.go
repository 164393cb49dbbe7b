package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Servers struct {
		MT5Connect struct {
			Port int32 `yaml:"port"`
		} `yaml:"mt5connect"`
		Terminal struct {
			Endpoint string `yaml:"endpoint"`
			Port     int32  `yaml:"port"`
		} `yaml:"terminal"`
	} `yaml:"servers"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Telegram struct {
		Endpoint       string `yaml:"endpoint"`
		ReportSchedule string `yaml:"report-schedule"`
	} `yaml:"telegram"`
}

func LoadConfig() (*Config, error) {
	f, err := os.Open("./config.yml")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	err = decoder.Decode(&cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

package volume

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// UseKlines switches the VWAP profile from the static intraday curve
	// to one built from exchange candles.
	UseKlines    bool   `envconfig:"VOLUME_USE_KLINES" default:"false"`
	Quote        string `envconfig:"VOLUME_QUOTE" default:"USDT"`
	LookbackDays int    `envconfig:"VOLUME_LOOKBACK_DAYS" default:"7"`
	Limit        int    `envconfig:"VOLUME_KLINE_LIMIT" default:"1000"`
}

func GetConfig() Config {
	var config Config
	err := envconfig.Process("", &config)
	if err != nil {
		panic(err)
	}
	return config
}

package engine

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	LoopPeriod      time.Duration `envconfig:"LOOP_PERIOD" default:"1s"`
	Brokers         []string      `envconfig:"ENGINE_BROKERS" default:"primary,secondary"`
	AllowedSymbols  []string      `envconfig:"SIGNAL_ALLOWED_SYMBOLS"`
	SymbolBlacklist []string      `envconfig:"SIGNAL_SYMBOL_BLACKLIST"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

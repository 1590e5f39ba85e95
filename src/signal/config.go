package signal

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	MaxQueueSize    int           `envconfig:"SIGNAL_MAX_QUEUE_SIZE" default:"10000"`
	DedupWindow     time.Duration `envconfig:"SIGNAL_DEDUP_WINDOW" default:"60s"`
	CleanupInterval time.Duration `envconfig:"SIGNAL_CLEANUP_INTERVAL" default:"60s"`
	MinQuantity     int64         `envconfig:"SIGNAL_MIN_QUANTITY" default:"1"`
	MaxQuantity     int64         `envconfig:"SIGNAL_MAX_QUANTITY" default:"1000000"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

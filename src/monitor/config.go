package monitor

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	FillTimeout     time.Duration `envconfig:"MONITOR_FILL_TIMEOUT" default:"300s"`
	PartialStall    time.Duration `envconfig:"MONITOR_PARTIAL_STALL" default:"120s"`
	PriceDeviation  float64       `envconfig:"MONITOR_PRICE_DEVIATION" default:"0.02"`
	DuplicateWindow time.Duration `envconfig:"MONITOR_DUPLICATE_WINDOW" default:"60s"`
	SweepInterval   time.Duration `envconfig:"MONITOR_SWEEP_INTERVAL" default:"10s"`

	SlippageWarningBps  float64 `envconfig:"ALERT_SLIPPAGE_WARNING_BPS" default:"20"`
	SlippageCriticalBps float64 `envconfig:"ALERT_SLIPPAGE_CRITICAL_BPS" default:"50"`
	FillRateWarning     float64 `envconfig:"ALERT_FILL_RATE_WARNING" default:"80"`
	FillRateCritical    float64 `envconfig:"ALERT_FILL_RATE_CRITICAL" default:"50"`
}

func GetConfig() Config {
	var config Config
	err := envconfig.Process("", &config)
	if err != nil {
		panic(err)
	}
	return config
}

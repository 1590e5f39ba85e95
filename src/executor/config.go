package executor

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	MaxPositionPct    float64       `envconfig:"RISK_MAX_POSITION_PCT" default:"0.20"`
	MaxSingleOrderQty int64         `envconfig:"RISK_MAX_SINGLE_ORDER_QTY" default:"10000"`
	TotalAsset        int64         `envconfig:"RISK_TOTAL_ASSET" default:"1000000"`
	Blacklist         []string      `envconfig:"RISK_BLACKLIST"`
	MaxSlicePct       float64       `envconfig:"SLICE_MAX_PCT" default:"0.05"`
	MinSliceInterval  time.Duration `envconfig:"SLICE_MIN_INTERVAL" default:"30s"`
	DefaultDuration   time.Duration `envconfig:"SLICE_DEFAULT_DURATION" default:"60m"`
	SlippageBaseBps   float64       `envconfig:"SLIPPAGE_BASE_BPS" default:"5"`
	SlippageMaxBps    float64       `envconfig:"SLIPPAGE_MAX_BPS" default:"50"`
	VolatilityFactor  float64       `envconfig:"SLIPPAGE_VOLATILITY_FACTOR" default:"0.5"`
	UrgencyBps        float64       `envconfig:"SLIPPAGE_URGENCY_BPS" default:"2"`
	DefaultVolatility float64       `envconfig:"EXECUTOR_DEFAULT_VOLATILITY" default:"0.02"`
}

func GetConfig() Config {
	var config Config
	err := envconfig.Process("", &config)
	if err != nil {
		panic(err)
	}
	return config
}

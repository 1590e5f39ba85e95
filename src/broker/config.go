package broker

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	APIKey    string        `envconfig:"BROKER_API_KEY"`
	APISecret string        `envconfig:"BROKER_API_SECRET"`
	BaseURL   string        `envconfig:"BROKER_BASE_URL" default:"http://localhost:8090"`
	WSURL     string        `envconfig:"BROKER_WS_URL"`
	FillProb  float64       `envconfig:"BROKER_MOCK_FILL_PROBABILITY" default:"0.95"`
	FillDelay time.Duration `envconfig:"BROKER_MOCK_FILL_DELAY" default:"100ms"`
	UseMock   bool          `envconfig:"BROKER_USE_MOCK" default:"true"`
}

func GetConfig() Config {
	var config Config
	err := envconfig.Process("", &config)
	if err != nil {
		panic(err)
	}
	return config
}

package volume

import (
	"net/http"
	"strings"
	"time"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// klineFetcher is the slice of goex.API the provider needs.
type klineFetcher interface {
	GetKlineRecords(currency goex.CurrencyPair, period goex.KlinePeriod, size int, optional ...goex.OptionalParameter) ([]goex.Kline, error)
}

// KlineProvider derives an hour-of-day volume profile from recent hourly
// candles fetched from an exchange. It falls back to the static curve
// when the exchange has no usable history for the symbol.
type KlineProvider struct {
	Log      *logger.Entry
	Config   *Config
	exchange klineFetcher
	fallback *StaticProvider
	now      func() time.Time
}

func NewKlineProvider(log *logger.Entry, config *Config) *KlineProvider {
	if log == nil {
		log = logger.NewEntry(logger.StandardLogger())
	}
	if config == nil {
		c := GetConfig()
		config = &c
	}
	apiConfig := &goex.APIConfig{
		HttpClient: http.DefaultClient,
		Endpoint:   binance.GLOBAL_API_BASE_URL,
	}
	return &KlineProvider{
		Log:      log,
		Config:   config,
		exchange: binance.NewWithConfig(apiConfig),
		fallback: NewStaticProvider(),
		now:      time.Now,
	}
}

func (p *KlineProvider) Profile(symbol string, buckets int) ([]decimal.Decimal, error) {
	if buckets <= 0 {
		buckets = 1
	}

	klines, err := p.fetchKlines(symbol)
	if err != nil || len(klines) == 0 {
		p.Log.WithError(err).
			WithField("symbol", symbol).
			Warn("no kline history, using static volume profile")
		return p.fallback.Profile(symbol, buckets)
	}

	// accumulate volume per hour of day, then resample into the
	// requested bucket count
	var hourly [24]float64
	for i := range klines {
		hour := time.Unix(klines[i].Timestamp, 0).UTC().Hour()
		hourly[hour] += klines[i].Vol
	}

	raw := make([]float64, buckets)
	total := 0.0
	for i := range raw {
		hour := i * 24 / buckets
		raw[i] = hourly[hour]
		total += raw[i]
	}
	if total <= 0 {
		return p.fallback.Profile(symbol, buckets)
	}

	return normalize(raw, total), nil
}

func (p *KlineProvider) fetchKlines(symbol string) ([]goex.Kline, error) {
	base := symbol
	if idx := strings.Index(symbol, "/"); idx > 0 {
		base = symbol[:idx]
	}
	pair := goex.NewCurrencyPair(
		goex.Currency{Symbol: base},
		goex.Currency{Symbol: p.Config.Quote},
	)

	const millis = 1000
	end := p.now()
	start := end.Add(-time.Duration(p.Config.LookbackDays) * 24 * time.Hour)

	return p.exchange.GetKlineRecords(
		pair,
		goex.KLINE_PERIOD_1H,
		p.Config.Limit,
		goex.OptionalParameter{}.
			Optional("startTime", start.Unix()*millis).
			Optional("endTime", end.Unix()*millis),
	)
}

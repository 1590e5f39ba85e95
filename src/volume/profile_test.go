package volume

import (
	"testing"
	"time"

	"github.com/nntaoli-project/goex"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumWeights(weights []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, w := range weights {
		total = total.Add(w)
	}
	return total
}

func TestStaticProfileNormalized(t *testing.T) {
	p := NewStaticProvider()

	weights, err := p.Profile("AAPL", 12)
	require.NoError(t, err)
	require.Len(t, weights, 12)

	total := sumWeights(weights)
	diff := total.Sub(decimal.NewFromInt(1)).Abs()
	assert.True(t, diff.LessThan(decimal.NewFromFloat(0.0001)), "weights should sum to ~1, got %s", total)
}

func TestStaticProfileUShaped(t *testing.T) {
	p := NewStaticProvider()

	weights, err := p.Profile("AAPL", 10)
	require.NoError(t, err)

	// edges heavier than the middle
	assert.True(t, weights[0].GreaterThan(weights[5]))
	assert.True(t, weights[9].GreaterThan(weights[4]))
}

func TestStaticProfileSingleBucket(t *testing.T) {
	p := NewStaticProvider()

	weights, err := p.Profile("AAPL", 0)
	require.NoError(t, err)
	require.Len(t, weights, 1)
	assert.True(t, weights[0].Equal(decimal.NewFromInt(1)))
}

type stubFetcher struct {
	klines []goex.Kline
	err    error
}

func (s *stubFetcher) GetKlineRecords(goex.CurrencyPair, goex.KlinePeriod, int, ...goex.OptionalParameter) ([]goex.Kline, error) {
	return s.klines, s.err
}

func TestKlineProfileFromHistory(t *testing.T) {
	base := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	klines := make([]goex.Kline, 0, 24)
	for h := 0; h < 24; h++ {
		vol := 100.0
		if h == 0 {
			vol = 1000.0
		}
		klines = append(klines, goex.Kline{
			Timestamp: base.Add(time.Duration(h) * time.Hour).Unix(),
			Vol:       vol,
		})
	}

	p := &KlineProvider{
		Log:      logrus.NewEntry(logrus.StandardLogger()),
		Config:   &Config{Quote: "USDT", LookbackDays: 7, Limit: 1000},
		exchange: &stubFetcher{klines: klines},
		fallback: NewStaticProvider(),
		now:      func() time.Time { return base.Add(24 * time.Hour) },
	}

	weights, err := p.Profile("BTC/USDT", 24)
	require.NoError(t, err)
	require.Len(t, weights, 24)

	// the heavy hour dominates
	for i := 1; i < 24; i++ {
		assert.True(t, weights[0].GreaterThan(weights[i]))
	}

	total := sumWeights(weights)
	diff := total.Sub(decimal.NewFromInt(1)).Abs()
	assert.True(t, diff.LessThan(decimal.NewFromFloat(0.0001)))
}

func TestKlineProfileFallsBackOnError(t *testing.T) {
	p := &KlineProvider{
		Log:      logrus.NewEntry(logrus.StandardLogger()),
		Config:   &Config{Quote: "USDT", LookbackDays: 7, Limit: 1000},
		exchange: &stubFetcher{err: assert.AnError},
		fallback: NewStaticProvider(),
		now:      time.Now,
	}

	weights, err := p.Profile("AAPL", 6)
	require.NoError(t, err)
	require.Len(t, weights, 6)
	assert.True(t, weights[0].GreaterThan(weights[2]))
}

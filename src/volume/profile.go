// Package volume supplies intraday volume profiles used to weight
// VWAP slice schedules.
package volume

import (
	"math"

	"github.com/shopspring/decimal"
)

// ProfileSource yields per-bucket volume weights for a symbol. The
// returned weights are normalized to sum to 1.
type ProfileSource interface {
	Profile(symbol string, buckets int) ([]decimal.Decimal, error)
}

// StaticProvider produces a U-shaped intraday curve: heavier volume near
// the open and close, lighter mid-session. It needs no market data and is
// the fallback when no history is available.
type StaticProvider struct{}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{}
}

func (p *StaticProvider) Profile(_ string, buckets int) ([]decimal.Decimal, error) {
	if buckets <= 0 {
		buckets = 1
	}

	raw := make([]float64, buckets)
	total := 0.0
	for i := range raw {
		// parabola over [0,1] with minimum at the session midpoint
		x := (float64(i) + 0.5) / float64(buckets)
		raw[i] = 1.0 + 2.0*math.Pow(2*x-1, 2)
		total += raw[i]
	}

	return normalize(raw, total), nil
}

func normalize(raw []float64, total float64) []decimal.Decimal {
	weights := make([]decimal.Decimal, len(raw))
	if total <= 0 {
		even := decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(len(raw))))
		for i := range weights {
			weights[i] = even
		}
		return weights
	}
	for i, v := range raw {
		weights[i] = decimal.NewFromFloat(v / total)
	}
	return weights
}

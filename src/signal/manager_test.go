package signal

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"executioncore/src/model"
)

func testSignal(id, strategy, symbol, side string, quantity int64, priority int, ts time.Time) *model.Signal {
	return &model.Signal{
		SignalID:   id,
		StrategyID: strategy,
		Symbol:     symbol,
		Side:       side,
		Quantity:   decimal.NewFromInt(quantity),
		PriceType:  model.PriceTypeMarket,
		Priority:   priority,
		Timestamp:  ts,
		Status:     model.SignalStatusPending,
	}
}

func newTestManager(opts ...Option) *Manager {
	cfg := Config{
		MaxQueueSize:    100,
		DedupWindow:     60 * time.Second,
		CleanupInterval: time.Minute,
		MinQuantity:     1,
		MaxQuantity:     1000000,
	}
	return NewManager(nil, cfg, opts...)
}

func TestPriorityOrdering(t *testing.T) {
	m := newTestManager()
	base := time.Now()

	// distinct strategies keep the deduplicator out of the way
	priorities := []int{5, 2, 2, 6}
	ids := []string{"sig-a", "sig-b", "sig-c", "sig-d"}
	for i, p := range priorities {
		sig := testSignal(ids[i], "strat-"+ids[i], "AAPL", model.SideBuy, 100, p, base.Add(time.Duration(i)*time.Millisecond))
		result := m.Receive(sig)
		assert.True(t, result.Valid, "signal %s should be accepted", ids[i])
	}

	var popped []string
	for {
		sig := m.NextSignal()
		if sig == nil {
			break
		}
		assert.Equal(t, model.SignalStatusProcessing, sig.Status)
		popped = append(popped, sig.SignalID)
	}

	// priority 2 first, ties in arrival order, then 5 and 6
	assert.Equal(t, []string{"sig-b", "sig-c", "sig-a", "sig-d"}, popped)
}

func TestMergeCombinesQuantities(t *testing.T) {
	m := newTestManager()
	base := time.Now()

	first := testSignal("sig-1", "momentum_v1", "AAPL", model.SideBuy, 100, 4, base)
	second := testSignal("sig-2", "momentum_v1", "AAPL", model.SideBuy, 50, 3, base.Add(time.Second))

	assert.True(t, m.Receive(first).Valid)

	result := m.Receive(second)
	assert.True(t, result.Valid)
	merged := result.Signal
	assert.NotEqual(t, "sig-1", merged.SignalID)
	assert.NotEqual(t, "sig-2", merged.SignalID)

	// quantity is conserved, newer signal's priority wins
	assert.True(t, merged.Quantity.Equal(decimal.NewFromInt(150)), "merged quantity %s", merged.Quantity)
	assert.Equal(t, 3, merged.Priority)
	assert.Equal(t, []string{"sig-1", "sig-2"}, merged.Metadata["merged_from"])

	// the superseded original is gone from the queue
	next := m.NextSignal()
	if assert.NotNil(t, next) {
		assert.Equal(t, merged.SignalID, next.SignalID)
	}
	assert.Nil(t, m.NextSignal())

	status := m.Status()
	assert.Equal(t, 1, status.Stats.TotalMerged)
}

func TestMergeSkipsOppositeSides(t *testing.T) {
	m := newTestManager()
	base := time.Now()

	assert.True(t, m.Receive(testSignal("sig-1", "momentum_v1", "AAPL", model.SideBuy, 100, 4, base)).Valid)
	assert.True(t, m.Receive(testSignal("sig-2", "momentum_v1", "AAPL", model.SideSell, 100, 4, base.Add(time.Second))).Valid)

	assert.Equal(t, 2, m.Status().QueueSize)
	assert.Equal(t, 0, m.Status().Stats.TotalMerged)
}

func TestDuplicateSignalIDDropped(t *testing.T) {
	m := newTestManager()
	base := time.Now()

	assert.True(t, m.Receive(testSignal("sig-1", "momentum_v1", "AAPL", model.SideBuy, 100, 4, base)).Valid)

	dup := testSignal("sig-1", "other_strategy", "MSFT", model.SideSell, 10, 2, base.Add(time.Second))
	result := m.Receive(dup)
	assert.False(t, result.Valid)
	assert.Equal(t, ErrCodeDuplicateSignal, result.ErrorCode)
	assert.Equal(t, 1, m.Status().Stats.TotalDuplicates)
	assert.Equal(t, 1, m.Status().QueueSize)
}

func TestQueueFullEvictsWorst(t *testing.T) {
	cfg := Config{
		MaxQueueSize:    2,
		DedupWindow:     60 * time.Second,
		CleanupInterval: time.Minute,
		MinQuantity:     1,
		MaxQuantity:     1000000,
	}
	m := NewManager(nil, cfg)
	base := time.Now()

	assert.True(t, m.Receive(testSignal("sig-keep", "s1", "AAPL", model.SideBuy, 100, 3, base)).Valid)
	assert.True(t, m.Receive(testSignal("sig-worst", "s2", "MSFT", model.SideBuy, 100, 6, base.Add(time.Millisecond))).Valid)
	assert.True(t, m.Receive(testSignal("sig-urgent", "s3", "TSLA", model.SideSell, 100, 1, base.Add(2*time.Millisecond))).Valid)

	status := m.Status()
	assert.Equal(t, 2, status.QueueSize)
	assert.Equal(t, 1, status.Stats.TotalEvicted)

	evicted := m.GetSignal("sig-worst")
	if assert.NotNil(t, evicted) {
		assert.Equal(t, model.SignalStatusCancelled, evicted.Status)
		assert.Equal(t, "queue full", evicted.Metadata["cancel_reason"])
	}

	assert.Equal(t, "sig-urgent", m.NextSignal().SignalID)
	assert.Equal(t, "sig-keep", m.NextSignal().SignalID)
	assert.Nil(t, m.NextSignal())
}

func TestSweepExpired(t *testing.T) {
	current := time.Now()
	m := newTestManager(WithClock(func() time.Time { return current }))

	sig := testSignal("sig-1", "momentum_v1", "AAPL", model.SideBuy, 100, 4, current)
	expireAt := current.Add(30 * time.Second)
	sig.ExpireAt = &expireAt

	assert.True(t, m.Receive(sig).Valid)
	assert.Equal(t, 1, m.Status().QueueSize)

	current = current.Add(time.Minute)
	m.SweepExpired()

	assert.Equal(t, 0, m.Status().QueueSize)
	assert.Equal(t, 1, m.Status().Stats.TotalExpired)
	assert.Equal(t, model.SignalStatusExpired, m.GetSignal("sig-1").Status)
	assert.Nil(t, m.NextSignal())
}

func TestNextSignalSkipsExpired(t *testing.T) {
	current := time.Now()
	m := newTestManager(WithClock(func() time.Time { return current }))

	sig := testSignal("sig-1", "momentum_v1", "AAPL", model.SideBuy, 100, 4, current)
	expireAt := current.Add(30 * time.Second)
	sig.ExpireAt = &expireAt
	assert.True(t, m.Receive(sig).Valid)

	current = current.Add(time.Minute)
	assert.Nil(t, m.NextSignal())
	assert.Equal(t, model.SignalStatusExpired, m.GetSignal("sig-1").Status)
}

func TestCancelQueuedSignal(t *testing.T) {
	m := newTestManager()

	sig := testSignal("sig-1", "momentum_v1", "AAPL", model.SideBuy, 100, 4, time.Now())
	assert.True(t, m.Receive(sig).Valid)

	assert.True(t, m.Cancel("sig-1", "operator request"))
	assert.False(t, m.Cancel("sig-1", "again"), "terminal signal must not cancel twice")
	assert.False(t, m.Cancel("missing", "unknown id"))

	cancelled := m.GetSignal("sig-1")
	assert.Equal(t, model.SignalStatusCancelled, cancelled.Status)
	assert.Equal(t, "operator request", cancelled.Metadata["cancel_reason"])
	assert.Nil(t, m.NextSignal())
}

func TestMarkSentFiresHook(t *testing.T) {
	var ready []string
	m := newTestManager(WithSignalReadyHook(func(sig *model.Signal) {
		ready = append(ready, sig.SignalID)
	}))

	assert.True(t, m.Receive(testSignal("sig-1", "momentum_v1", "AAPL", model.SideBuy, 100, 4, time.Now())).Valid)

	sig := m.NextSignal()
	m.MarkSent(sig.SignalID)

	assert.Equal(t, model.SignalStatusSentToExecutor, sig.Status)
	assert.Equal(t, []string{"sig-1"}, ready)
	assert.Equal(t, 1, m.Status().Stats.TotalSent)
}

func TestValidationRejections(t *testing.T) {
	validator := NewValidator([]string{"AAPL", "MSFT"}, []string{"MEME"}, decimal.NewFromInt(10), decimal.NewFromInt(1000))
	m := newTestManager(WithValidator(validator))
	now := time.Now()

	cases := []struct {
		name string
		sig  *model.Signal
		code string
	}{
		{"missing symbol", testSignal("v-1", "s", "", model.SideBuy, 100, 4, now), ErrCodeMissingSymbol},
		{"bad side", testSignal("v-2", "s", "AAPL", "HOLD", 100, 4, now), ErrCodeInvalidSide},
		{"too small", testSignal("v-3", "s", "AAPL", model.SideBuy, 5, 4, now), ErrCodeQuantityTooSmall},
		{"too large", testSignal("v-4", "s", "AAPL", model.SideBuy, 5000, 4, now), ErrCodeQuantityTooLarge},
		{"not allowed", testSignal("v-5", "s", "TSLA", model.SideBuy, 100, 4, now), ErrCodeSymbolNotAllowed},
		{"bad priority", testSignal("v-6", "s", "AAPL", model.SideBuy, 100, 9, now), ErrCodeInvalidPriority},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := m.Receive(tc.sig)
			assert.False(t, result.Valid)
			assert.Equal(t, tc.code, result.ErrorCode)
			assert.Equal(t, model.SignalStatusRejected, tc.sig.Status)
		})
	}

	limit := testSignal("v-7", "s", "AAPL", model.SideBuy, 100, 4, now)
	limit.PriceType = model.PriceTypeLimit
	result := m.Receive(limit)
	assert.False(t, result.Valid)
	assert.Equal(t, ErrCodeMissingLimitPrice, result.ErrorCode)

	assert.Equal(t, 0, m.Status().QueueSize)
}

func TestBlacklistedSymbolRejected(t *testing.T) {
	validator := NewValidator(nil, []string{"MEME"}, decimal.NewFromInt(1), decimal.NewFromInt(1000000))
	m := newTestManager(WithValidator(validator))

	result := m.Receive(testSignal("sig-1", "s", "MEME", model.SideBuy, 100, 4, time.Now()))
	assert.False(t, result.Valid)
	assert.Equal(t, ErrCodeBlacklistedSymbol, result.ErrorCode)
}

func TestStatusDistributions(t *testing.T) {
	m := newTestManager()
	base := time.Now()

	assert.True(t, m.Receive(testSignal("sig-1", "s1", "AAPL", model.SideBuy, 100, 2, base)).Valid)
	assert.True(t, m.Receive(testSignal("sig-2", "s2", "AAPL", model.SideSell, 100, 2, base)).Valid)
	assert.True(t, m.Receive(testSignal("sig-3", "s3", "MSFT", model.SideBuy, 100, 5, base)).Valid)

	status := m.Status()
	assert.Equal(t, 3, status.QueueSize)
	assert.Equal(t, 2, status.PriorityDistribution[2])
	assert.Equal(t, 1, status.PriorityDistribution[5])
	assert.Equal(t, 2, status.SymbolDistribution["AAPL"])
	assert.Equal(t, 1, status.SymbolDistribution["MSFT"])
}

func TestClearQueue(t *testing.T) {
	m := newTestManager()
	base := time.Now()

	assert.True(t, m.Receive(testSignal("sig-1", "s1", "AAPL", model.SideBuy, 100, 2, base)).Valid)
	assert.True(t, m.Receive(testSignal("sig-2", "s2", "MSFT", model.SideBuy, 100, 3, base)).Valid)

	m.ClearQueue()

	assert.Equal(t, 0, m.Status().QueueSize)
	assert.Nil(t, m.NextSignal())
	assert.Equal(t, model.SignalStatusCancelled, m.GetSignal("sig-1").Status)
}

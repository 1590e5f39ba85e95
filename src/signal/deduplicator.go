package signal

import (
	"time"

	"executioncore/src/model"
)

type dedupKey struct {
	symbol     string
	side       string
	strategyID string
}

// Deduplicator merges same-direction signals for the same
// (symbol, side, strategy) key inside a rolling window, and absorbs
// signals whose id has already been processed.
//
// Not safe for concurrent use; the Manager serializes access.
type Deduplicator struct {
	window       time.Duration
	recent       map[dedupKey][]*model.Signal
	processedIDs map[string]struct{}
}

// NewDeduplicator creates a deduplicator with the given rolling window.
func NewDeduplicator(window time.Duration) *Deduplicator {
	return &Deduplicator{
		window:       window,
		recent:       make(map[dedupKey][]*model.Signal),
		processedIDs: make(map[string]struct{}),
	}
}

func keyOf(sig *model.Signal) dedupKey {
	return dedupKey{symbol: sig.Symbol, side: sig.Side, strategyID: sig.StrategyID}
}

// IsDuplicate reports whether the signal id was already processed or
// merged away.
func (d *Deduplicator) IsDuplicate(signalID string) bool {
	_, ok := d.processedIDs[signalID]
	return ok
}

func (d *Deduplicator) cleanup(now time.Time) {
	cutoff := now.Add(-d.window)
	for key, signals := range d.recent {
		kept := signals[:0]
		for _, s := range signals {
			if s.Timestamp.After(cutoff) {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(d.recent, key)
		} else {
			d.recent[key] = kept
		}
	}
}

// AddAndMerge registers the signal and merges it with a window-recent
// signal sharing its key. It returns the signal to enqueue together with
// the signal it superseded, or (nil, nil) for a duplicate. Merging only
// applies to same-side signals; the dedup key already pins the side, so
// any key match qualifies.
func (d *Deduplicator) AddAndMerge(sig *model.Signal, now time.Time) (merged, superseded *model.Signal) {
	if d.IsDuplicate(sig.SignalID) {
		return nil, nil
	}

	d.cleanup(now)

	key := keyOf(sig)
	recent := d.recent[key]

	for i, existing := range recent {
		if existing.Side != sig.Side {
			continue
		}
		m := d.merge(existing, sig, now)
		recent[i] = m
		d.processedIDs[sig.SignalID] = struct{}{}
		d.processedIDs[m.SignalID] = struct{}{}
		return m, existing
	}

	d.recent[key] = append(recent, sig)
	d.processedIDs[sig.SignalID] = struct{}{}
	return sig, nil
}

// merge combines two same-side signals: quantities add, the newer
// signal's price, priority and price type win, and the expiry becomes
// the earlier of the two.
func (d *Deduplicator) merge(a, b *model.Signal, now time.Time) *model.Signal {
	newer := b
	if a.Timestamp.After(b.Timestamp) {
		newer = a
	}

	var expireAt *time.Time
	switch {
	case a.ExpireAt != nil && b.ExpireAt != nil:
		e := *a.ExpireAt
		if b.ExpireAt.Before(e) {
			e = *b.ExpireAt
		}
		expireAt = &e
	case a.ExpireAt != nil:
		e := *a.ExpireAt
		expireAt = &e
	case b.ExpireAt != nil:
		e := *b.ExpireAt
		expireAt = &e
	}

	return &model.Signal{
		SignalID:   model.MergedSignalID(a.SignalID, b.SignalID),
		StrategyID: a.StrategyID,
		Symbol:     a.Symbol,
		Side:       a.Side,
		Quantity:   a.Quantity.Add(b.Quantity),
		PriceType:  newer.PriceType,
		Priority:   newer.Priority,
		Timestamp:  now,
		Status:     model.SignalStatusValidated,
		LimitPrice: newer.LimitPrice,
		ExpireAt:   expireAt,
		Metadata: map[string]any{
			"merged_from":         []string{a.SignalID, b.SignalID},
			"original_quantity_1": a.Quantity.String(),
			"original_quantity_2": b.Quantity.String(),
		},
	}
}

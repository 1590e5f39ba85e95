package signal

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"executioncore/src/model"
)

// queueEntry orders signals by (priority ascending, timestamp ascending),
// with a monotonic sequence number breaking remaining ties in strict
// insertion order.
type queueEntry struct {
	priority  int
	timestamp time.Time
	seq       uint64
	signalID  string
}

type signalQueue []*queueEntry

func (q signalQueue) Len() int { return len(q) }

func (q signalQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority < q[j].priority
	}
	if !q[i].timestamp.Equal(q[j].timestamp) {
		return q[i].timestamp.Before(q[j].timestamp)
	}
	return q[i].seq < q[j].seq
}

func (q signalQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *signalQueue) Push(x any) { *q = append(*q, x.(*queueEntry)) }

func (q *signalQueue) Pop() any {
	old := *q
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return entry
}

// Stats are the manager's running counters.
type Stats struct {
	TotalReceived   int `json:"total_received"`
	TotalValidated  int `json:"total_validated"`
	TotalRejected   int `json:"total_rejected"`
	TotalDuplicates int `json:"total_duplicates"`
	TotalMerged     int `json:"total_merged"`
	TotalSent       int `json:"total_sent"`
	TotalExpired    int `json:"total_expired"`
	TotalEvicted    int `json:"total_evicted"`
}

// QueueStatus is a read-only snapshot of the queue, suitable for polling.
type QueueStatus struct {
	QueueSize            int            `json:"queue_size"`
	MaxQueueSize         int            `json:"max_queue_size"`
	PriorityDistribution map[int]int    `json:"priority_distribution"`
	SymbolDistribution   map[string]int `json:"symbol_distribution"`
	Stats                Stats          `json:"stats"`
}

// Manager owns the signal intake pipeline: validation, deduplication,
// priority queueing and lifecycle transitions. All mutable state is
// guarded by a single mutex; the expiry sweep runs on its own goroutine.
type Manager struct {
	log       *logrus.Entry
	validator *Validator
	dedup     *Deduplicator

	onSignalReady func(*model.Signal)

	mu           sync.Mutex
	queue        signalQueue
	signals      map[string]*model.Signal
	seq          uint64
	queuedCount  int
	maxQueueSize int
	stats        Stats

	cleanupInterval time.Duration
	now             func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithValidator overrides the default validator.
func WithValidator(v *Validator) Option {
	return func(m *Manager) { m.validator = v }
}

// WithDeduplicator overrides the default deduplicator.
func WithDeduplicator(d *Deduplicator) Option {
	return func(m *Manager) { m.dedup = d }
}

// WithSignalReadyHook registers the callback invoked when a signal is
// marked sent to the executor.
func WithSignalReadyHook(fn func(*model.Signal)) Option {
	return func(m *Manager) { m.onSignalReady = fn }
}

// WithClock overrides the manager's clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a signal manager from config.
func NewManager(logger *logrus.Entry, cfg Config, opts ...Option) *Manager {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	m := &Manager{
		log:             logger,
		signals:         make(map[string]*model.Signal),
		maxQueueSize:    cfg.MaxQueueSize,
		cleanupInterval: cfg.CleanupInterval,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.validator == nil {
		m.validator = NewValidator(nil, nil,
			decimal.NewFromInt(cfg.MinQuantity), decimal.NewFromInt(cfg.MaxQuantity))
	}
	if m.dedup == nil {
		m.dedup = NewDeduplicator(cfg.DedupWindow)
	}
	return m
}

// Start launches the periodic expiry sweep. It returns immediately; the
// sweep stops when ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	ticker := time.NewTicker(m.cleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				m.log.Info("signal manager sweep stopped")
				return
			case <-ticker.C:
				m.SweepExpired()
			}
		}
	}()
	m.log.Info("signal manager started")
}

// Receive validates, deduplicates and enqueues a signal. The result is
// returned synchronously; invalid and duplicate signals are never
// enqueued.
func (m *Manager) Receive(sig *model.Signal) ValidationResult {
	m.mu.Lock()
	m.stats.TotalReceived++

	now := m.now()
	result := m.validator.Validate(sig, now)
	if !result.Valid {
		m.stats.TotalRejected++
		sig.Status = model.SignalStatusRejected
		m.mu.Unlock()
		m.log.WithFields(logrus.Fields{
			"signal_id": sig.SignalID,
			"code":      result.ErrorCode,
		}).Warn("signal validation failed")
		return result
	}
	sig.Status = model.SignalStatusValidated
	m.stats.TotalValidated++

	merged, superseded := m.dedup.AddAndMerge(sig, now)
	if merged == nil {
		m.stats.TotalDuplicates++
		m.mu.Unlock()
		m.log.WithField("signal_id", sig.SignalID).Debug("duplicate signal dropped")
		return invalid(ErrCodeDuplicateSignal, "signal already processed")
	}

	if superseded != nil {
		m.stats.TotalMerged++
		m.removeQueuedLocked(superseded.SignalID)
	}

	m.enqueueLocked(merged)
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{
		"signal_id": merged.SignalID,
		"symbol":    merged.Symbol,
		"side":      merged.Side,
		"priority":  merged.Priority,
	}).Info("signal queued")
	return ValidationResult{Valid: true, Signal: merged}
}

func (m *Manager) enqueueLocked(sig *model.Signal) {
	if m.queuedCount >= m.maxQueueSize {
		m.log.WithField("max_queue_size", m.maxQueueSize).Warn("signal queue full, evicting worst-priority signal")
		m.evictWorstLocked()
	}

	m.seq++
	heap.Push(&m.queue, &queueEntry{
		priority:  sig.Priority,
		timestamp: sig.Timestamp,
		seq:       m.seq,
		signalID:  sig.SignalID,
	})
	m.signals[sig.SignalID] = sig
	sig.Status = model.SignalStatusQueued
	m.queuedCount++
}

// removeQueuedLocked drops a queued signal that was superseded by a merge.
// Its heap entry is skipped lazily by NextSignal.
func (m *Manager) removeQueuedLocked(signalID string) {
	sig, ok := m.signals[signalID]
	if !ok || sig.Status != model.SignalStatusQueued {
		return
	}
	delete(m.signals, signalID)
	m.queuedCount--
}

// evictWorstLocked cancels the single worst-priority queued signal to
// make room. Among equal priorities the most recently queued one goes.
func (m *Manager) evictWorstLocked() {
	worstIdx := -1
	for i, entry := range m.queue {
		sig, ok := m.signals[entry.signalID]
		if !ok || sig.Status != model.SignalStatusQueued {
			continue
		}
		if worstIdx == -1 {
			worstIdx = i
			continue
		}
		w := m.queue[worstIdx]
		if entry.priority > w.priority || (entry.priority == w.priority && entry.seq > w.seq) {
			worstIdx = i
		}
	}
	if worstIdx == -1 {
		return
	}

	entry := m.queue[worstIdx]
	m.queue = append(m.queue[:worstIdx], m.queue[worstIdx+1:]...)
	heap.Init(&m.queue)

	if sig, ok := m.signals[entry.signalID]; ok {
		sig.Status = model.SignalStatusCancelled
		if sig.Metadata == nil {
			sig.Metadata = map[string]any{}
		}
		sig.Metadata["cancel_reason"] = "queue full"
		m.queuedCount--
		m.stats.TotalEvicted++
		m.log.WithField("signal_id", entry.signalID).Warn("signal evicted: queue full")
	}
}

// NextSignal pops the highest-priority queued signal and transitions it
// to PROCESSING. Expired entries are marked EXPIRED and skipped. Returns
// nil when the queue is empty.
func (m *Manager) NextSignal() *model.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for m.queue.Len() > 0 {
		entry := heap.Pop(&m.queue).(*queueEntry)
		sig, ok := m.signals[entry.signalID]
		if !ok || sig.Status != model.SignalStatusQueued {
			continue
		}
		m.queuedCount--
		if sig.IsExpired(now) {
			sig.Status = model.SignalStatusExpired
			m.stats.TotalExpired++
			continue
		}
		sig.Status = model.SignalStatusProcessing
		return sig
	}
	return nil
}

// MarkSent records the terminal hand-off to the executor and fires the
// ready-for-execution hook.
func (m *Manager) MarkSent(signalID string) {
	m.mu.Lock()
	sig, ok := m.signals[signalID]
	if !ok || sig.IsTerminal() {
		m.mu.Unlock()
		return
	}
	sig.Status = model.SignalStatusSentToExecutor
	m.stats.TotalSent++
	hook := m.onSignalReady
	m.mu.Unlock()

	m.log.WithField("signal_id", signalID).Debug("signal sent to executor")
	if hook != nil {
		hook(sig)
	}
}

// Cancel moves a non-terminal signal to CANCELLED. Returns false when the
// signal is unknown or already terminal.
func (m *Manager) Cancel(signalID, reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	sig, ok := m.signals[signalID]
	if !ok || sig.IsTerminal() {
		return false
	}
	if sig.Status == model.SignalStatusQueued {
		m.queuedCount--
	}
	sig.Status = model.SignalStatusCancelled
	if sig.Metadata == nil {
		sig.Metadata = map[string]any{}
	}
	sig.Metadata["cancel_reason"] = reason

	m.log.WithFields(logrus.Fields{"signal_id": signalID, "reason": reason}).Info("signal cancelled")
	return true
}

// SweepExpired marks every queued signal past its expiry as EXPIRED.
func (m *Manager) SweepExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	expired := 0
	for _, sig := range m.signals {
		if sig.Status == model.SignalStatusQueued && sig.IsExpired(now) {
			sig.Status = model.SignalStatusExpired
			m.queuedCount--
			m.stats.TotalExpired++
			expired++
		}
	}
	if expired > 0 {
		m.log.WithField("count", expired).Info("expired signals swept")
	}
}

// GetSignal returns a signal by id, or nil.
func (m *Manager) GetSignal(signalID string) *model.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signals[signalID]
}

// PendingSignals returns every signal currently queued or processing.
func (m *Manager) PendingSignals() []*model.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []*model.Signal
	for _, sig := range m.signals {
		if sig.Status == model.SignalStatusQueued || sig.Status == model.SignalStatusProcessing {
			pending = append(pending, sig)
		}
	}
	return pending
}

// ClearQueue cancels every queued signal.
func (m *Manager) ClearQueue() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sig := range m.signals {
		if sig.Status == model.SignalStatusQueued {
			sig.Status = model.SignalStatusCancelled
			m.queuedCount--
		}
	}
	m.queue = m.queue[:0]
	m.log.Info("signal queue cleared")
}

// Status returns a snapshot of the queue and counters.
func (m *Manager) Status() QueueStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := QueueStatus{
		QueueSize:            m.queuedCount,
		MaxQueueSize:         m.maxQueueSize,
		PriorityDistribution: make(map[int]int),
		SymbolDistribution:   make(map[string]int),
		Stats:                m.stats,
	}
	for _, sig := range m.signals {
		if sig.Status != model.SignalStatusQueued {
			continue
		}
		status.PriorityDistribution[sig.Priority]++
		status.SymbolDistribution[sig.Symbol]++
	}
	return status
}

package uio

import (
	"sync/atomic"
	"time"
)

// Metrics tracks operational statistics for drivers and executors. It
// satisfies the internal Observer interface and can be shared across
// every driver in a pool; all counters are atomic.
type Metrics struct {
	// Operation lifecycle counters
	Registered atomic.Uint64 // Operations inserted into a slab
	Resolved   atomic.Uint64 // Completions dispatched to live operations
	Rearms     atomic.Uint64 // Multi-shot resubmissions
	Cancels    atomic.Uint64 // Async-cancel submissions enqueued

	// Anomaly counters, all absorbed by the pump
	BacklogParks  atomic.Uint64 // Pump passes and re-arms that left submissions parked because the queue was full
	Orphans       atomic.Uint64 // Completions dropped for dead slots
	SubmitRetries atomic.Uint64 // Non-fatal submit-and-wait errnos

	// Gauges
	LiveSlots    atomic.Int64  // Slots occupied after the last pump pass
	MaxLiveSlots atomic.Int64  // High water of LiveSlots
	MaxBacklog   atomic.Uint64 // High water of the backlog depth

	// Lifecycle
	StartTime atomic.Int64 // Creation timestamp (UnixNano)
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

func (m *Metrics) ObserveRegister() { m.Registered.Add(1) }
func (m *Metrics) ObserveResolve()  { m.Resolved.Add(1) }
func (m *Metrics) ObserveRearm()    { m.Rearms.Add(1) }
func (m *Metrics) ObserveCancel()   { m.Cancels.Add(1) }
func (m *Metrics) ObserveOrphan()   { m.Orphans.Add(1) }

func (m *Metrics) ObserveSubmitRetry() { m.SubmitRetries.Add(1) }

func (m *Metrics) ObserveBacklogPark(depth int) {
	m.BacklogParks.Add(1)
	for {
		cur := m.MaxBacklog.Load()
		if uint64(depth) <= cur || m.MaxBacklog.CompareAndSwap(cur, uint64(depth)) {
			return
		}
	}
}

func (m *Metrics) ObserveSlots(live int) {
	m.LiveSlots.Store(int64(live))
	for {
		cur := m.MaxLiveSlots.Load()
		if int64(live) <= cur || m.MaxLiveSlots.CompareAndSwap(cur, int64(live)) {
			return
		}
	}
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Registered    uint64
	Resolved      uint64
	Rearms        uint64
	Cancels       uint64
	BacklogParks  uint64
	Orphans       uint64
	SubmitRetries uint64
	LiveSlots     int64
	MaxLiveSlots  int64
	MaxBacklog    uint64
	Uptime        time.Duration
}

// GetSnapshot returns a consistent-enough view of the counters for
// reporting. Individual loads are atomic; the set is not.
func (m *Metrics) GetSnapshot() Snapshot {
	return Snapshot{
		Registered:    m.Registered.Load(),
		Resolved:      m.Resolved.Load(),
		Rearms:        m.Rearms.Load(),
		Cancels:       m.Cancels.Load(),
		BacklogParks:  m.BacklogParks.Load(),
		Orphans:       m.Orphans.Load(),
		SubmitRetries: m.SubmitRetries.Load(),
		LiveSlots:     m.LiveSlots.Load(),
		MaxLiveSlots:  m.MaxLiveSlots.Load(),
		MaxBacklog:    m.MaxBacklog.Load(),
		Uptime:        time.Since(time.Unix(0, m.StartTime.Load())),
	}
}

package uio

import (
	"sync"
	"testing"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.ObserveRegister()
	m.ObserveRegister()
	m.ObserveResolve()
	m.ObserveRearm()
	m.ObserveCancel()
	m.ObserveOrphan()
	m.ObserveSubmitRetry()

	s := m.GetSnapshot()
	if s.Registered != 2 {
		t.Errorf("Registered = %d, want 2", s.Registered)
	}
	if s.Resolved != 1 || s.Rearms != 1 || s.Cancels != 1 || s.Orphans != 1 || s.SubmitRetries != 1 {
		t.Errorf("unexpected snapshot: %+v", s)
	}
}

func TestMetricsHighWater(t *testing.T) {
	m := NewMetrics()

	m.ObserveBacklogPark(3)
	m.ObserveBacklogPark(10)
	m.ObserveBacklogPark(5)
	if got := m.MaxBacklog.Load(); got != 10 {
		t.Errorf("MaxBacklog = %d, want 10", got)
	}
	if got := m.BacklogParks.Load(); got != 3 {
		t.Errorf("BacklogParks = %d, want 3", got)
	}

	m.ObserveSlots(7)
	m.ObserveSlots(2)
	if got := m.LiveSlots.Load(); got != 2 {
		t.Errorf("LiveSlots = %d, want 2", got)
	}
	if got := m.MaxLiveSlots.Load(); got != 7 {
		t.Errorf("MaxLiveSlots = %d, want 7", got)
	}
}

func TestMetricsConcurrent(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.ObserveRegister()
				m.ObserveResolve()
				m.ObserveBacklogPark(j % 50)
			}
		}()
	}
	wg.Wait()

	if got := m.Registered.Load(); got != 8000 {
		t.Errorf("Registered = %d, want 8000", got)
	}
	if got := m.MaxBacklog.Load(); got != 49 {
		t.Errorf("MaxBacklog = %d, want 49", got)
	}
}

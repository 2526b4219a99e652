package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu     sync.Mutex
	counts MetricsCounts
}

// MetricsCounts is a point-in-time copy of what a MockMetrics recorded.
type MetricsCounts struct {
	Predictions int
	Failures    int
	CacheHits   int
	LatencySum  float64
	Classes     map[string]int
	LoadsOK     int
	LoadsFailed int
}

func (m *MockMetrics) MLPredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts.Predictions++
}

func (m *MockMetrics) MLFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts.Failures++
}

func (m *MockMetrics) MLLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts.LatencySum += v
}

func (m *MockMetrics) MLCacheHitsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts.CacheHits++
}

func (m *MockMetrics) MLClassInc(label string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts.Classes == nil {
		m.counts.Classes = make(map[string]int)
	}
	m.counts.Classes[label]++
}

func (m *MockMetrics) MLModelLoadObserve(ok bool, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.counts.LoadsOK++
	} else {
		m.counts.LoadsFailed++
	}
}

func (m *MockMetrics) Counts() MetricsCounts {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := m.counts
	cp.Classes = make(map[string]int, len(m.counts.Classes))
	for k, v := range m.counts.Classes {
		cp.Classes[k] = v
	}
	return cp
}

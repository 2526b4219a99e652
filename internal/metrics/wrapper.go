package metrics

import "strconv"

// MetricsWrapper adapts Metrics to the narrow interfaces the ml, artifact
// and web packages depend on, so those packages never import prometheus.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) MLPredictionsInc() {
	w.m.Predictions.Inc()
}

func (w *MetricsWrapper) MLFailuresInc() {
	w.m.PredictionFailures.Inc()
}

func (w *MetricsWrapper) MLLatencyObserve(v float64) {
	w.m.PredictionLatency.Observe(v)
}

func (w *MetricsWrapper) MLCacheHitsInc() {
	w.m.PredictionCacheHits.Inc()
}

func (w *MetricsWrapper) MLClassInc(label string) {
	w.m.PredictedClass.WithLabelValues(label).Inc()
}

func (w *MetricsWrapper) MLModelLoadObserve(ok bool, seconds float64) {
	outcome := "failed"
	if ok {
		outcome = "ok"
		w.m.ModelReady.Set(1)
	} else {
		w.m.ModelReady.Set(0)
	}
	w.m.ModelLoads.WithLabelValues(outcome).Inc()
	w.m.ModelLoadDuration.Observe(seconds)
}

func (w *MetricsWrapper) ArtifactFetchAttemptsInc() {
	w.m.ArtifactFetchAttempts.Inc()
}

func (w *MetricsWrapper) ArtifactCacheHitsInc() {
	w.m.ArtifactCacheHits.Inc()
}

func (w *MetricsWrapper) ArtifactSizeSet(v float64) {
	w.m.ArtifactSize.Set(v)
}

func (w *MetricsWrapper) HTTPRequestInc(route string, code int) {
	w.m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

func (w *MetricsWrapper) WSConnectionsAdd(v float64) {
	w.m.WSConnections.Add(v)
}

package specfit

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordEvaluation is called after each chi-square evaluation.
	RecordEvaluation(duration time.Duration, err error)

	// RecordGridSearch is called after each find-best grid search.
	// points is the number of (vector, velocity) pairs evaluated.
	RecordGridSearch(points int, duration time.Duration, err error)

	// RecordProcess is called after each complete non-linear fit.
	RecordProcess(evaluations int, duration time.Duration, err error)

	// RecordTemplateLookup is called after each template retrieval.
	RecordTemplateLookup(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordEvaluation(time.Duration, error) {}
func (NoopMetricsCollector) RecordGridSearch(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordProcess(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordTemplateLookup(time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	EvaluationCount      atomic.Int64
	EvaluationErrors     atomic.Int64
	EvaluationTotalNanos atomic.Int64
	GridSearchCount      atomic.Int64
	GridSearchPoints     atomic.Int64
	GridSearchErrors     atomic.Int64
	ProcessCount         atomic.Int64
	ProcessErrors        atomic.Int64
	ProcessEvaluations   atomic.Int64
	ProcessTotalNanos    atomic.Int64
	LookupCount          atomic.Int64
	LookupErrors         atomic.Int64
}

// RecordEvaluation implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEvaluation(duration time.Duration, err error) {
	b.EvaluationCount.Add(1)
	b.EvaluationTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.EvaluationErrors.Add(1)
	}
}

// RecordGridSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGridSearch(points int, duration time.Duration, err error) {
	b.GridSearchCount.Add(1)
	b.GridSearchPoints.Add(int64(points))
	if err != nil {
		b.GridSearchErrors.Add(1)
	}
}

// RecordProcess implements MetricsCollector.
func (b *BasicMetricsCollector) RecordProcess(evaluations int, duration time.Duration, err error) {
	b.ProcessCount.Add(1)
	b.ProcessEvaluations.Add(int64(evaluations))
	b.ProcessTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ProcessErrors.Add(1)
	}
}

// RecordTemplateLookup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTemplateLookup(duration time.Duration, err error) {
	b.LookupCount.Add(1)
	if err != nil {
		b.LookupErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		EvaluationCount:    b.EvaluationCount.Load(),
		EvaluationErrors:   b.EvaluationErrors.Load(),
		EvaluationAvgNanos: avg(b.EvaluationTotalNanos.Load(), b.EvaluationCount.Load()),
		GridSearchCount:    b.GridSearchCount.Load(),
		GridSearchPoints:   b.GridSearchPoints.Load(),
		GridSearchErrors:   b.GridSearchErrors.Load(),
		ProcessCount:       b.ProcessCount.Load(),
		ProcessErrors:      b.ProcessErrors.Load(),
		ProcessEvaluations: b.ProcessEvaluations.Load(),
		ProcessAvgNanos:    avg(b.ProcessTotalNanos.Load(), b.ProcessCount.Load()),
		LookupCount:        b.LookupCount.Load(),
		LookupErrors:       b.LookupErrors.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	EvaluationCount    int64
	EvaluationErrors   int64
	EvaluationAvgNanos int64
	GridSearchCount    int64
	GridSearchPoints   int64
	GridSearchErrors   int64
	ProcessCount       int64
	ProcessErrors      int64
	ProcessEvaluations int64
	ProcessAvgNanos    int64
	LookupCount        int64
	LookupErrors       int64
}

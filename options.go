package specfit

import (
	"log/slog"

	"github.com/hupe1980/specfit/optim"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	minimizer        optim.Minimizer
	hessian          optim.HessianEstimator
	tolerance        optim.Tolerance
	resolution       Resolution
}

// Option configures a Fitter.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring fits.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &specfit.BasicMetricsCollector{}
//	f, _ := specfit.New(lib, specfit.DefaultConfig(), specfit.WithMetricsCollector(metrics))
//	// ... fit ...
//	stats := metrics.GetStats()
//	fmt.Printf("Evaluations: %d, Avg latency: %dns\n", stats.EvaluationCount, stats.EvaluationAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := specfit.NewJSONLogger(slog.LevelInfo)
//	f, _ := specfit.New(lib, cfg, specfit.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMinimizer replaces the Nelder-Mead simplex used by Process.
func WithMinimizer(m optim.Minimizer) Option {
	return func(o *options) {
		if m != nil {
			o.minimizer = m
		}
	}
}

// WithHessianEstimator replaces the finite-difference Hessian used for the
// parameter covariance.
func WithHessianEstimator(h optim.HessianEstimator) Option {
	return func(o *options) {
		if h != nil {
			o.hessian = h
		}
	}
}

// WithTolerance sets the convergence tolerances of the non-linear search.
func WithTolerance(tol optim.Tolerance) Option {
	return func(o *options) {
		o.tolerance = tol
	}
}

// WithResolution sets the resolution used when a call passes none.
func WithResolution(r Resolution) Option {
	return func(o *options) {
		o.resolution = r
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		minimizer:        optim.NewNelderMead(),
		hessian:          optim.FiniteDiff{},
		tolerance:        optim.DefaultTolerance(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

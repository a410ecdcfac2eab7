package specfit

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with specfit-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithObject adds the identifier of the fitted object.
func (l *Logger) WithObject(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("object", id),
	}
}

// WithArm adds an arm/setup name field to the logger.
func (l *Logger) WithArm(arm string) *Logger {
	return &Logger{
		Logger: l.Logger.With("arm", arm),
	}
}

// WithRun tags all records with a batch run identifier.
func (l *Logger) WithRun(run string) *Logger {
	return &Logger{
		Logger: l.Logger.With("run", run),
	}
}

// LogEvaluation logs a single chi-square evaluation.
func (l *Logger) LogEvaluation(ctx context.Context, velocity float64, params []float64, chisq float64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "chisq evaluation failed",
			"velocity", velocity,
			"params", params,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "chisq evaluated",
			"velocity", velocity,
			"params", params,
			"chisq", chisq,
		)
	}
}

// LogGridSearch logs a find-best grid evaluation.
func (l *Logger) LogGridSearch(ctx context.Context, velocities, vectors int, res *GridResult, err error) {
	if err != nil {
		l.ErrorContext(ctx, "grid search failed",
			"velocities", velocities,
			"vectors", vectors,
			"error", err,
		)
		return
	}
	if res.AtBoundary {
		l.WarnContext(ctx, "grid minimum at boundary",
			"velocity", res.Velocity,
			"vel_err", res.VelErr,
		)
	}
	l.DebugContext(ctx, "grid search completed",
		"velocities", velocities,
		"vectors", vectors,
		"velocity", res.Velocity,
		"vel_err", res.VelErr,
		"chisq", res.Chisq,
	)
}

// LogVelocityClamped logs a best-fit velocity clamped to the search bounds.
func (l *Logger) LogVelocityClamped(ctx context.Context, velocity, clamped float64) {
	l.WarnContext(ctx, "velocity outside bounds, clamped",
		"velocity", velocity,
		"clamped", clamped,
	)
}

// LogScan logs one iteration of the adaptive velocity-uncertainty scan.
func (l *Logger) LogScan(ctx context.Context, iteration int, step, lo, hi, velErr float64) {
	l.DebugContext(ctx, "velocity scan",
		"iteration", iteration,
		"step", step,
		"lo", lo,
		"hi", hi,
		"vel_err", velErr,
	)
}

// LogHessian logs the parameter covariance estimate.
func (l *Logger) LogHessian(ctx context.Context, params []string, errs []float64, err error) {
	if err != nil {
		l.WarnContext(ctx, "parameter uncertainties unavailable",
			"params", params,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "parameter covariance estimated",
			"params", params,
			"errors", errs,
		)
	}
}

// LogProcess logs a complete non-linear fit.
func (l *Logger) LogProcess(ctx context.Context, res *Result, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "fit failed",
			"duration", duration,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "fit completed",
			"velocity", res.Velocity,
			"vel_err", res.VelErr,
			"chisq", res.Chisq,
			"evaluations", res.Evaluations,
			"duration", duration,
		)
	}
}

// LogBatch logs the outcome of FitMany.
func (l *Logger) LogBatch(ctx context.Context, count, failed int) {
	if failed > 0 {
		l.WarnContext(ctx, "batch fit completed with failures",
			"total", count,
			"failed", failed,
			"success", count-failed,
		)
	} else {
		l.InfoContext(ctx, "batch fit completed",
			"count", count,
		)
	}
}

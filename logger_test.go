package specfit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/hupe1980/specfit/param"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return NewLogger(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func decodeRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestLogger(t *testing.T) {
	ctx := context.Background()

	t.Run("Fields", func(t *testing.T) {
		var buf bytes.Buffer
		l := newBufferLogger(&buf).WithRun("r1").WithObject("obj-7").WithArm("b")
		l.LogVelocityClamped(ctx, 1200, 1000)

		recs := decodeRecords(t, &buf)
		require.Len(t, recs, 1)
		assert.Equal(t, "WARN", recs[0]["level"])
		assert.Equal(t, "r1", recs[0]["run"])
		assert.Equal(t, "obj-7", recs[0]["object"])
		assert.Equal(t, "b", recs[0]["arm"])
		assert.Equal(t, 1000.0, recs[0]["clamped"])
	})

	t.Run("GridBoundary", func(t *testing.T) {
		var buf bytes.Buffer
		l := newBufferLogger(&buf)
		l.LogGridSearch(ctx, 10, 1, &GridResult{Velocity: 45, VelErr: 95, AtBoundary: true}, nil)
		l.LogGridSearch(ctx, 10, 1, nil, errors.New("boom"))

		recs := decodeRecords(t, &buf)
		require.Len(t, recs, 3)
		assert.Equal(t, "grid minimum at boundary", recs[0]["msg"])
		assert.Equal(t, "DEBUG", recs[1]["level"])
		assert.Equal(t, "ERROR", recs[2]["level"])
		assert.Equal(t, "boom", recs[2]["error"])
	})

	t.Run("Batch", func(t *testing.T) {
		var buf bytes.Buffer
		l := newBufferLogger(&buf)
		l.LogBatch(ctx, 4, 1)
		l.LogBatch(ctx, 4, 0)

		recs := decodeRecords(t, &buf)
		require.Len(t, recs, 2)
		assert.Equal(t, "WARN", recs[0]["level"])
		assert.Equal(t, 3.0, recs[0]["success"])
		assert.Equal(t, "INFO", recs[1]["level"])
	})

	t.Run("Noop", func(t *testing.T) {
		assert.False(t, NoopLogger().Enabled(ctx, slog.LevelError))
	})
}

func TestFitter_LogsClamp(t *testing.T) {
	var buf bytes.Buffer
	src := newAnalyticSource("r")
	cfg := fastConfig()
	far := -1e4
	f := newTestFitter(t, src, cfg,
		WithLogger(NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))),
		WithMinimizer(&boundaryMinimizer{minVel: cfg.MinVel, maxVel: cfg.MaxVel, velocity: &far}),
	)
	specs := exactSpectra(t, src, param.Point{Params: truth}, 0.01, "r")
	r, err := f.Process(context.Background(), specs, Guess{Params: truthGuess(), Fixed: allFixed}, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg.MinVel, r.Velocity)

	var msgs []string
	for _, rec := range decodeRecords(t, &buf) {
		msgs = append(msgs, rec["msg"].(string))
	}
	assert.Contains(t, msgs, "velocity outside bounds, clamped")
	assert.Contains(t, msgs, "fit completed")
}

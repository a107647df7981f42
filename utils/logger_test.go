package utils

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDefaultArgs(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, getDefaultArgs(ctx))

	ctx = WithDefaultArgs(ctx, "instance", "work")
	assert.Equal(t, []any{"instance", "work"}, getDefaultArgs(ctx))

	// later args accumulate without touching the parent context
	child := WithDefaultArgs(ctx, "trace_id", "abc")
	assert.Equal(t, []any{"instance", "work", "trace_id", "abc"}, getDefaultArgs(child))
	assert.Equal(t, []any{"instance", "work"}, getDefaultArgs(ctx))
}

func TestLoggerCtxVariants(t *testing.T) {
	log := NewDefaultLogger(slog.LevelError)
	require.NotNil(t, log)
	ctx := WithDefaultArgs(context.Background(), "instance", "work")

	// below the level threshold; must not panic with ctx-carried args
	log.DebugCtx(ctx, "dialing")
	log.InfoCtx(ctx, "connected", "trace_id", "abc")
	log.WarnCtx(ctx, "slow reply")
	log.Debug("plain")
}

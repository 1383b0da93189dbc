package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Spok95/school-lms/internal/ctxutil"
)

func TestInit_Level(t *testing.T) {
	lg, err := Init("warn", "prod")
	require.NoError(t, err)
	defer lg.Closer()
	assert.Equal(t, zapcore.WarnLevel, lg.Level.Level())

	lg, err = Init("nonsense", "dev")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, lg.Level.Level())
}

func TestWith_AddsContextFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := ctxutil.WithUserID(ctxutil.WithRequestID(context.Background(), "req-9"), 7)

	With(ctx, zap.New(core)).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, int64(7), fields["user_id"])
	assert.NotContains(t, fields, "op")
}

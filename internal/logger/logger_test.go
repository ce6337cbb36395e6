package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"textanalysis/pkg/logging"
)

func TestContextFieldsAreAttached(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := FromZap(zap.New(core), "analysis-service")

	ctx := logging.WithMessageID(context.Background(), "17")
	log.ErrorwCtx(ctx, "persist failed", "error", "timeout")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "persist failed", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "17", fields["message_id"])
	assert.Equal(t, "analysis-service", fields["service_name"])
	assert.Equal(t, "timeout", fields["error"])
}

func TestServiceNameFromContextWins(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := FromZap(zap.New(core), "default-name")

	ctx := logging.WithServiceName(context.Background(), "override")
	log.InfowCtx(ctx, "hello")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "override", logs.All()[0].ContextMap()["service_name"])
}

func TestNewWithOptions(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		log, err := NewWithOptions(Options{Level: "debug", Format: format})
		require.NoError(t, err)
		assert.NotNil(t, log)
	}

	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

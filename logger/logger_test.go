package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name       string
		jsonOutput bool
	}{
		{name: "JSON output mode", jsonOutput: true},
		{name: "Console output mode", jsonOutput: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Logger = nil
			JSONOutput = false

			require.NoError(t, Initialize(tt.jsonOutput))
			require.NotNil(t, Logger)
			assert.Equal(t, tt.jsonOutput, JSONOutput)

			Logger.Sync()
			Logger = zap.NewNop().Sugar()
		})
	}
}

func TestInitialize_InvalidLevelEnv(t *testing.T) {
	t.Setenv("VACANCY_LOG_LEVEL", "chatty")
	assert.Error(t, Initialize(false))
}

func TestSetVerbosity(t *testing.T) {
	defer Level.SetLevel(zap.InfoLevel)

	SetVerbosity(0)
	assert.Equal(t, zapcore.WarnLevel, Level.Level())
	SetVerbosity(1)
	assert.Equal(t, zapcore.InfoLevel, Level.Level())
	SetVerbosity(3)
	assert.Equal(t, zapcore.DebugLevel, Level.Level())
}

func TestFromContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core).Sugar()

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithUserID(ctx, "user-7")
	ctx = WithComponent(ctx, "listing")

	FromContext(ctx, base).Infow("post activated", FieldJobPostID, "p1")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields[FieldRequestID])
	assert.Equal(t, "user-7", fields[FieldUserID])
	assert.Equal(t, "listing", fields[FieldComponent])
	assert.Equal(t, "p1", fields[FieldJobPostID])
}

func TestFromContext_NoFields(t *testing.T) {
	base := zap.NewNop().Sugar()
	assert.Same(t, base, FromContext(context.Background(), base))
	assert.Empty(t, FieldsFromContext(context.Background()))
}

package logger

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFrom_FallsBackToProcessLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := Replace(zap.New(core))
	defer restore()

	From(context.Background()).Info("global")
	require.Equal(t, 1, logs.FilterMessage("global").Len())

	scoped := L().With(RequestID("rid-1"))
	ctx := ToContext(context.Background(), scoped)
	From(ctx).Info("scoped")

	entries := logs.FilterMessage("scoped").All()
	require.Len(t, entries, 1)
	require.Equal(t, "rid-1", entries[0].ContextMap()["request_id"])
}

func TestUpstreamBody_Truncates(t *testing.T) {
	f := UpstreamBody(strings.Repeat("x", 2000))
	require.Len(t, f.String, 512+len("..."))

	f = UpstreamBody("short")
	require.Equal(t, "short", f.String)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	require.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	require.Equal(t, zapcore.ErrorLevel, parseLevel(" error "))
	require.Equal(t, zapcore.InfoLevel, parseLevel(""))
	require.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

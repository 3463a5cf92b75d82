package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fleet/core/logger"
)

func TestNew_JSONOutput(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := logger.New(
		logger.WithProduction("fleetd"),
		logger.WithOutput(&buf),
	)

	log.Info("started", logger.Component("server"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "started", rec["msg"])
	assert.Equal(t, "fleetd", rec["service"])
	assert.Equal(t, "production", rec["env"])
	assert.Equal(t, "server", rec["component"])
}

func TestNew_Level(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := logger.New(
		logger.WithLevel(slog.LevelWarn),
		logger.WithOutput(&buf),
	)

	log.Info("hidden")
	assert.Empty(t, buf.String())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_DevelopmentIsText(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := logger.New(logger.WithDevelopment("fleetd"), logger.WithOutput(&buf))

	log.Debug("debugging")
	assert.Contains(t, buf.String(), "msg=debugging")
	assert.Contains(t, buf.String(), "env=development")
}

func TestNew_ContextExtractors(t *testing.T) {
	t.Parallel()
	type tenantKey struct{}
	tenant := func(ctx context.Context) (slog.Attr, bool) {
		v, ok := ctx.Value(tenantKey{}).(string)
		if !ok {
			return slog.Attr{}, false
		}
		return slog.String("tenant", v), true
	}

	var buf bytes.Buffer
	log := logger.New(
		logger.WithJSONFormatter(),
		logger.WithOutput(&buf),
		logger.WithContextExtractors(tenant),
	)

	ctx := context.WithValue(context.Background(), tenantKey{}, "acme")
	log.With(slog.String("k", "v")).InfoContext(ctx, "handled")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "acme", rec["tenant"])
	assert.Equal(t, "v", rec["k"])

	buf.Reset()
	log.InfoContext(context.Background(), "no value")
	assert.NotContains(t, buf.String(), "tenant")
}

func TestNop(t *testing.T) {
	t.Parallel()
	log := logger.Nop()
	require.NotNil(t, log)
	log.Error("discarded")
}

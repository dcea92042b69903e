package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input    string
		expected LogLevel
		wantErr  bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			level, err := ParseLevel(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, level)
		})
	}
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})

	logger.WithComponent("executor").
		With("batch", 2).
		Warn(context.Background(), errors.New("boom"), "publish failed", "package", "a")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "publish failed", record["msg"])
	assert.Equal(t, "executor", record["component"])
	assert.Equal(t, "boom", record["error"])
	assert.Equal(t, "a", record["package"])
	assert.EqualValues(t, 2, record["batch"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelWarn, Output: &buf})

	logger.Debug(context.Background(), "hidden")
	logger.Info(context.Background(), "hidden too")
	assert.Empty(t, buf.String())

	logger.Error(context.Background(), nil, "shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	logger.Error(context.Background(), errors.New("x"), "nothing")
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "token=[REDACTED] ok", Redact("token=s3cr3t ok", "s3cr3t"))
	assert.Equal(t, "unchanged", Redact("unchanged", ""))
}

func TestPerfLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Output: &buf})

	op := StartOperation(logger, "publish")
	d := op.End(context.Background())

	assert.GreaterOrEqual(t, d.Nanoseconds(), int64(0))
	assert.True(t, strings.Contains(buf.String(), "operation=publish"))

	buf.Reset()
	op = StartOperation(logger, "poll")
	op.EndWithError(context.Background(), errors.New("timeout"))
	assert.Contains(t, buf.String(), "Operation failed")
	assert.Contains(t, buf.String(), "timeout")
}

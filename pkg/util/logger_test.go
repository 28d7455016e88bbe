package util

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
		wantErr  bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{" warn ", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLogLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestParseLogFormat(t *testing.T) {
	format, err := ParseLogFormat("Text")
	require.NoError(t, err)
	assert.Equal(t, FormatText, format)

	_, err = ParseLogFormat("xml")
	assert.Error(t, err)
}

func TestNewLogger_RespectsLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: LevelWarn, Format: FormatJSON, Output: &buf})

	logger.Info("hidden")
	logger.Warn("shown", "file", "a.js")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"file":"a.js"`)
}

func TestGetOptimalPoolSize(t *testing.T) {
	size := GetOptimalPoolSize()
	assert.GreaterOrEqual(t, size, 4)
	assert.LessOrEqual(t, size, 32)

	assert.Equal(t, 3, GetOptimalPoolSizeWithOverride(3))
	assert.Equal(t, size, GetOptimalPoolSizeWithOverride(0))
}

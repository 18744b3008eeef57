package zaplogging

import (
	"testing"

	"github.com/autoblog/autoblog-procman/pkg/errors"
	"github.com/autoblog/autoblog-procman/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zapcore.Level
		wantErr  bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"info", zapcore.InfoLevel, false},
		{"", zapcore.InfoLevel, false},
		{"warn", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"verbose", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestLogFuncs_ForwardsToZap(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	sugar := zap.New(core).Sugar()

	logger := logging.NewLogger("module: test , ", LogFuncs(sugar))
	logger.Infof("loaded %d processes", 2)
	logger.Errorf("failed")
	logger.LogLevelf(logging.WarnLevel, "reload %s", "skipped")
	logger.LogLevelf(logging.DebugLevel, "event")

	entries := recorded.All()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "module: test , loaded 2 processes", entries[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "module: test , reload skipped", entries[2].Message)
	assert.Equal(t, zapcore.DebugLevel, entries[3].Level)
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, _, err := NewLogger("x", "loud")
	assert.Error(t, err)
}

package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		env, level string
		want       zap.AtomicLevel
	}{
		{"prod", "", zap.NewAtomicLevelAt(zap.InfoLevel)},
		{"dev", "", zap.NewAtomicLevelAt(zap.DebugLevel)},
		{"prod", "warn", zap.NewAtomicLevelAt(zap.WarnLevel)},
	}
	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.level, func(t *testing.T) {
			logger, err := NewLogger(tt.env, tt.level)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.want.Level()))
			assert.False(t, logger.Core().Enabled(tt.want.Level()-1))
		})
	}

	_, err := NewSugar("dev", "loud")
	assert.Error(t, err)
}

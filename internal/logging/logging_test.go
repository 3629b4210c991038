package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLevel(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, Level("DEBUG"))
	assert.Equal(t, zap.WarnLevel, Level("warning"))
	assert.Equal(t, zap.ErrorLevel, Level(" error "))
	assert.Equal(t, zap.InfoLevel, Level("verbose"))
}

func TestNew(t *testing.T) {
	for _, format := range []string{"", "json", "console"} {
		logger, err := New("debug", format)
		require.NoError(t, err, format)
		assert.True(t, logger.Core().Enabled(zap.DebugLevel))
	}

	logger, err := New("warn", "json")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))

	_, err = New("info", "xml")
	assert.Error(t, err)
}

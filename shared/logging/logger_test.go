package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	l, err := New("debug", true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))

	l, err = New(" WARN ", false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.InfoLevel))

	_, err = New("loud", false)
	assert.Error(t, err)
}

func TestBotLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	bl := NewBotLogger(zap.New(core))

	bl.Println("Endpoint:", "getMe")
	bl.Printf("response %d", 200)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Endpoint: getMe", entries[0].Message)
	assert.Equal(t, "response 200", entries[1].Message)
	assert.Equal(t, "tgbotapi", entries[0].LoggerName)
}

package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackimpact/support-api/internal/config"
)

func TestNewRejectsBadSettings(t *testing.T) {
	_, err := New(&config.Config{LogLevel: "loud", LogFormat: "json"})
	assert.Error(t, err)

	_, err = New(&config.Config{LogLevel: "info", LogFormat: "xml"})
	assert.Error(t, err)
}

func TestNewWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "support.log")
	log, err := New(&config.Config{
		ServiceName:  "support-api",
		Environment:  "test",
		LogLevel:     "debug",
		LogFormat:    "json",
		LogOutput:    "file",
		LogFile:      path,
		LogMaxSizeMB: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	log.Info().Str("conversation_id", "conv_1").Msg("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"service":"support-api"`)
	assert.Contains(t, string(data), `"conversation_id":"conv_1"`)
}

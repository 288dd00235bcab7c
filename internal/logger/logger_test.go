package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/isdoc-export/internal/logger"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, logger.ParseLevel(tt.input))
		})
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Level: "info", Format: "json", Output: &buf})

	log.Debug().Msg("hidden")
	child := logger.WithComponent(log, "export")
	child.Info().Str(logger.FieldTransactionID, "tx-1").Msg("exported")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "exported", entry["message"])
	assert.Equal(t, "export", entry[logger.FieldComponent])
	assert.Equal(t, "tx-1", entry[logger.FieldTransactionID])
	assert.Equal(t, "info", entry["level"])
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Level: "debug", Format: "console", Output: &buf})

	log.Debug().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}

package helper

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUUID(t *testing.T) {
	a, b := GenerateUUID(), GenerateUUID()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	require.NoError(t, err)
}

func TestWritable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "uploads")
	assert.True(t, Writable(dir))
}

func TestInitLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	InitLogger("warn", false, &buf)
	t.Cleanup(func() { InitLogger("info", false, nil) })

	log.Info().Msg("hidden")
	log.Warn().Str("file_id", "f1").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"file_id":"f1"`)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestPrettyPrint(t *testing.T) {
	var buf bytes.Buffer
	PrettyPrint(&buf, map[string]int{"chunks": 2})
	assert.Equal(t, "{\n  \"chunks\": 2\n}\n", buf.String())
}

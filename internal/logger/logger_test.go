package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWriterProductionIsJSON(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "production", false)

	Info("favorites updated", "count", 3)
	Debug("hidden")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "favorites updated", line["msg"])
	assert.EqualValues(t, 3, line["count"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestInitWriterDevelopmentLogsDebug(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "development", false)

	With("component", "tmdb").Debug("request", "path", "movie/popular")

	assert.Contains(t, buf.String(), "component=tmdb")
	assert.Contains(t, buf.String(), "path=movie/popular")
}

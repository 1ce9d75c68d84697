package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-fidelity/internal/domain"
)

func TestNewLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{
		Level:       "debug",
		Format:      "json",
		Output:      &buf,
		ServiceName: "pdf-fidelity-test",
	})

	logger.WithDocument("doc-1").WithOperation("extract").Info().
		Int("workers", 4).
		Msg("extraction started")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "pdf-fidelity-test", entry["service"])
	assert.Equal(t, "doc-1", entry["document_id"])
	assert.Equal(t, "extract", entry["operation"])
	assert.Equal(t, float64(4), entry["workers"])
	assert.Equal(t, "extraction started", entry["message"])
}

func TestLogger_WithContextRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "info", Format: "json", Output: &buf})

	ctx := ContextWithRunID(context.Background(), "run-42")
	logger.WithContext(ctx).Info().Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "run-42", entry["run_id"])
	assert.Equal(t, "", RunIDFromContext(context.Background()))
}

func TestLogger_PipelineFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "debug", Format: "json", Output: &buf})

	logger.WithWorker(domain.PageRange{Worker: 2, Start: 10, End: 20}).Warn().
		Page(12).
		Engine(domain.EngineIdentity{Name: "mupdf", Version: "1.24"}).
		Msg("page failed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, float64(2), entry["worker"])
	assert.Equal(t, float64(10), entry["range_start"])
	assert.Equal(t, float64(20), entry["range_end"])
	assert.Equal(t, float64(13), entry["page"])
	assert.Equal(t, "mupdf@1.24", entry["engine"])
	assert.NotContains(t, entry, "service")
}

func TestLogger_WithEngine(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "info", Format: "json", Output: &buf})

	logger.WithEngine(domain.EngineIdentity{Name: "mupdf", Version: "1.24", Checksum: "h1:abc"}).Info().
		Float64("min_similarity", 0.97).
		Msg("document finished")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, domain.EngineIdentity{Name: "mupdf", Version: "1.24", Checksum: "h1:abc"}.String(), entry["engine"])
	assert.Equal(t, 0.97, entry["min_similarity"])
}

func TestLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json", Output: &buf})

	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())
	logger.Error().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "debug", parseLevel("debug").String())
	assert.Equal(t, "warn", parseLevel("warning").String())
	assert.Equal(t, "error", parseLevel(" ERROR ").String())
	assert.Equal(t, "info", parseLevel("bogus").String())
	assert.Equal(t, "info", parseLevel("").String())
}

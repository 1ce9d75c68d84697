package extractor

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-fidelity/internal/domain"
	"github.com/spherical/pdf-fidelity/internal/engine/enginetest"
)

func tempPDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7\n"), 0o644))
	return path
}

func TestExtract(t *testing.T) {
	eng := enginetest.New(6)
	c, err := NewClientWithConfig(&Config{Workers: 3, Engine: eng})
	require.NoError(t, err)
	defer c.Close()

	arts, err := c.Extract(context.Background(), tempPDF(t))
	require.NoError(t, err)

	assert.Equal(t, "sample.pdf", arts.DocumentID)
	assert.Equal(t, 6, arts.PageCount)
	assert.Equal(t, 3, arts.Workers)
	assert.Len(t, arts.Images, 12)
	assert.Equal(t, MetadataFirstPage, arts.MetadataScope)
	assert.Equal(t, eng.Identity(), arts.Engine)
}

func TestExtract_MissingFile(t *testing.T) {
	c, err := NewClientWithConfig(&Config{Engine: enginetest.New(1)})
	require.NoError(t, err)

	_, err = c.Extract(context.Background(), filepath.Join(t.TempDir(), "absent.pdf"))
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

func TestProcess_StreamsEventsThenResult(t *testing.T) {
	c, err := NewClientWithConfig(&Config{Workers: 2, Engine: enginetest.New(4)})
	require.NoError(t, err)

	events, results, err := c.Process(context.Background(), tempPDF(t))
	require.NoError(t, err)

	counts := map[EventType]int{}
	for e := range events {
		counts[e.Type]++
	}
	res := <-results
	require.NoError(t, res.Err)

	assert.Equal(t, 1, counts[EventStart])
	assert.Equal(t, 4, counts[EventPageComplete])
	assert.Equal(t, 1, counts[EventComplete])
	assert.Equal(t, 4, res.Artifacts.PageCount)
}

func TestNewClientWithConfig_Validation(t *testing.T) {
	_, err := NewClientWithConfig(&Config{Workers: -1, Engine: enginetest.New(1)})
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))

	_, err = NewClientWithConfig(&Config{Scope: "every_other_page", Engine: enginetest.New(1)})
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

func TestWriteArtifacts(t *testing.T) {
	c, err := NewClientWithConfig(&Config{Engine: enginetest.New(2)})
	require.NoError(t, err)
	arts, err := c.Extract(context.Background(), tempPDF(t))
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, WriteArtifacts(dir, arts))

	text, err := os.ReadFile(filepath.Join(dir, "text.u32"))
	require.NoError(t, err)
	assert.Equal(t, arts.Text.Content, text)
	assert.FileExists(t, filepath.Join(dir, "metadata.jsonl"))
}

func TestExtract_UsesConfiguredLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "debug", Format: "json", Output: zerolog.SyncWriter(&buf)})
	c, err := NewClientWithConfig(&Config{Workers: 2, Engine: enginetest.New(2), Logger: logger})
	require.NoError(t, err)

	_, err = c.Extract(context.Background(), tempPDF(t))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Worker started")
}

package manifest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-fidelity/internal/config"
	"github.com/spherical/pdf-fidelity/internal/domain"
)

var testEngine = domain.EngineIdentity{Name: "mupdf", Version: "1.24.15", Checksum: "h1:abc"}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleEntry(docID string) *Entry {
	return &Entry{
		DocumentID:       docID,
		Engine:           testEngine,
		DocumentChecksum: "sha-doc",
		PageCount:        2,
		Tags:             []string{"category:forms", "size:small"},
		TextPath:         "baseline/" + docID + "/text.u32",
		TextHash:         "th",
		TextSize:         24,
		MetadataPath:     "baseline/" + docID + "/metadata.jsonl",
		MetadataHash:     "mh",
		MetadataSize:     120,
		MetadataScope:    domain.MetadataFirstPage,
		PageErrors:       []domain.PageError{{Page: 1, Type: domain.ErrorTypePageTimeout, Message: "slow"}},
		Images: []ImageRecord{
			{Page: 0, Kind: domain.ArtifactJPEG, Hash: "j0", Size: 10, Width: 612, Height: 792},
			{Page: 0, Kind: domain.ArtifactPNG, Hash: "p0", Size: 20, Width: 612, Height: 792},
		},
	}
}

func sampleOutcome() domain.DocumentOutcome {
	return domain.DocumentOutcome{
		DocumentID: "doc-1",
		Status:     domain.StatusFailed,
		Results: []domain.ComparisonResult{
			{Artifact: domain.ArtifactText, Page: domain.DocumentLevel, Tier: domain.TierNone, Verdict: domain.VerdictFail, Locator: domain.ByteLocator(12)},
			{Artifact: domain.ArtifactPNG, Page: 0, Tier: domain.TierExact, Verdict: domain.VerdictPass, Similarity: 1},
		},
	}
}

func TestStore_PutAndLatest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := sampleEntry("doc-1")
	require.NoError(t, store.Put(ctx, entry))
	assert.Equal(t, 1, entry.Version)

	got, err := store.Latest(ctx, "doc-1", testEngine)
	require.NoError(t, err)

	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, testEngine, got.Engine)
	assert.Equal(t, entry.Tags, got.Tags)
	assert.Equal(t, entry.PageErrors, got.PageErrors)
	assert.Equal(t, int64(24), got.TextSize)
	assert.Equal(t, domain.MetadataFirstPage, got.MetadataScope)
	require.Len(t, got.Images, 2)
	assert.Equal(t, domain.ArtifactPNG, got.Images[0].Kind)
	assert.Equal(t, domain.ArtifactJPEG, got.Images[1].Kind)

	img, ok := got.Image(0, domain.ArtifactJPEG)
	require.True(t, ok)
	assert.Equal(t, "j0", img.Hash)
	assert.Equal(t, []int{1}, got.ErrorPages())
}

func TestStore_Versioning(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := sampleEntry("doc-1")
	require.NoError(t, store.Put(ctx, first))
	second := sampleEntry("doc-1")
	second.TextHash = "th2"
	require.NoError(t, store.Put(ctx, second))
	assert.Equal(t, 2, second.Version)

	latest, err := store.Latest(ctx, "doc-1", testEngine)
	require.NoError(t, err)
	assert.Equal(t, "th2", latest.TextHash)

	old, err := store.Get(ctx, "doc-1", testEngine, 1)
	require.NoError(t, err)
	assert.Equal(t, "th", old.TextHash)

	versions, err := store.Versions(ctx, "doc-1", testEngine)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, versions)
}

func TestStore_KeyedByEngineIdentity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, sampleEntry("doc-1")))

	other := testEngine
	other.Checksum = "h1:other"
	_, err := store.Latest(ctx, "doc-1", other)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Latest(ctx, "doc-2", testEngine)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_List(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, sampleEntry("b")))
	require.NoError(t, store.Put(ctx, sampleEntry("a")))
	require.NoError(t, store.Put(ctx, sampleEntry("b")))

	entries, err := store.List(ctx, testEngine)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].DocumentID)
	assert.Equal(t, "b", entries[1].DocumentID)
	assert.Equal(t, 2, entries[1].Version)
	assert.Len(t, entries[1].Images, 2)
}

func TestStore_AuditLog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	outcome := sampleOutcome()
	records := AuditRecords("run-1", testEngine, outcome)
	require.Len(t, records, 2)
	require.NoError(t, store.AppendAudit(ctx, records))

	errored := AuditRecords("run-1", testEngine, domain.DocumentOutcome{DocumentID: "doc-2", Status: domain.StatusError, Error: "boom"})
	require.NoError(t, store.AppendAudit(ctx, errored))
	require.NoError(t, store.AppendAudit(ctx, AuditRecords("run-2", testEngine, outcome)))

	got, err := store.AuditByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 3)

	byDoc := map[string][]AuditRecord{}
	for _, r := range got {
		byDoc[r.DocumentID] = append(byDoc[r.DocumentID], r)
	}
	require.Len(t, byDoc["doc-1"], 2)
	require.Len(t, byDoc["doc-2"], 1)
	assert.Equal(t, "boom", byDoc["doc-2"][0].Detail)
	assert.Equal(t, domain.StatusError, byDoc["doc-2"][0].Status)

	for _, r := range byDoc["doc-1"] {
		if r.Artifact == domain.ArtifactText {
			assert.Equal(t, "byte:12", r.Locator)
			assert.Equal(t, domain.VerdictFail, r.Verdict)
		}
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle"})
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeConfig))
}

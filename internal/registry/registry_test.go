package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-fidelity/internal/domain"
)

func catalog(t *testing.T) *Registry {
	t.Helper()
	r, err := Load(filepath.Join(t.TempDir(), "documents.yaml"))
	require.NoError(t, err)

	docs := []domain.Document{
		{ID: "forms-small", Tags: domain.NewTagSet("category:forms", "size:small", "subset:smoke")},
		{ID: "forms-large", Tags: domain.NewTagSet("category:forms", "size:large")},
		{ID: "scan-small", Tags: domain.NewTagSet("category:scanned", "size:small", "subset:smoke")},
		{ID: "broken", Tags: domain.NewTagSet("category:malformed", "size:small", domain.TagExpectedFailure)},
	}
	for _, d := range docs {
		require.NoError(t, r.Register(d))
	}
	return r
}

func ids(docs []domain.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}

func TestSelect(t *testing.T) {
	r := catalog(t)

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"broken", "forms-large", "forms-small", "scan-small"}},
		{"*", []string{"broken", "forms-large", "forms-small", "scan-small"}},
		{"category:forms", []string{"forms-large", "forms-small"}},
		{"category:forms AND size:small", []string{"forms-small"}},
		{"category:forms size:small", []string{"forms-small"}},
		{"category:forms OR category:scanned", []string{"forms-large", "forms-small", "scan-small"}},
		{"size:small AND NOT expected-failure", []string{"forms-small", "scan-small"}},
		{"size:small !expected-failure", []string{"forms-small", "scan-small"}},
		{"NOT (category:forms OR category:scanned)", []string{"broken"}},
		{"subset:smoke OR category:forms AND size:large", []string{"forms-large", "forms-small", "scan-small"}},
		{"(subset:smoke OR category:forms) AND size:large", []string{"forms-large"}},
		{"Category:Forms and SIZE:LARGE", []string{"forms-large"}},
		{"category:unknown", nil},
		{"category:form", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, err := ParseQuery(tt.query)
			require.NoError(t, err)

			selected, skipped := r.Select(q)
			if tt.want == nil {
				assert.Empty(t, selected)
			} else {
				assert.Equal(t, tt.want, ids(selected))
			}
			assert.Equal(t, 4, len(selected)+len(skipped))
		})
	}
}

func TestParseQuery_Invalid(t *testing.T) {
	for _, q := range []string{"(size:small", "size:small)", "AND size:small", "size:small OR", "NOT", "()"} {
		t.Run(q, func(t *testing.T) {
			_, err := ParseQuery(q)
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
		})
	}
}

func TestParseQuery_String(t *testing.T) {
	q, err := ParseQuery("a b OR NOT c")
	require.NoError(t, err)
	assert.Equal(t, "((a AND b) OR NOT c)", q.String())
}

func TestRegister_Duplicate(t *testing.T) {
	r := catalog(t)
	err := r.Register(domain.Document{ID: "broken"})
	assert.ErrorIs(t, err, ErrDuplicate)

	err = r.Register(domain.Document{ID: " "})
	assert.Error(t, err)
}

func TestGetAndRemove(t *testing.T) {
	r := catalog(t)

	doc, err := r.Get("broken")
	require.NoError(t, err)
	assert.True(t, doc.ExpectedFailure())

	require.NoError(t, r.Remove("broken"))
	_, err = r.Get("broken")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, r.Remove("broken"), ErrNotFound)
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "documents.yaml")

	r, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, r.Register(domain.Document{
		ID:       "forms-small",
		Path:     filepath.Join(dir, "corpus", "forms.pdf"),
		Checksum: "abc",
		Pages:    3,
		Tags:     domain.NewTagSet("size:small", "Category:Forms"),
	}))
	require.NoError(t, r.Save())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "path: corpus/forms.pdf")

	loaded, err := Load(path)
	require.NoError(t, err)
	doc, err := loaded.Get("forms-small")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "corpus", "forms.pdf"), doc.Path)
	assert.Equal(t, 3, doc.Pages)
	assert.Equal(t, []string{"category:forms", "size:small"}, doc.Tags.Sorted())
}

func TestLoad_DuplicateInFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "documents.yaml")
	content := "documents:\n  - id: a\n    path: a.pdf\n  - id: a\n    path: b.pdf\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestRegisterFile(t *testing.T) {
	dir := t.TempDir()
	r, err := Load(filepath.Join(dir, "documents.yaml"))
	require.NoError(t, err)

	broken := filepath.Join(dir, "broken.pdf")
	require.NoError(t, os.WriteFile(broken, []byte("%PDF-1.4 truncated"), 0o644))

	_, err = r.RegisterFile("broken", broken, []string{"category:malformed"})
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeDocumentLoad))

	doc, err := r.RegisterFile("broken", broken, []string{"category:malformed", domain.TagExpectedFailure})
	require.NoError(t, err)
	assert.Equal(t, 0, doc.Pages)
	assert.Len(t, doc.Checksum, 64)

	_, err = r.RegisterFile("missing", filepath.Join(dir, "missing.pdf"), nil)
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

// Package registry maintains the catalog of test documents and selects
// subsets of it by tag query.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/spherical/pdf-fidelity/internal/domain"
	"github.com/spherical/pdf-fidelity/internal/pdf"
)

// Common errors
var (
	ErrDuplicate = errors.New("document already registered")
	ErrNotFound  = errors.New("document not registered")
)

type fileFormat struct {
	Documents []documentRecord `yaml:"documents"`
}

type documentRecord struct {
	ID       string   `yaml:"id"`
	Path     string   `yaml:"path"`
	Checksum string   `yaml:"checksum"`
	Pages    int      `yaml:"pages"`
	Tags     []string `yaml:"tags,omitempty"`
}

// Registry is the persistent document catalog backed by a YAML file. Paths in
// the file are relative to the file's directory unless absolute.
type Registry struct {
	mu        sync.RWMutex
	path      string
	docs      map[string]domain.Document
	validator *pdf.Validator
}

// Load reads the registry file. A missing file yields an empty registry.
func Load(path string) (*Registry, error) {
	r := &Registry{
		path:      path,
		docs:      make(map[string]domain.Document),
		validator: pdf.NewValidator(),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("read registry %s", path), err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, domain.ConfigError(fmt.Sprintf("parse registry %s", path), err)
	}
	for _, rec := range f.Documents {
		doc := domain.Document{
			ID:       rec.ID,
			Path:     r.resolve(rec.Path),
			Checksum: rec.Checksum,
			Pages:    rec.Pages,
			Tags:     domain.NewTagSet(rec.Tags...),
		}
		if err := r.add(doc); err != nil {
			return nil, fmt.Errorf("registry %s: %w", path, err)
		}
	}
	return r, nil
}

func (r *Registry) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(r.path), p)
}

func (r *Registry) relative(p string) string {
	rel, err := filepath.Rel(filepath.Dir(r.path), p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}
	return rel
}

func (r *Registry) add(doc domain.Document) error {
	if strings.TrimSpace(doc.ID) == "" {
		return domain.ValidationError("document id cannot be empty", nil)
	}
	if _, exists := r.docs[doc.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, doc.ID)
	}
	if doc.Tags == nil {
		doc.Tags = domain.NewTagSet()
	}
	r.docs[doc.ID] = doc
	return nil
}

// Register adds a document. Registering an id twice is an error.
func (r *Registry) Register(doc domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.add(doc)
}

// RegisterFile validates a PDF on disk, computes its checksum and page count,
// and registers it. Documents tagged expected-failure may be unreadable; they
// are registered with zero pages.
func (r *Registry) RegisterFile(id, path string, tags []string) (domain.Document, error) {
	doc := domain.Document{ID: id, Path: path, Tags: domain.NewTagSet(tags...)}

	if err := r.validator.ValidatePDFPath(path); err != nil {
		return domain.Document{}, err
	}
	sum, err := r.validator.Checksum(path)
	if err != nil {
		return domain.Document{}, err
	}
	doc.Checksum = sum

	pages, err := r.validator.PageCount(path)
	if err != nil && !doc.ExpectedFailure() {
		return domain.Document{}, err
	}
	doc.Pages = pages

	if err := r.Register(doc); err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}

// Remove drops a document from the catalog
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(r.docs, id)
	return nil
}

// Get returns a document by id
func (r *Registry) Get(id string) (domain.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return domain.Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return doc, nil
}

// All returns every document ordered by id
func (r *Registry) All() []domain.Document {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Document, 0, len(r.docs))
	for _, d := range r.docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Select partitions the catalog into documents matching q and the rest, both
// ordered by id.
func (r *Registry) Select(q Query) (selected, skipped []domain.Document) {
	all := r.All()
	universe := make(IDSet, len(all))
	for _, d := range all {
		universe[d.ID] = struct{}{}
	}

	match := q.Select(NewIndex(all), universe)
	for _, d := range all {
		if _, ok := match[d.ID]; ok {
			selected = append(selected, d)
		} else {
			skipped = append(skipped, d)
		}
	}
	return selected, skipped
}

// Save writes the catalog back to its file
func (r *Registry) Save() error {
	docs := r.All()
	f := fileFormat{Documents: make([]documentRecord, 0, len(docs))}
	for _, d := range docs {
		f.Documents = append(f.Documents, documentRecord{
			ID:       d.ID,
			Path:     r.relative(d.Path),
			Checksum: d.Checksum,
			Pages:    d.Pages,
			Tags:     d.Tags.Sorted(),
		})
	}

	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return domain.IOError("create registry directory", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return domain.IOError(fmt.Sprintf("write registry %s", tmp), err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return domain.IOError(fmt.Sprintf("replace registry %s", r.path), err)
	}
	return nil
}

// Path returns the registry file location
func (r *Registry) Path() string {
	return r.path
}

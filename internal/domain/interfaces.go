package domain

import (
	"context"
	"image"
)

// Engine opens documents in the rendering engine
type Engine interface {
	// Identity returns the version and checksum of the loaded engine build
	Identity() EngineIdentity

	// Open loads a document and returns a handle owned by the caller
	Open(ctx context.Context, path string) (DocumentHandle, error)
}

// DocumentHandle is one open document in the engine. A handle is not shared
// between goroutines; every worker acquires its own.
type DocumentHandle interface {
	PageCount() int
	Text(page int) (string, error)
	Chars(page int) ([]CharacterRecord, error)
	Render(page int, dpi float64) (*image.RGBA, error)
	Close() error
}

// Producer produces document-level artifacts. Candidate and reference paths both
// implement it so the comparator never depends on which one produced a side.
type Producer interface {
	Name() string
	Produce(ctx context.Context, doc Document) (*DocumentArtifacts, error)
}

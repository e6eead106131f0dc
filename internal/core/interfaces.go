// Package core defines the domain types and the interfaces that connect the
// text-to-speech cache pipeline to its storage and synthesis backends.
package core

import "context"

// BlobStore defines the interface for interacting with a key-value blob store.
type BlobStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
	// Exists reports whether an object is stored under key. A missing object
	// is not an error.
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// RecordStore persists the latest artifact metadata for each content id.
// Get returns ErrNotFound when no record exists.
type RecordStore interface {
	Get(ctx context.Context, contentID string) (*Artifact, error)
	Put(ctx context.Context, record *Artifact) error
	Delete(ctx context.Context, contentID string) error
}

// Synthesizer converts one chunk of text into raw audio using a fixed voice
// and container format.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	// Format returns the audio container extension, e.g. "mp3" or "wav".
	Format() string
}

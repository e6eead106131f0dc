package core

import "time"

// Status is the lifecycle state of a content item's audio artifact.
type Status string

const (
	// StatusPending means no successful generation has happened yet.
	StatusPending Status = "pending"
	// StatusGenerating means an attempt is in flight.
	StatusGenerating Status = "generating"
	// StatusCompleted means the artifact is ready and was verified present.
	StatusCompleted Status = "completed"
	// StatusFailed means the last attempt errored.
	StatusFailed Status = "failed"
)

// CanTransition reports whether moving from s to next is a legal step of a
// generation attempt. A new attempt may start from any settled state; only a
// generating attempt may settle.
func (s Status) CanTransition(next Status) bool {
	switch next {
	case StatusGenerating:
		return s == StatusPending || s == StatusFailed || s == StatusCompleted
	case StatusCompleted, StatusFailed:
		return s == StatusGenerating
	case StatusPending:
		return false
	default:
		return false
	}
}

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusGenerating, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// Format identifies the markup language of a content body.
type Format string

const (
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
	FormatPlain    Format = "plain"
)

// ContentText is the source of a generation request.
type ContentText struct {
	ContentID string
	Markup    string
	Format    Format
}

// Artifact is the metadata record kept for one content id. It is overwritten
// by every generation attempt for that id.
type Artifact struct {
	ContentID       string    `json:"content_id"`
	Fingerprint     string    `json:"fingerprint"`
	Key             string    `json:"key"`
	Status          Status    `json:"status"`
	URL             string    `json:"url,omitempty"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	FileSizeBytes   int64     `json:"file_size_bytes,omitempty"`
	ChunkCount      int       `json:"chunk_count,omitempty"`
	GeneratedAt     time.Time `json:"generated_at,omitzero"`
	UpdatedAt       time.Time `json:"updated_at"`
	Error           string    `json:"error,omitempty"`
}

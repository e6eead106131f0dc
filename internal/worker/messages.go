package worker

import (
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/tts-cache/internal/core"
	"github.com/google/uuid"
)

// HeaderError names the NATS header set on speak replies that carry an
// ErrorReply instead of audio. Its value is the error code.
const HeaderError = "Tts-Error"

// HeaderContentType carries the audio container of a speak reply.
const HeaderContentType = "Content-Type"

// GenerateRequest asks for the artifact of a content item to be produced.
type GenerateRequest struct {
	Header    events.EventHeader `json:"header"`
	ContentID string             `json:"content_id"`
	Text      string             `json:"text"`
	Format    core.Format        `json:"format,omitempty"`
}

// GenerateReply answers a GenerateRequest.
type GenerateReply struct {
	Header          events.EventHeader `json:"header"`
	ContentID       string             `json:"content_id"`
	URL             string             `json:"url,omitempty"`
	DurationSeconds float64            `json:"duration_seconds,omitempty"`
	ChunkCount      int                `json:"chunk_count,omitempty"`
	FileSizeBytes   int64              `json:"file_size_bytes,omitempty"`
	Cached          bool               `json:"cached,omitempty"`
	Error           string             `json:"error,omitempty"`
	ErrorCode       string             `json:"error_code,omitempty"`
}

// StatusRequest asks for the playback state of a content item.
type StatusRequest struct {
	Header    events.EventHeader `json:"header"`
	ContentID string             `json:"content_id"`
}

// StatusReply answers a StatusRequest. URL and duration are set only when
// the status is completed.
type StatusReply struct {
	Header          events.EventHeader `json:"header"`
	ContentID       string             `json:"content_id"`
	Status          core.Status        `json:"status,omitempty"`
	URL             string             `json:"url,omitempty"`
	DurationSeconds float64            `json:"duration_seconds,omitempty"`
	Error           string             `json:"error,omitempty"`
	ErrorCode       string             `json:"error_code,omitempty"`
}

// SpeakRequest asks for short text to be synthesized in one call. The reply
// body is the raw audio.
type SpeakRequest struct {
	Header events.EventHeader `json:"header"`
	Text   string             `json:"text"`
}

// ErrorReply is sent for speak failures and undecodable requests.
type ErrorReply struct {
	Header    events.EventHeader `json:"header"`
	Error     string             `json:"error"`
	ErrorCode string             `json:"error_code"`
}

// NewHeader returns a header for a new workflow.
func NewHeader(userID, tenantID string) events.EventHeader {
	return events.EventHeader{
		Timestamp:  time.Now().UTC(),
		WorkflowID: uuid.NewString(),
		EventID:    uuid.NewString(),
		UserID:     userID,
		TenantID:   tenantID,
	}
}

// replyHeader keeps the workflow identity of a request and stamps a new event.
func replyHeader(request events.EventHeader) events.EventHeader {
	reply := request
	reply.Timestamp = time.Now().UTC()
	reply.EventID = uuid.NewString()

	return reply
}

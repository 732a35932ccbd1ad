package pipeline

// ProcessRequest asks the worker to run a job against an already-stored
// catalog item. Requests are JSON-serializable so they can travel through
// the durable queue.
type ProcessRequest struct {
	Name     string            `json:"name"`
	Job      string            `json:"job"` // annotate, thumbnail
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ProcessResponse is returned when a job is accepted.
type ProcessResponse struct {
	RunID string `json:"run_id"`
}

// JobType constants
const (
	JobAnnotate  = "annotate"
	JobThumbnail = "thumbnail"
)

// UploadResponse describes the outcome of an ingestion request. Annotation
// and thumbnail failures appear as diagnostics on an otherwise successful
// upload.
type UploadResponse struct {
	Name            string   `json:"name"`
	OriginalURL     string   `json:"original_url"`
	ThumbnailURL    string   `json:"thumbnail_url,omitempty"`
	Caption         string   `json:"caption,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	AnnotationError string   `json:"annotation_error,omitempty"`
	ThumbnailError  string   `json:"thumbnail_error,omitempty"`
	DedupeSeenCount int      `json:"dedupe_seen_count,omitempty"`
}

// SearchItem is one catalog entry in a search response.
type SearchItem struct {
	Name         string   `json:"name"`
	OriginalURL  string   `json:"original_url"`
	ThumbnailURL string   `json:"thumbnail_url"`
	Caption      string   `json:"caption"`
	Tags         []string `json:"tags,omitempty"`
	Annotated    bool     `json:"annotated"`
}

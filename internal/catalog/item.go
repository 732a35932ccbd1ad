package catalog

// Item is one catalog entry, reconstructed from the stored object and its
// metadata on every read. Nothing beyond the blob and its metadata is
// persisted for an item.
type Item struct {
	Name         string   `json:"name"`
	OriginalURL  string   `json:"original_url"`
	ThumbnailURL string   `json:"thumbnail_url"`

	// Caption falls back to Name when the item has not been annotated.
	Caption   string   `json:"caption"`
	Tags      []string `json:"tags,omitempty"`
	Annotated bool     `json:"annotated"`
}

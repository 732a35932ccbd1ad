package catalog

import (
	"strconv"
)

// Container names in the catalog store
const (
	ContainerOriginals  = "originals"
	ContainerThumbnails = "thumbnails"
)

// Metadata keys for the persisted annotation schema.
// Tag order is recovered from the key ordinal ("Tag0", "Tag1", ...) because
// the store does not guarantee metadata key order.
const (
	MetaKeyCaption = "Caption"
	metaKeyTag     = "Tag"
)

// Annotation is the caption and ordered tag list produced by the visual
// recognition service for one image.
type Annotation struct {
	Caption string   `json:"caption"`
	Tags    []string `json:"tags"`
}

// EncodeMetadata encodes the annotation into the persisted metadata schema:
// "Caption" plus "Tag0".."Tag{n-1}" in tag order.
func (a Annotation) EncodeMetadata() map[string]string {
	meta := make(map[string]string, len(a.Tags)+1)
	if a.Caption != "" {
		meta[MetaKeyCaption] = a.Caption
	}
	for i, tag := range a.Tags {
		meta[metaKeyTag+strconv.Itoa(i)] = tag
	}
	return meta
}

// DecodeAnnotation reconstructs an annotation from object metadata.
// Tags are read by ascending ordinal until the first missing key, which is
// the only ordering authority. The second return value reports whether the
// object has been annotated at all: an item with neither "Caption" nor
// "Tag0" is a valid, unannotated catalog entry (indistinguishable from an
// annotation with an empty tag list and no caption).
func DecodeAnnotation(meta map[string]string) (Annotation, bool) {
	var a Annotation
	a.Caption = meta[MetaKeyCaption]
	for i := 0; ; i++ {
		tag, ok := meta[metaKeyTag+strconv.Itoa(i)]
		if !ok {
			break
		}
		a.Tags = append(a.Tags, tag)
	}
	return a, a.Caption != "" || len(a.Tags) > 0
}

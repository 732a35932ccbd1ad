package workflows

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/vision-catalog/internal/catalog"
	"github.com/tendant/vision-catalog/internal/storage"
	"github.com/tendant/vision-catalog/internal/thumbnail"
)

func makePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// stubAnnotator returns a fixed annotation or error and records what it saw.
type stubAnnotator struct {
	ann      catalog.Annotation
	err      error
	gotURL   string
	gotBytes []byte
}

func (s *stubAnnotator) AnnotateURL(ctx context.Context, imageURL string) (catalog.Annotation, error) {
	s.gotURL = imageURL
	if s.err != nil {
		return catalog.Annotation{}, s.err
	}
	return s.ann, nil
}

func (s *stubAnnotator) AnnotateBytes(ctx context.Context, r io.Reader) (catalog.Annotation, error) {
	s.gotBytes, _ = io.ReadAll(r)
	if s.err != nil {
		return catalog.Annotation{}, s.err
	}
	return s.ann, nil
}

// failingStore fails Put into the named container.
type failingStore struct {
	storage.Store
	failContainer string
}

func (f *failingStore) Put(ctx context.Context, container, name string, r io.Reader) error {
	if container == f.failContainer {
		return errors.New("store unavailable")
	}
	return f.Store.Put(ctx, container, name, r)
}

func dogAnnotation() catalog.Annotation {
	return catalog.Annotation{
		Caption: "a dog running",
		Tags:    []string{"dog", "animal", "outdoor"},
	}
}

func TestIngestor_FullPipeline(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	annotator := &stubAnnotator{ann: dogAnnotation()}
	in := NewIngestor(store, thumbnail.NewDeriver(192), annotator, "")

	result, err := in.Ingest(ctx, Upload{
		FileName:    "dog.jpg",
		ContentType: "image/jpeg",
		Data:        makePNG(t, 640, 480),
	})
	require.NoError(t, err)

	assert.Equal(t, "dog.jpg", result.Name)
	assert.True(t, result.ThumbnailStored)
	require.True(t, result.Annotation.OK)
	assert.Equal(t, dogAnnotation(), result.Annotation.Annotation)

	// Exactly one object per container under the same name
	originals, err := store.List(ctx, catalog.ContainerOriginals)
	require.NoError(t, err)
	assert.Equal(t, []string{"dog.jpg"}, originals)

	thumbs, err := store.List(ctx, catalog.ContainerThumbnails)
	require.NoError(t, err)
	assert.Equal(t, []string{"dog.jpg"}, thumbs)

	// Thumbnail respects the width bound
	r, err := store.Get(ctx, catalog.ContainerThumbnails, "dog.jpg")
	require.NoError(t, err)
	img, _, err := image.Decode(r)
	r.Close()
	require.NoError(t, err)
	assert.LessOrEqual(t, img.Bounds().Dx(), 192)

	// Metadata matches the persisted annotation schema
	meta, err := store.GetMetadata(ctx, catalog.ContainerOriginals, "dog.jpg")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"Caption": "a dog running",
		"Tag0":    "dog",
		"Tag1":    "animal",
		"Tag2":    "outdoor",
	}, meta)
}

func TestIngestor_AnnotatesStoredBytes(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	annotator := &stubAnnotator{ann: dogAnnotation()}
	in := NewIngestor(store, thumbnail.NewDeriver(192), annotator, "")

	data := makePNG(t, 100, 100)
	_, err := in.Ingest(ctx, Upload{FileName: "dog.jpg", ContentType: "image/png", Data: data})
	require.NoError(t, err)

	// Without a public base URL the pipeline posts the read-back original
	assert.Equal(t, data, annotator.gotBytes)
}

func TestIngestor_AnnotatesByReference(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	annotator := &stubAnnotator{ann: dogAnnotation()}
	in := NewIngestor(store, thumbnail.NewDeriver(192), annotator, "http://catalog.local/")

	_, err := in.Ingest(ctx, Upload{FileName: "dog.jpg", ContentType: "image/png", Data: makePNG(t, 100, 100)})
	require.NoError(t, err)

	assert.Equal(t, "http://catalog.local/files/originals/dog.jpg", annotator.gotURL)
	assert.Nil(t, annotator.gotBytes)
}

func TestIngestor_ValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		upload Upload
	}{
		{"no file", Upload{ContentType: "image/png", Data: []byte("x")}},
		{"empty file", Upload{FileName: "x.png", ContentType: "image/png"}},
		{"not an image", Upload{FileName: "notes.txt", ContentType: "text/plain", Data: []byte("hello")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := storage.NewMemoryStore()
			in := NewIngestor(store, thumbnail.NewDeriver(192), &stubAnnotator{}, "")

			_, err := in.Ingest(ctx, tt.upload)
			assert.ErrorIs(t, err, ErrValidation)

			// Nothing may be written on validation failure
			for _, container := range []string{catalog.ContainerOriginals, catalog.ContainerThumbnails} {
				names, listErr := store.List(ctx, container)
				require.NoError(t, listErr)
				assert.Empty(t, names, "container %s must stay empty", container)
			}
		})
	}
}

func TestIngestor_BaseNameIsObjectKey(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	in := NewIngestor(store, thumbnail.NewDeriver(192), &stubAnnotator{ann: dogAnnotation()}, "")

	result, err := in.Ingest(ctx, Upload{
		FileName:    `C:\Users\me\Pictures\dog.jpg`,
		ContentType: "image/jpeg",
		Data:        makePNG(t, 50, 50),
	})
	require.NoError(t, err)
	assert.Equal(t, "dog.jpg", result.Name)
}

func TestIngestor_OriginalStoreFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: storage.NewMemoryStore(), failContainer: catalog.ContainerOriginals}
	annotator := &stubAnnotator{ann: dogAnnotation()}
	in := NewIngestor(store, thumbnail.NewDeriver(192), annotator, "")

	_, err := in.Ingest(ctx, Upload{FileName: "dog.jpg", ContentType: "image/png", Data: makePNG(t, 50, 50)})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidation)

	// Nothing downstream ran
	assert.Nil(t, annotator.gotBytes)
	names, listErr := store.List(ctx, catalog.ContainerThumbnails)
	require.NoError(t, listErr)
	assert.Empty(t, names)
}

func TestIngestor_ThumbnailFailureIsAbsorbed(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: storage.NewMemoryStore(), failContainer: catalog.ContainerThumbnails}
	in := NewIngestor(store, thumbnail.NewDeriver(192), &stubAnnotator{ann: dogAnnotation()}, "")

	result, err := in.Ingest(ctx, Upload{FileName: "dog.jpg", ContentType: "image/png", Data: makePNG(t, 50, 50)})
	require.NoError(t, err)

	assert.False(t, result.ThumbnailStored)
	assert.Error(t, result.ThumbnailErr)
	assert.True(t, result.Annotation.OK)

	// Original and annotation are intact
	meta, err := store.GetMetadata(ctx, catalog.ContainerOriginals, "dog.jpg")
	require.NoError(t, err)
	assert.Equal(t, "a dog running", meta["Caption"])
}

func TestIngestor_UndecodableImageBytes(t *testing.T) {
	// Content type says image but the bytes don't decode: validation passes,
	// the thumbnail stage degrades, annotation still runs
	ctx := context.Background()
	store := storage.NewMemoryStore()
	in := NewIngestor(store, thumbnail.NewDeriver(192), &stubAnnotator{ann: dogAnnotation()}, "")

	result, err := in.Ingest(ctx, Upload{
		FileName:    "broken.jpg",
		ContentType: "image/jpeg",
		Data:        []byte("corrupt bytes"),
	})
	require.NoError(t, err)

	assert.False(t, result.ThumbnailStored)
	assert.ErrorIs(t, result.ThumbnailErr, thumbnail.ErrUnsupportedMedia)
	assert.True(t, result.Annotation.OK)
}

func TestIngestor_AnnotationFailureIsAbsorbed(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	in := NewIngestor(store, thumbnail.NewDeriver(192), &stubAnnotator{err: errors.New("service unreachable")}, "")

	result, err := in.Ingest(ctx, Upload{FileName: "dog.jpg", ContentType: "image/png", Data: makePNG(t, 50, 50)})
	require.NoError(t, err)

	assert.False(t, result.Annotation.OK)
	assert.Contains(t, result.Annotation.Reason, "service unreachable")

	// Original and thumbnail exist; no metadata was written
	names, err := store.List(ctx, catalog.ContainerOriginals)
	require.NoError(t, err)
	assert.Equal(t, []string{"dog.jpg"}, names)

	names, err = store.List(ctx, catalog.ContainerThumbnails)
	require.NoError(t, err)
	assert.Equal(t, []string{"dog.jpg"}, names)

	meta, err := store.GetMetadata(ctx, catalog.ContainerOriginals, "dog.jpg")
	require.NoError(t, err)
	assert.NotContains(t, meta, "Caption")
	assert.NotContains(t, meta, "Tag0")
}

func TestIngestor_SameNameOverwrites(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	first := &stubAnnotator{ann: catalog.Annotation{Caption: "first", Tags: []string{"one"}}}
	_, err := NewIngestor(store, thumbnail.NewDeriver(192), first, "").
		Ingest(ctx, Upload{FileName: "dog.jpg", ContentType: "image/png", Data: makePNG(t, 50, 50)})
	require.NoError(t, err)

	second := &stubAnnotator{ann: catalog.Annotation{Caption: "second", Tags: []string{"two"}}}
	_, err = NewIngestor(store, thumbnail.NewDeriver(192), second, "").
		Ingest(ctx, Upload{FileName: "dog.jpg", ContentType: "image/png", Data: makePNG(t, 60, 60)})
	require.NoError(t, err)

	// Last writer wins across original, thumbnail and metadata
	names, err := store.List(ctx, catalog.ContainerOriginals)
	require.NoError(t, err)
	assert.Equal(t, []string{"dog.jpg"}, names)

	meta, err := store.GetMetadata(ctx, catalog.ContainerOriginals, "dog.jpg")
	require.NoError(t, err)
	assert.Equal(t, "second", meta["Caption"])
	assert.Equal(t, "two", meta["Tag0"])
}

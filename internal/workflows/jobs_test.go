package workflows

import (
	"bytes"
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/vision-catalog/internal/catalog"
	"github.com/tendant/vision-catalog/internal/storage"
	"github.com/tendant/vision-catalog/internal/thumbnail"
	"github.com/tendant/vision-catalog/pkg/pipeline"
)

func storeOriginal(t *testing.T, store storage.Store, name string, data []byte) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), catalog.ContainerOriginals, name, bytes.NewReader(data)))
}

func wctxFor(req pipeline.ProcessRequest) *WorkflowContext {
	return &WorkflowContext{
		Ctx:     context.Background(),
		Request: req,
		RunID:   "test-run",
	}
}

func TestAnnotateWorkflow_AnnotatesStoredOriginal(t *testing.T) {
	store := storage.NewMemoryStore()
	data := makePNG(t, 50, 50)
	storeOriginal(t, store, "dog.jpg", data)

	annotator := &stubAnnotator{ann: dogAnnotation()}
	w := NewAnnotateWorkflow(store, annotator, "")

	result, err := w.Execute(wctxFor(pipeline.ProcessRequest{Name: "dog.jpg", Job: pipeline.JobAnnotate}))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, data, annotator.gotBytes)

	meta, err := store.GetMetadata(context.Background(), catalog.ContainerOriginals, "dog.jpg")
	require.NoError(t, err)
	assert.Equal(t, "a dog running", meta["Caption"])
	assert.Equal(t, "outdoor", meta["Tag2"])
}

func TestAnnotateWorkflow_SkipsAnnotatedItem(t *testing.T) {
	store := storage.NewMemoryStore()
	storeOriginal(t, store, "dog.jpg", makePNG(t, 50, 50))
	require.NoError(t, store.SetMetadata(context.Background(), catalog.ContainerOriginals, "dog.jpg",
		catalog.Annotation{Caption: "existing"}.EncodeMetadata()))

	annotator := &stubAnnotator{ann: dogAnnotation()}
	w := NewAnnotateWorkflow(store, annotator, "")

	result, err := w.Execute(wctxFor(pipeline.ProcessRequest{Name: "dog.jpg", Job: pipeline.JobAnnotate}))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, true, result.Outputs["skipped"])
	assert.Nil(t, annotator.gotBytes)

	// force=true overrides the skip and replaces the metadata
	result, err = w.Execute(wctxFor(pipeline.ProcessRequest{
		Name:     "dog.jpg",
		Job:      pipeline.JobAnnotate,
		Metadata: map[string]string{"force": "true"},
	}))
	require.NoError(t, err)
	assert.True(t, result.Success)

	meta, err := store.GetMetadata(context.Background(), catalog.ContainerOriginals, "dog.jpg")
	require.NoError(t, err)
	assert.Equal(t, "a dog running", meta["Caption"])
}

func TestAnnotateWorkflow_MissingItem(t *testing.T) {
	store := storage.NewMemoryStore()
	w := NewAnnotateWorkflow(store, &stubAnnotator{ann: dogAnnotation()}, "")

	result, err := w.Execute(wctxFor(pipeline.ProcessRequest{Name: "nope.jpg", Job: pipeline.JobAnnotate}))
	require.Error(t, err)
	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Error, storage.ErrNotFound)
}

func TestAnnotateWorkflow_ServiceFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	storeOriginal(t, store, "dog.jpg", makePNG(t, 50, 50))

	w := NewAnnotateWorkflow(store, &stubAnnotator{err: errors.New("quota exceeded")}, "")

	result, err := w.Execute(wctxFor(pipeline.ProcessRequest{Name: "dog.jpg", Job: pipeline.JobAnnotate}))
	require.Error(t, err)
	assert.False(t, result.Success)

	meta, metaErr := store.GetMetadata(context.Background(), catalog.ContainerOriginals, "dog.jpg")
	require.NoError(t, metaErr)
	assert.NotContains(t, meta, "Caption")
}

func TestThumbnailWorkflow_Regenerates(t *testing.T) {
	store := storage.NewMemoryStore()
	storeOriginal(t, store, "dog.jpg", makePNG(t, 640, 480))

	w := NewThumbnailWorkflow(store, thumbnail.NewDeriver(100))

	result, err := w.Execute(wctxFor(pipeline.ProcessRequest{Name: "dog.jpg", Job: pipeline.JobThumbnail}))
	require.NoError(t, err)
	assert.True(t, result.Success)

	r, err := store.Get(context.Background(), catalog.ContainerThumbnails, "dog.jpg")
	require.NoError(t, err)
	img, _, err := image.Decode(r)
	r.Close()
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
}

func TestThumbnailWorkflow_SkipsExisting(t *testing.T) {
	store := storage.NewMemoryStore()
	storeOriginal(t, store, "dog.jpg", makePNG(t, 640, 480))
	require.NoError(t, store.Put(context.Background(), catalog.ContainerThumbnails, "dog.jpg", bytes.NewReader([]byte("existing"))))

	w := NewThumbnailWorkflow(store, thumbnail.NewDeriver(100))

	result, err := w.Execute(wctxFor(pipeline.ProcessRequest{Name: "dog.jpg", Job: pipeline.JobThumbnail}))
	require.NoError(t, err)
	assert.Equal(t, true, result.Outputs["skipped"])

	// force=true regenerates
	result, err = w.Execute(wctxFor(pipeline.ProcessRequest{
		Name:     "dog.jpg",
		Job:      pipeline.JobThumbnail,
		Metadata: map[string]string{"force": "true"},
	}))
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Nil(t, result.Outputs["skipped"])
}

func TestThumbnailWorkflow_MissingOriginal(t *testing.T) {
	w := NewThumbnailWorkflow(storage.NewMemoryStore(), thumbnail.NewDeriver(100))

	result, err := w.Execute(wctxFor(pipeline.ProcessRequest{Name: "nope.jpg", Job: pipeline.JobThumbnail}))
	require.Error(t, err)
	assert.False(t, result.Success)
}

func TestWorkflowRunner_Run(t *testing.T) {
	store := storage.NewMemoryStore()
	storeOriginal(t, store, "dog.jpg", makePNG(t, 640, 480))

	runner := NewWorkflowRunner(nil)
	runner.Register(pipeline.JobThumbnail, NewThumbnailWorkflow(store, thumbnail.NewDeriver(100)))

	result, err := runner.Run(wctxFor(pipeline.ProcessRequest{Name: "dog.jpg", Job: pipeline.JobThumbnail}))
	require.NoError(t, err)
	assert.True(t, result.Success)

	_, err = runner.Run(wctxFor(pipeline.ProcessRequest{Name: "dog.jpg", Job: "unknown"}))
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

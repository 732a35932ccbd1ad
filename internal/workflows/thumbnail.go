package workflows

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/tendant/vision-catalog/internal/catalog"
	"github.com/tendant/vision-catalog/internal/storage"
	"github.com/tendant/vision-catalog/internal/thumbnail"
)

// ThumbnailWorkflow regenerates the thumbnail for an already-stored
// original, e.g. after the thumbnail stage was absorbed as a failure during
// ingestion or the width bound changed.
type ThumbnailWorkflow struct {
	store   storage.Store
	deriver *thumbnail.Deriver
}

// NewThumbnailWorkflow creates the thumbnail job.
func NewThumbnailWorkflow(store storage.Store, deriver *thumbnail.Deriver) *ThumbnailWorkflow {
	return &ThumbnailWorkflow{
		store:   store,
		deriver: deriver,
	}
}

// Name returns the workflow name
func (w *ThumbnailWorkflow) Name() string {
	return "ThumbnailWorkflow"
}

// Execute runs the thumbnail job
func (w *ThumbnailWorkflow) Execute(wctx *WorkflowContext) (*WorkflowResult, error) {
	name := wctx.Request.Name
	log.Printf("[%s] Starting thumbnail workflow for name=%s", wctx.RunID, name)

	if name == "" {
		err := fmt.Errorf("%w: name is required", ErrInvalidRequest)
		return &WorkflowResult{Success: false, Error: err}, err
	}

	// Step 1: Skip if a thumbnail already exists, unless forced
	if wctx.Request.Metadata["force"] != "true" {
		if _, err := w.store.GetMetadata(wctx.Ctx, catalog.ContainerThumbnails, name); err == nil {
			log.Printf("[%s] Thumbnail already exists - skipping", wctx.RunID)
			return &WorkflowResult{
				Success: true,
				Outputs: map[string]interface{}{
					"name":    name,
					"skipped": true,
				},
			}, nil
		} else if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("[%s] Failed to check existing thumbnail: %v", wctx.RunID, err)
			// Continue anyway - don't fail on check error
		}
	}

	// Step 2: Read the stored original
	r, err := w.store.Get(wctx.Ctx, catalog.ContainerOriginals, name)
	if err != nil {
		log.Printf("[%s] Failed to read original: %v", wctx.RunID, err)
		return &WorkflowResult{
			Success: false,
			Error:   fmt.Errorf("failed to read original: %w", err),
		}, err
	}
	data, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		log.Printf("[%s] Failed to read original bytes: %v", wctx.RunID, err)
		return &WorkflowResult{
			Success: false,
			Error:   fmt.Errorf("failed to read original: %w", err),
		}, err
	}

	// Step 3: Derive the thumbnail
	thumb, err := w.deriver.Derive(data)
	if err != nil {
		log.Printf("[%s] Failed to derive thumbnail: %v", wctx.RunID, err)
		return &WorkflowResult{
			Success: false,
			Error:   fmt.Errorf("thumbnail derivation failed: %w", err),
		}, err
	}
	log.Printf("[%s] Thumbnail derived, size: %d bytes", wctx.RunID, len(thumb))

	// Step 4: Store it under the same name in the thumbnails container
	if err := w.store.Put(wctx.Ctx, catalog.ContainerThumbnails, name, bytes.NewReader(thumb)); err != nil {
		log.Printf("[%s] Failed to store thumbnail: %v", wctx.RunID, err)
		return &WorkflowResult{
			Success: false,
			Error:   fmt.Errorf("failed to store thumbnail: %w", err),
		}, err
	}

	log.Printf("[%s] Thumbnail workflow completed successfully", wctx.RunID)

	return &WorkflowResult{
		Success: true,
		Outputs: map[string]interface{}{
			"name":  name,
			"bytes": len(thumb),
		},
	}, nil
}

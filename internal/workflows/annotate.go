package workflows

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/tendant/vision-catalog/internal/catalog"
	"github.com/tendant/vision-catalog/internal/storage"
)

// AnnotateWorkflow re-runs annotation for an already-stored original. This
// is the out-of-band recovery path for items whose annotation failed during
// ingestion; the ingestion pipeline itself never retries.
type AnnotateWorkflow struct {
	store         storage.Store
	annotator     Annotator
	publicBaseURL string
}

// NewAnnotateWorkflow creates the annotate job.
func NewAnnotateWorkflow(store storage.Store, annotator Annotator, publicBaseURL string) *AnnotateWorkflow {
	return &AnnotateWorkflow{
		store:         store,
		annotator:     annotator,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Name returns the workflow name
func (w *AnnotateWorkflow) Name() string {
	return "AnnotateWorkflow"
}

// Execute runs the annotate job
func (w *AnnotateWorkflow) Execute(wctx *WorkflowContext) (*WorkflowResult, error) {
	name := wctx.Request.Name
	log.Printf("[%s] Starting annotate workflow for name=%s", wctx.RunID, name)

	if name == "" {
		err := fmt.Errorf("%w: name is required", ErrInvalidRequest)
		return &WorkflowResult{Success: false, Error: err}, err
	}

	// Step 1: Check the item is already annotated (skip unless forced)
	meta, err := w.store.GetMetadata(wctx.Ctx, catalog.ContainerOriginals, name)
	if err != nil {
		log.Printf("[%s] Failed to read item metadata: %v", wctx.RunID, err)
		return &WorkflowResult{
			Success: false,
			Error:   fmt.Errorf("item lookup failed: %w", err),
		}, err
	}

	if _, annotated := catalog.DecodeAnnotation(meta); annotated && wctx.Request.Metadata["force"] != "true" {
		log.Printf("[%s] Item already annotated - skipping", wctx.RunID)
		return &WorkflowResult{
			Success: true,
			Outputs: map[string]interface{}{
				"name":    name,
				"skipped": true,
			},
		}, nil
	}

	// Step 2: Annotate the stored original
	ann, err := w.annotate(wctx.Ctx, name)
	if err != nil {
		log.Printf("[%s] Annotation failed: %v", wctx.RunID, err)
		return &WorkflowResult{
			Success: false,
			Error:   fmt.Errorf("annotation failed: %w", err),
		}, err
	}

	log.Printf("[%s] Annotation succeeded: caption=%q tags=%d", wctx.RunID, ann.Caption, len(ann.Tags))

	// Step 3: Commit as a full metadata replace
	if err := w.store.SetMetadata(wctx.Ctx, catalog.ContainerOriginals, name, ann.EncodeMetadata()); err != nil {
		log.Printf("[%s] Failed to commit metadata: %v", wctx.RunID, err)
		return &WorkflowResult{
			Success: false,
			Error:   fmt.Errorf("metadata commit failed: %w", err),
		}, err
	}

	log.Printf("[%s] Annotate workflow completed successfully", wctx.RunID)

	return &WorkflowResult{
		Success: true,
		Outputs: map[string]interface{}{
			"name":    name,
			"caption": ann.Caption,
			"tags":    len(ann.Tags),
		},
	}, nil
}

func (w *AnnotateWorkflow) annotate(ctx context.Context, name string) (catalog.Annotation, error) {
	if w.publicBaseURL != "" {
		imageURL := fmt.Sprintf("%s/files/%s/%s", w.publicBaseURL, catalog.ContainerOriginals, name)
		return w.annotator.AnnotateURL(ctx, imageURL)
	}

	r, err := w.store.Get(ctx, catalog.ContainerOriginals, name)
	if err != nil {
		return catalog.Annotation{}, fmt.Errorf("failed to read original: %w", err)
	}
	defer r.Close()
	return w.annotator.AnnotateBytes(ctx, r)
}

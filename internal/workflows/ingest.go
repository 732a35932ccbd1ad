package workflows

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/vision-catalog/internal/catalog"
	"github.com/tendant/vision-catalog/internal/metrics"
	"github.com/tendant/vision-catalog/internal/storage"
	"github.com/tendant/vision-catalog/internal/thumbnail"
)

// Annotator requests caption/tag analysis from the visual recognition
// service for an already-stored original.
type Annotator interface {
	AnnotateURL(ctx context.Context, imageURL string) (catalog.Annotation, error)
	AnnotateBytes(ctx context.Context, r io.Reader) (catalog.Annotation, error)
}

// Upload is the raw intake for one ingestion request.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// AnnotationOutcome is the typed result of the annotation stage. A failed
// annotation is a normal branch of a successful ingestion, not an error.
type AnnotationOutcome struct {
	OK         bool
	Annotation catalog.Annotation
	Reason     string // diagnostic when not OK
}

// IngestResult reports what one ingestion left behind. The original is
// always stored when Ingest returns without error; the thumbnail and
// annotation fields record the degraded cases.
type IngestResult struct {
	Name            string
	ThumbnailStored bool
	ThumbnailErr    error
	Annotation      AnnotationOutcome
}

// Ingestor runs the ingestion pipeline for one upload:
// validate -> store original -> derive & store thumbnail -> annotate ->
// commit annotation metadata. Validation and original-store failures are
// fatal; thumbnail and annotation failures degrade the item and are
// absorbed. Each call is an independent unit of work; concurrent uploads
// colliding on a filename are last-write-wins.
type Ingestor struct {
	store     storage.Store
	deriver   *thumbnail.Deriver
	annotator Annotator

	// publicBaseURL, when set, makes stored originals addressable by the
	// annotation service; otherwise the stored bytes are read back and
	// posted directly.
	publicBaseURL string
}

// NewIngestor creates an ingestion pipeline.
func NewIngestor(store storage.Store, deriver *thumbnail.Deriver, annotator Annotator, publicBaseURL string) *Ingestor {
	return &Ingestor{
		store:         store,
		deriver:       deriver,
		annotator:     annotator,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// Ingest runs the full pipeline for one upload. A non-nil error means
// nothing usable was stored (validation failure) or the original could not
// be stored; every other failure is reported on the result.
func (in *Ingestor) Ingest(ctx context.Context, up Upload) (*IngestResult, error) {
	runID := uuid.New().String()

	// Stage 1: validate. Nothing is written on failure.
	name, err := validateUpload(up)
	if err != nil {
		log.Printf("[%s] Upload rejected: %v", runID, err)
		metrics.IngestsTotal.WithLabelValues(metrics.OutcomeValidationFailed).Inc()
		return nil, err
	}

	log.Printf("[%s] Ingesting %s (%d bytes, %s)", runID, name, len(up.Data), up.ContentType)

	// Stage 2: store the original. Fatal on failure; nothing downstream runs.
	if err := in.store.Put(ctx, catalog.ContainerOriginals, name, bytes.NewReader(up.Data)); err != nil {
		log.Printf("[%s] Failed to store original: %v", runID, err)
		metrics.IngestsTotal.WithLabelValues(metrics.OutcomeStoreFailed).Inc()
		return nil, fmt.Errorf("failed to store original: %w", err)
	}

	result := &IngestResult{Name: name}

	// Stage 3: derive and store the thumbnail. Absence degrades
	// presentation, not ingestion.
	if err := in.storeThumbnail(ctx, name, up.Data); err != nil {
		log.Printf("[%s] Thumbnail failed (continuing): %v", runID, err)
		metrics.ThumbnailFailuresTotal.Inc()
		result.ThumbnailErr = err
	} else {
		result.ThumbnailStored = true
	}

	// Stage 4: annotate the stored original. Any service failure leaves the
	// item visible but unsearchable by tag; no metadata is written.
	ann, err := in.annotate(ctx, name)
	if err != nil {
		log.Printf("[%s] Annotation failed (continuing): %v", runID, err)
		metrics.AnnotationFailuresTotal.Inc()
		result.Annotation = AnnotationOutcome{Reason: err.Error()}
		metrics.IngestsTotal.WithLabelValues(metrics.OutcomeIngested).Inc()
		return result, nil
	}

	// Stage 5: commit. A single full metadata replace, the first and only
	// metadata write for this object in this flow.
	if err := in.store.SetMetadata(ctx, catalog.ContainerOriginals, name, ann.EncodeMetadata()); err != nil {
		log.Printf("[%s] Failed to commit annotation metadata (continuing): %v", runID, err)
		metrics.AnnotationFailuresTotal.Inc()
		result.Annotation = AnnotationOutcome{Reason: fmt.Sprintf("failed to commit annotation: %v", err)}
		metrics.IngestsTotal.WithLabelValues(metrics.OutcomeIngested).Inc()
		return result, nil
	}

	log.Printf("[%s] Ingested %s: caption=%q tags=%d", runID, name, ann.Caption, len(ann.Tags))
	result.Annotation = AnnotationOutcome{OK: true, Annotation: ann}
	metrics.IngestsTotal.WithLabelValues(metrics.OutcomeIngested).Inc()
	return result, nil
}

func validateUpload(up Upload) (string, error) {
	if up.FileName == "" {
		return "", fmt.Errorf("%w: no file provided", ErrValidation)
	}
	if len(up.Data) == 0 {
		return "", fmt.Errorf("%w: file is empty", ErrValidation)
	}
	if !strings.HasPrefix(up.ContentType, "image") {
		return "", fmt.Errorf("%w: only image files may be uploaded", ErrValidation)
	}

	// The bare filename is the object key; same-name uploads overwrite each
	// other, last writer wins
	name := path.Base(strings.ReplaceAll(up.FileName, `\`, "/"))
	if name == "." || name == "/" {
		return "", fmt.Errorf("%w: no file provided", ErrValidation)
	}
	return name, nil
}

func (in *Ingestor) storeThumbnail(ctx context.Context, name string, data []byte) error {
	thumb, err := in.deriver.Derive(data)
	if err != nil {
		return err
	}
	if err := in.store.Put(ctx, catalog.ContainerThumbnails, name, bytes.NewReader(thumb)); err != nil {
		return fmt.Errorf("failed to store thumbnail: %w", err)
	}
	return nil
}

// annotate analyzes the stored original, not the upload stream, so the
// service and the catalog agree on the exact bytes analyzed.
func (in *Ingestor) annotate(ctx context.Context, name string) (catalog.Annotation, error) {
	if in.publicBaseURL != "" {
		imageURL := fmt.Sprintf("%s/files/%s/%s", in.publicBaseURL, catalog.ContainerOriginals, name)
		return in.annotator.AnnotateURL(ctx, imageURL)
	}

	r, err := in.store.Get(ctx, catalog.ContainerOriginals, name)
	if err != nil {
		return catalog.Annotation{}, fmt.Errorf("failed to read back original: %w", err)
	}
	defer r.Close()
	return in.annotator.AnnotateBytes(ctx, r)
}

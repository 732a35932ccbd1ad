package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/tendant/vision-catalog/internal/catalog"
	"github.com/tendant/vision-catalog/internal/dedupe"
	"github.com/tendant/vision-catalog/internal/metrics"
	"github.com/tendant/vision-catalog/internal/storage"
	"github.com/tendant/vision-catalog/internal/workflows"
	"github.com/tendant/vision-catalog/pkg/pipeline"
)

// maxUploadBytes bounds in-memory multipart parsing
const maxUploadBytes = 32 << 20

// CatalogHandler serves the upload, search and file routes.
type CatalogHandler struct {
	ingestor *workflows.Ingestor
	searcher *catalog.Searcher
	store    storage.Store
	tracker  *dedupe.Tracker // nil disables collision tracking
}

// NewCatalogHandler creates the catalog HTTP handler.
func NewCatalogHandler(ingestor *workflows.Ingestor, searcher *catalog.Searcher, store storage.Store, tracker *dedupe.Tracker) *CatalogHandler {
	return &CatalogHandler{
		ingestor: ingestor,
		searcher: searcher,
		store:    store,
		tracker:  tracker,
	}
}

// HandleUpload handles POST /v1/images - runs the ingestion pipeline for one
// multipart upload
func (h *CatalogHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, fmt.Sprintf("Invalid multipart request: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to read upload: %v", err), http.StatusBadRequest)
		return
	}

	result, err := h.ingestor.Ingest(r.Context(), workflows.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		if errors.Is(err, workflows.ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// Original could not be stored; the whole request failed
		log.Printf("Ingestion failed for %s: %v", header.Filename, err)
		http.Error(w, fmt.Sprintf("Ingestion failed: %v", err), http.StatusBadGateway)
		return
	}

	resp := pipeline.UploadResponse{
		Name:         result.Name,
		OriginalURL:  "/files/" + catalog.ContainerOriginals + "/" + result.Name,
		ThumbnailURL: "/files/" + catalog.ContainerThumbnails + "/" + result.Name,
	}
	if !result.ThumbnailStored {
		resp.ThumbnailURL = ""
		if result.ThumbnailErr != nil {
			resp.ThumbnailError = result.ThumbnailErr.Error()
		}
	}
	if result.Annotation.OK {
		resp.Caption = result.Annotation.Annotation.Caption
		resp.Tags = result.Annotation.Annotation.Tags
	} else {
		resp.AnnotationError = result.Annotation.Reason
	}

	if h.tracker != nil {
		count, err := h.tracker.Record(r.Context(), result.Name, header.Header.Get("Content-Type"))
		if err != nil {
			log.Printf("Failed to record upload for %s: %v", result.Name, err)
		} else {
			resp.DedupeSeenCount = count
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// HandleSearch handles GET /v1/images?term=x - lists catalog items matching
// the term, or all items when no term is given
func (h *CatalogHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	metrics.SearchesTotal.Inc()

	term := r.URL.Query().Get("term")
	items, err := h.searcher.Search(r.Context(), term)
	if err != nil {
		log.Printf("Search failed for term=%q: %v", term, err)
		http.Error(w, fmt.Sprintf("Search failed: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(items)
}

// HandleFiles handles GET /files/{container}/{name} - serves stored object
// bytes. This is also the fetchable reference handed to the annotation
// service when a public base URL is configured.
func (h *CatalogHandler) HandleFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/files/")
	container, name, ok := strings.Cut(rest, "/")
	if !ok || name == "" {
		http.Error(w, "container and name are required", http.StatusBadRequest)
		return
	}
	if container != catalog.ContainerOriginals && container != catalog.ContainerThumbnails {
		http.Error(w, "Unknown container", http.StatusNotFound)
		return
	}

	obj, err := h.store.Get(r.Context(), container, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Object not found", http.StatusNotFound)
			return
		}
		log.Printf("Failed to read %s/%s: %v", container, name, err)
		http.Error(w, "Failed to read object", http.StatusInternalServerError)
		return
	}
	defer obj.Close()

	// Sniff the content type from the leading bytes
	head := make([]byte, 512)
	n, _ := io.ReadFull(obj, head)
	w.Header().Set("Content-Type", http.DetectContentType(head[:n]))
	w.WriteHeader(http.StatusOK)
	w.Write(head[:n])
	io.Copy(w, obj)
}

package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/vision-catalog/internal/catalog"
	"github.com/tendant/vision-catalog/internal/dedupe"
	"github.com/tendant/vision-catalog/internal/handlers"
	"github.com/tendant/vision-catalog/internal/storage"
	"github.com/tendant/vision-catalog/internal/thumbnail"
	"github.com/tendant/vision-catalog/internal/vision"
	"github.com/tendant/vision-catalog/internal/workflows"
)

// Standalone catalog service for a single process deployment:
// filesystem storage, synchronous ingestion, no job queue.
func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	// Configuration from environment
	httpAddr := os.Getenv("CATALOG_HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	storageDir := os.Getenv("STORAGE_DIR")
	if storageDir == "" {
		storageDir = "./dev-data"
	}

	maxWidth := thumbnail.DefaultMaxWidth
	if v := os.Getenv("THUMBNAIL_MAX_WIDTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxWidth = n
		}
	}

	visionEndpoint := os.Getenv("VISION_ENDPOINT")
	visionKey := os.Getenv("VISION_KEY")
	publicBaseURL := os.Getenv("PUBLIC_BASE_URL")

	log.Printf("Catalog Standalone Service")
	log.Printf("  Storage directory: %s", storageDir)
	log.Printf("  HTTP address: %s", httpAddr)
	log.Printf("  Thumbnail max width: %d", maxWidth)
	if visionEndpoint == "" {
		log.Printf("  WARNING: VISION_ENDPOINT not set - uploads will be stored without annotations")
	}

	store, err := storage.NewFilesystemStore(storageDir)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	deriver := thumbnail.NewDeriver(maxWidth)
	annotator := vision.New(vision.Config{
		Endpoint:        visionEndpoint,
		SubscriptionKey: visionKey,
	})

	ingestor := workflows.NewIngestor(store, deriver, annotator, publicBaseURL)
	searcher := catalog.NewSearcher(store, nil)

	// Optional upload collision tracker
	var tracker *dedupe.Tracker
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		db, err := sql.Open("postgres", dbURL)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()

		tracker, err = dedupe.NewTracker(db)
		if err != nil {
			log.Fatalf("Failed to initialize upload tracker: %v", err)
		}
		log.Printf("✓ Upload collision tracking enabled")
	}

	handler := handlers.NewCatalogHandler(ingestor, searcher, store, tracker)

	// Create HTTP server
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/v1/images", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			handler.HandleUpload(w, r)
			return
		}
		handler.HandleSearch(w, r)
	})
	mux.HandleFunc("/files/", handler.HandleFiles)

	server := &http.Server{
		Addr:    httpAddr,
		Handler: mux,
	}

	// Start server in goroutine
	go func() {
		log.Printf("✓ Catalog service ready on %s", httpAddr)
		log.Printf("")
		log.Printf("Available endpoints:")
		log.Printf("  GET  /health                      - Health check")
		log.Printf("  GET  /metrics                     - Prometheus metrics")
		log.Printf("  POST /v1/images                   - Upload an image (multipart, field: file)")
		log.Printf("  GET  /v1/images?term=x            - Search the catalog by tag")
		log.Printf("  GET  /files/{container}/{name}    - Fetch stored bytes")
		log.Printf("")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// handleHealth returns health status
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
		"mode":   "standalone",
	})
}

package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tendant/vision-catalog/internal/dbosruntime"
	"github.com/tendant/vision-catalog/internal/handlers"
	"github.com/tendant/vision-catalog/internal/storage"
	"github.com/tendant/vision-catalog/internal/thumbnail"
	"github.com/tendant/vision-catalog/internal/vision"
	"github.com/tendant/vision-catalog/internal/workflows"
	"github.com/tendant/vision-catalog/pkg/pipeline"
)

// Catalog job worker: runs annotate and thumbnail jobs against
// already-stored originals through the DBOS durable queue.
func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	// Configuration from environment
	httpAddr := os.Getenv("WORKER_HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8081"
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

	store, err := storage.NewFilesystemStore(storageDir)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	annotator := vision.New(vision.Config{
		Endpoint:        os.Getenv("VISION_ENDPOINT"),
		SubscriptionKey: os.Getenv("VISION_KEY"),
	})

	// Initialize DBOS runtime (required)
	dbURL := os.Getenv("DBOS_SYSTEM_DATABASE_URL")
	if dbURL == "" {
		log.Fatalf("DBOS_SYSTEM_DATABASE_URL is required")
	}

	queueName := os.Getenv("DBOS_QUEUE_NAME")
	if queueName == "" {
		queueName = "default"
	}

	dbosRuntime, err := dbosruntime.NewRuntime(context.Background(), dbosruntime.Config{
		DatabaseURL: dbURL,
		AppName:     "catalog-worker",
		QueueName:   queueName,
		Concurrency: 4,
	})
	if err != nil {
		log.Fatalf("Failed to initialize DBOS: %v", err)
	}

	// Initialize workflow runner with DBOS support (registers workflows with DBOS)
	workflowRunner := workflows.NewWorkflowRunner(dbosRuntime)

	// Register workflows
	annotateWorkflow := workflows.NewAnnotateWorkflow(store, annotator, os.Getenv("PUBLIC_BASE_URL"))
	workflowRunner.Register(pipeline.JobAnnotate, annotateWorkflow)
	log.Printf("✓ Registered workflow: %s for job: %s", annotateWorkflow.Name(), pipeline.JobAnnotate)

	thumbnailWorkflow := workflows.NewThumbnailWorkflow(store, thumbnail.NewDeriver(maxWidth))
	workflowRunner.Register(pipeline.JobThumbnail, thumbnailWorkflow)
	log.Printf("✓ Registered workflow: %s for job: %s", thumbnailWorkflow.Name(), pipeline.JobThumbnail)

	// Launch DBOS (must be done after workflow registration)
	if err := dbosRuntime.Launch(); err != nil {
		log.Fatalf("Failed to launch DBOS: %v", err)
	}
	defer dbosRuntime.Shutdown(10 * time.Second)

	log.Printf("✓ DBOS runtime initialized")
	log.Printf("  Queue: %s", dbosRuntime.QueueName())
	log.Printf("  Concurrency: %d", dbosRuntime.Concurrency())

	// Create HTTP server
	mux := http.NewServeMux()

	asyncHandler := handlers.NewAsyncHandler(workflowRunner)

	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/v1/process", asyncHandler.HandleProcessAsync)
	mux.HandleFunc("/v1/runs/", asyncHandler.HandleStatus)

	log.Printf("✓ Registered async endpoints")

	server := &http.Server{
		Addr:    httpAddr,
		Handler: mux,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Catalog worker starting on %s", httpAddr)
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
	})
}

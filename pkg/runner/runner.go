package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/tendant/vision-catalog/internal/dbosruntime"
	"github.com/tendant/vision-catalog/internal/storage"
	"github.com/tendant/vision-catalog/internal/thumbnail"
	"github.com/tendant/vision-catalog/internal/vision"
	"github.com/tendant/vision-catalog/internal/workflows"
	"github.com/tendant/vision-catalog/pkg/pipeline"
)

// Config holds the configuration for initializing the catalog job runner
type Config struct {
	DatabaseURL        string // DBOS PostgreSQL connection string
	AppName            string // Application name for DBOS
	QueueName          string // DBOS queue name
	Concurrency        int    // Number of concurrent workers
	StorageDir         string // Filesystem store root
	VisionEndpoint     string // Annotation service base URL
	VisionKey          string // Annotation service subscription key
	PublicBaseURL      string // Optional service-fetchable address for stored originals
	ThumbnailMaxWidth  int    // Optional thumbnail width bound
	ApplicationVersion string // Optional: Override binary hash for version matching
}

// Runner provides a high-level API for running catalog jobs via DBOS from
// an embedding application.
type Runner struct {
	runtime *dbosruntime.Runtime
	runner  *workflows.WorkflowRunner
}

// New creates and initializes a new catalog runner with DBOS integration
func New(cfg Config) (*Runner, error) {
	dbosRuntime, err := dbosruntime.NewRuntime(context.Background(), dbosruntime.Config{
		DatabaseURL:        cfg.DatabaseURL,
		AppName:            cfg.AppName,
		QueueName:          cfg.QueueName,
		Concurrency:        cfg.Concurrency,
		ApplicationVersion: cfg.ApplicationVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize DBOS: %w", err)
	}

	workflowRunner := workflows.NewWorkflowRunner(dbosRuntime)

	store, err := storage.NewFilesystemStore(cfg.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	annotator := vision.New(vision.Config{
		Endpoint:        cfg.VisionEndpoint,
		SubscriptionKey: cfg.VisionKey,
	})

	workflowRunner.Register(pipeline.JobAnnotate,
		workflows.NewAnnotateWorkflow(store, annotator, cfg.PublicBaseURL))
	workflowRunner.Register(pipeline.JobThumbnail,
		workflows.NewThumbnailWorkflow(store, thumbnail.NewDeriver(cfg.ThumbnailMaxWidth)))

	// Launch DBOS (must be after workflow registration)
	if err := dbosRuntime.Launch(); err != nil {
		return nil, fmt.Errorf("failed to launch DBOS: %w", err)
	}

	return &Runner{
		runtime: dbosRuntime,
		runner:  workflowRunner,
	}, nil
}

// RunAnnotate enqueues an annotation job for a stored catalog item
func (r *Runner) RunAnnotate(ctx context.Context, name string, force bool) (string, error) {
	req := pipeline.ProcessRequest{
		Name: name,
		Job:  pipeline.JobAnnotate,
	}
	if force {
		req.Metadata = map[string]string{"force": "true"}
	}
	return r.runner.RunAsync(ctx, req)
}

// RunThumbnail enqueues a thumbnail regeneration job for a stored catalog item
func (r *Runner) RunThumbnail(ctx context.Context, name string, force bool) (string, error) {
	req := pipeline.ProcessRequest{
		Name: name,
		Job:  pipeline.JobThumbnail,
	}
	if force {
		req.Metadata = map[string]string{"force": "true"}
	}
	return r.runner.RunAsync(ctx, req)
}

// RunExternalAnalysis triggers an analysis workflow implemented by workers
// outside this binary (heavier feature axes such as OCR or object
// detection), addressed by workflow name.
func (r *Runner) RunExternalAnalysis(ctx context.Context, workflowName string, name string) (string, error) {
	return r.runtime.StartWorkflowByName(ctx, workflowName, name, nil)
}

// Status returns the coarse state of an enqueued job
func (r *Runner) Status(ctx context.Context, runID string) (*workflows.WorkflowStatus, error) {
	return r.runner.GetStatus(ctx, runID)
}

// Shutdown gracefully shuts down the catalog runner
func (r *Runner) Shutdown(timeoutSeconds int) {
	if r.runtime != nil {
		r.runtime.Shutdown(time.Duration(timeoutSeconds) * time.Second)
	}
}

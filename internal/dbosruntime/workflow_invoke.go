package dbosruntime

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// WorkflowInput represents input to an externally-implemented DBOS workflow
type WorkflowInput struct {
	Name     string                 `json:"name"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// StartWorkflowByName starts a DBOS workflow by name (language-agnostic).
// Heavier analysis axes (OCR, object detection, face grouping) run in
// workers implemented outside this binary; this enqueues work for them
// against a stored catalog item.
func (r *Runtime) StartWorkflowByName(ctx context.Context, workflowName string, name string, metadata map[string]interface{}) (string, error) {
	workflowUUID := fmt.Sprintf("%s-%s-%d", workflowName, name, time.Now().UnixNano())

	input := WorkflowInput{
		Name:     name,
		Metadata: metadata,
	}

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("failed to marshal input: %w", err)
	}

	db := r.db

	// Insert into dbos.workflow_status so workers in any language can
	// discover the run
	query := `
		INSERT INTO dbos.workflow_status (
			workflow_uuid,
			status,
			name,
			request,
			executor_id,
			created_at,
			updated_at,
			application_version,
			application_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	now := time.Now().UnixMilli()
	_, err = db.ExecContext(ctx, query,
		workflowUUID,
		"PENDING",
		workflowName,
		string(inputJSON),
		"pending",
		now,
		now,
		r.config.ApplicationVersion,
		r.config.AppName,
	)

	if err != nil {
		return "", fmt.Errorf("failed to insert workflow: %w", err)
	}

	queueQuery := `
		INSERT INTO dbos.workflow_queue (
			workflow_uuid,
			queue_name,
			created_at_epoch_ms
		) VALUES ($1, $2, $3)
	`

	_, err = db.ExecContext(ctx, queueQuery,
		workflowUUID,
		r.config.QueueName,
		now,
	)

	if err != nil {
		return "", fmt.Errorf("failed to enqueue workflow: %w", err)
	}

	return workflowUUID, nil
}

// WorkflowState returns the coarse state of a workflow run as tracked in
// the DBOS status table: "pending", "running", "succeeded" or "failed".
func (r *Runtime) WorkflowState(ctx context.Context, workflowUUID string) (string, error) {
	query := `SELECT status FROM dbos.workflow_status WHERE workflow_uuid = $1`

	var status string
	err := r.db.QueryRowContext(ctx, query, workflowUUID).Scan(&status)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("workflow not found: %s", workflowUUID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query workflow status: %w", err)
	}

	switch strings.ToUpper(status) {
	case "PENDING", "ENQUEUED":
		return "pending", nil
	case "SUCCESS":
		return "succeeded", nil
	case "ERROR", "CANCELLED", "MAX_RECOVERY_ATTEMPTS_EXCEEDED":
		return "failed", nil
	default:
		return "running", nil
	}
}

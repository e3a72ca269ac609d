package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"docai-platform/internal/logger"
	"docai-platform/services"
)

const TaskProcessDocument = "document:process"

type ProcessDocumentPayload struct {
	DocumentID string `json:"document_id"`
	UserID     string `json:"user_id"`
}

// NewProcessDocumentTask enqueues background processing for one upload.
func NewProcessDocumentTask(documentID, userID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ProcessDocumentPayload{
		DocumentID: documentID,
		UserID:     userID,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskProcessDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

// TaskProcessor handles queued document work.
type TaskProcessor struct {
	processor *services.ProcessorService
}

func NewTaskProcessor(processor *services.ProcessorService) *TaskProcessor {
	return &TaskProcessor{processor: processor}
}

func (p *TaskProcessor) HandleProcessDocument(ctx context.Context, t *asynq.Task) error {
	var payload ProcessDocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	logger.Info("Processing queued document",
		"document_id", payload.DocumentID,
		"user_id", payload.UserID)

	if err := p.processor.Process(ctx, payload.DocumentID, payload.UserID); err != nil {
		// Ownership errors will never heal; everything else retries.
		if errors.Is(err, services.ErrDocumentNotFound) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}

// Register wires handlers onto the worker mux.
func (p *TaskProcessor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskProcessDocument, p.HandleProcessDocument)
}

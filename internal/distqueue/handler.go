package distqueue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// ProcessFunc executes a single distributed capture task, implemented
// by the CLI worker command in terms of the same capture/diff/baseline
// collaborators the in-process runner uses.
type ProcessFunc func(ctx context.Context, payload PagePayload) error

// Handler dispatches asynq tasks by type, grounded on the teacher's
// tasks.Handler/ProcessTask switch.
type Handler struct {
	process ProcessFunc
}

// NewHandler builds a Handler that delegates TypeCapturePage tasks to process.
func NewHandler(process ProcessFunc) *Handler {
	return &Handler{process: process}
}

// ProcessTask implements asynq.Handler.
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	switch task.Type() {
	case TypeCapturePage:
		var payload PagePayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("distqueue: unmarshal page payload: %w", err)
		}
		return h.process(ctx, payload)
	case TypeHealthCheck:
		return nil
	default:
		return fmt.Errorf("distqueue: unknown task type: %s", task.Type())
	}
}

// Mux wraps the Handler in an asynq.ServeMux ready to pass to Server.Run.
func (h *Handler) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeCapturePage, h)
	mux.HandleFunc(TypeHealthCheck, func(context.Context, *asynq.Task) error { return nil })
	return mux
}

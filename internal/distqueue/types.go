// Package distqueue submits capture tasks onto a Redis-backed asynq
// queue so a visual test run can execute across worker processes
// instead of a single in-process pool, generalizing the teacher's
// redis/client.go and redis/tasks job-queue architecture from scrape
// jobs to capture-and-compare page tasks.
package distqueue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/vrtest-dev/vrtest/internal/baseline"
	"github.com/vrtest-dev/vrtest/internal/capture"
)

// Task type names, mirroring the teacher's tasks.Type* constants.
const (
	TypeCapturePage  = "capture:page"
	TypeHealthCheck  = "health:check"
)

// Task priority queue names, mirroring the teacher's PriorityLow/Default/Critical.
const (
	PriorityLow     = "low"
	PriorityDefault = "default"
)

// PagePayload is the JSON task body for a single distributed capture:
// everything a worker process needs to reproduce runner.PageSpec's
// capture+diff+baseline decision without sharing memory with the
// enqueuing process.
type PagePayload struct {
	JobID          string                `json:"job_id"`
	Name           string                `json:"name"`
	CaptureConfig  capture.Config        `json:"capture_config"`
	Branch         string                `json:"branch,omitempty"`
	Commit         string                `json:"commit,omitempty"`
	Element        string                `json:"element,omitempty"`
	Device         string                `json:"device,omitempty"`
	UpdateBaseline bool                  `json:"update_baseline,omitempty"`
	Strategy       baseline.Strategy     `json:"strategy,omitempty"`
}

// CreateCaptureTask marshals a PagePayload into an asynq.Task of type
// TypeCapturePage, grounded on the teacher's CreateScrapeTask.
func CreateCaptureTask(payload PagePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("distqueue: marshal page payload: %w", err)
	}
	return asynq.NewTask(TypeCapturePage, data), nil
}

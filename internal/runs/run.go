// Package runs records pipeline executions and guarantees that at most one
// runs at a time, whether triggered by the schedule or on demand.
package runs

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Trigger names what started a run.
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
)

// ParseTrigger validates a trigger name.
func ParseTrigger(s string) (Trigger, error) {
	switch t := Trigger(s); t {
	case TriggerSchedule, TriggerManual:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTrigger, s)
}

// Status is the state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
)

// Run is one recorded pipeline execution.
type Run struct {
	ID             uuid.UUID  `json:"id"`
	Trigger        Trigger    `json:"trigger"`
	Status         Status     `json:"status"`
	ReviewsApplied int        `json:"reviews_applied"`
	ReviewsIgnored int        `json:"reviews_ignored"`
	IdeasCreated   int        `json:"ideas_created"`
	ImagesApproved int        `json:"images_approved"`
	ImagesLinked   int        `json:"images_linked"`
	ImagesFailed   int        `json:"images_failed"`
	PostsPublished int        `json:"posts_published"`
	PostsFailed    int        `json:"posts_failed"`
	Warnings       []string   `json:"warnings"`
	Error          *string    `json:"error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	DurationMS     *int64     `json:"duration_ms,omitempty"`
}

// Success reports whether the run finished without a failed row or post.
func (r *Run) Success() bool {
	return r.Status == StatusSucceeded
}

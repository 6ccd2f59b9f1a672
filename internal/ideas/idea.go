// Package ideas implements the idea store: append-only rows of generated
// post ideas, the human review events that approve or reject them, the image
// link written once an approved idea has been rendered, and the post recorded
// once it has been published.
package ideas

import (
	"time"

	"github.com/google/uuid"
)

// BatchSize is the number of ideas appended per run.
const BatchSize = 5

// Status is the review state of an idea.
type Status string

const (
	StatusWaiting  Status = "Waiting for Review"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// Idea is one stored row.
//
// ImageLink is the link issued at upload time. With SAS signing it expires
// after the storage link TTL; GET /ideas/{id}/image streams the blob by
// ImageKey and stays valid.
type Idea struct {
	ID         uuid.UUID  `json:"id"`
	RunID      *uuid.UUID `json:"run_id,omitempty"`
	Text       string     `json:"idea_text"`
	Status     Status     `json:"status"`
	ImageLink  *string    `json:"image_link"`
	ImageKey   *string    `json:"image_key,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`

	PostID      *string    `json:"post_id,omitempty"`
	PostURL     *string    `json:"post_url,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// HasImage reports whether an image link has been written.
func (i Idea) HasImage() bool {
	return i.ImageLink != nil && *i.ImageLink != ""
}

// Published reports whether the idea has been posted.
func (i Idea) Published() bool {
	return i.PublishedAt != nil
}

// Gate returns the ideas that are approved and still have no image, in input
// order. It does not modify rows.
func Gate(rows []Idea) []Idea {
	selected := make([]Idea, 0)
	for _, row := range rows {
		if row.Status == StatusApproved && !row.HasImage() {
			selected = append(selected, row)
		}
	}
	return selected
}

// Publishable returns up to limit approved ideas that have an image and have
// not been posted, in input order. A limit below 1 selects nothing.
func Publishable(rows []Idea, limit int) []Idea {
	selected := make([]Idea, 0)
	for _, row := range rows {
		if len(selected) >= limit {
			break
		}
		if row.Status == StatusApproved && row.HasImage() && !row.Published() {
			selected = append(selected, row)
		}
	}
	return selected
}

// Outcome records what happened when a review event was consumed.
type Outcome string

const (
	// OutcomeApplied means the review moved the idea out of Waiting for Review.
	OutcomeApplied Outcome = "applied"
	// OutcomeIgnored means the idea had already been decided.
	OutcomeIgnored Outcome = "ignored"
)

// Review is a human decision about an idea. It is recorded when submitted and
// consumed at the start of the next run.
type Review struct {
	ID          uuid.UUID  `json:"id"`
	IdeaID      uuid.UUID  `json:"idea_id"`
	Status      Status     `json:"status"`
	Reviewer    *string    `json:"reviewer,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	AppliedAt   *time.Time `json:"applied_at,omitempty"`
	Outcome     *Outcome   `json:"outcome,omitempty"`
}

// ReviewCommand is the body of a review submission.
type ReviewCommand struct {
	Status   Status `json:"status" validate:"required,oneof=Approved Rejected"`
	Reviewer string `json:"reviewer" validate:"max=200"`
}

// ApplyResult counts the review events consumed by ApplyReviews.
type ApplyResult struct {
	Applied int `json:"applied"`
	Ignored int `json:"ignored"`
}

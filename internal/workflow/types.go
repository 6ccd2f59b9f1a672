package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/go-agents-orchestration/pkg/state"

	"github.com/JaimeStill/muse/internal/ideas"
)

const (
	KeyRunID    = "run_id"
	KeyReviews  = "reviews"
	KeyTexts    = "texts"
	KeyCreated  = "created"
	KeyApproved = "approved"
	KeyRows     = "rows"
	KeyPosts    = "posts"
	KeyReport   = "report"
)

// RowResult is the outcome of rendering one approved idea.
type RowResult struct {
	IdeaID uuid.UUID `json:"idea_id"`
	Key    string    `json:"key,omitempty"`
	Link   string    `json:"link,omitempty"`
	Error  string    `json:"error,omitempty"`
	Err    error     `json:"-"`
}

// OK reports whether the idea was linked.
func (r RowResult) OK() bool {
	return r.Err == nil
}

// Report summarizes a run.
type Report struct {
	RunID       uuid.UUID         `json:"run_id"`
	Reviews     ideas.ApplyResult `json:"reviews"`
	Created     []ideas.Idea      `json:"created"`
	Approved    int               `json:"approved"`
	Linked      int               `json:"linked"`
	Failed      int               `json:"failed"`
	Rows        []RowResult       `json:"rows"`
	Published   int               `json:"published"`
	PostFailed  int               `json:"post_failed"`
	Posts       []PostResult      `json:"posts"`
	Warnings    []string          `json:"warnings"`
	CompletedAt time.Time         `json:"completed_at"`
}

// Partial reports whether some approved ideas were linked and some were not,
// or whether any post failed.
func (r *Report) Partial() bool {
	return (r.Failed > 0 && r.Linked > 0) || r.PostFailed > 0
}

// AllFailed reports whether every approved idea failed to link.
func (r *Report) AllFailed() bool {
	return r.Failed > 0 && r.Linked == 0
}

func lookup[T any](s state.State, key string) (T, error) {
	var zero T

	val, ok := s.Get(key)
	if !ok {
		return zero, fmt.Errorf("missing %s in state", key)
	}

	v, ok := val.(T)
	if !ok {
		return zero, fmt.Errorf("%s is %T, not %T", key, val, zero)
	}
	return v, nil
}

package ideas

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/muse/pkg/pagination"
)

// System defines the idea store operations.
type System interface {
	// Append inserts exactly BatchSize new ideas in one transaction, each
	// Waiting for Review with no image link.
	Append(ctx context.Context, runID uuid.UUID, texts []string) ([]Idea, error)
	// All reads every stored idea ordered by creation.
	All(ctx context.Context) ([]Idea, error)
	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Idea], error)
	Find(ctx context.Context, id uuid.UUID) (*Idea, error)
	// SetImageLink writes link and key to the approved idea id. Repeating the
	// call with the same link is a no-op.
	SetImageLink(ctx context.Context, id uuid.UUID, link, key string) (*Idea, error)
	// MarkPublished records the post made for the linked idea id. Repeating
	// the call with the same post id is a no-op.
	MarkPublished(ctx context.Context, id uuid.UUID, postID, postURL string) (*Idea, error)

	SubmitReview(ctx context.Context, id uuid.UUID, cmd ReviewCommand) (*Review, error)
	Reviews(ctx context.Context, id uuid.UUID) ([]Review, error)
	// ApplyReviews consumes every pending review event in submission order.
	ApplyReviews(ctx context.Context) (*ApplyResult, error)
}

package workflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/JaimeStill/go-agents-orchestration/pkg/state"

	"github.com/JaimeStill/muse/internal/ideas"
	"github.com/JaimeStill/muse/internal/prompts"
	"github.com/JaimeStill/muse/pkg/publish"
	"github.com/JaimeStill/muse/pkg/retry"
)

// PostResult is the outcome of publishing one linked idea.
type PostResult struct {
	IdeaID uuid.UUID `json:"idea_id"`
	PostID string    `json:"post_id,omitempty"`
	URL    string    `json:"url,omitempty"`
	Error  string    `json:"error,omitempty"`
	Err    error     `json:"-"`
}

// OK reports whether the idea was published and recorded.
func (r PostResult) OK() bool {
	return r.Err == nil
}

// publishNode posts up to Runtime.MaxPosts approved, linked, unpublished
// ideas in creation order. Posts go out one at a time. A failed post is
// counted and left unpublished for the next run. Without a Publisher the
// node does nothing.
func (x *execution) publishNode() state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		if x.rt.Publisher == nil {
			x.logger.DebugContext(ctx, "publish node skipped, publishing disabled")
			return s, nil
		}

		rows, err := x.rt.Ideas.All(ctx)
		if err != nil {
			return s, x.fail(fmt.Errorf("%w: %w", ErrStore, err))
		}

		queue := ideas.Publishable(rows, x.rt.MaxPosts)
		results := make([]PostResult, 0, len(queue))

		for _, idea := range queue {
			if ctx.Err() != nil {
				break
			}
			results = append(results, x.publishRow(ctx, idea))
		}

		x.logger.InfoContext(ctx, "publish node complete", "posts", len(results))
		return s.Set(KeyPosts, results), nil
	})
}

func (x *execution) publishRow(ctx context.Context, idea ideas.Idea) PostResult {
	result := PostResult{IdeaID: idea.ID}

	if err := x.post(ctx, idea, &result); err != nil {
		result.Err = err
		result.Error = err.Error()
		x.logger.WarnContext(ctx, "post failed", "idea_id", idea.ID, "error", err)
	}
	return result
}

func (x *execution) post(ctx context.Context, idea ideas.Idea, result *PostResult) error {
	caption, err := prompts.Caption(x.rt.Brief, idea.Text)
	if err != nil {
		return fmt.Errorf("%w: compose caption: %w", ErrUpstream, err)
	}

	imageURL, err := x.imageURL(ctx, idea)
	if err != nil {
		return err
	}

	post := publish.Post{ImageURL: imageURL, Caption: caption}
	published, err := retry.Do(ctx, x.rt.Retry, x.logger, "post "+idea.ID.String(), func(ctx context.Context) (*publish.Published, error) {
		p, err := x.rt.Publisher.Publish(ctx, post)
		if err != nil && !publish.Transient(err) {
			return nil, retry.Permanent(err)
		}
		return p, err
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	result.PostID = published.ID

	// The post is live from here on. A failed write below means the next
	// run may post the idea again.
	if _, err := x.rt.Ideas.MarkPublished(ctx, idea.ID, published.ID, published.URL); err != nil {
		return fmt.Errorf("%w: record post %s: %w", ErrStore, published.ID, err)
	}
	result.URL = published.URL

	return nil
}

// imageURL signs a fresh link from the stored key, since the stored link may
// have outlived its TTL. Rows without a key fall back to the stored link.
func (x *execution) imageURL(ctx context.Context, idea ideas.Idea) (string, error) {
	if idea.ImageKey == nil || *idea.ImageKey == "" {
		return *idea.ImageLink, nil
	}

	link, err := x.rt.Assets.Link(ctx, *idea.ImageKey)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpload, err)
	}
	return link, nil
}

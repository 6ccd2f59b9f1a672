package workflow

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/go-agents-orchestration/pkg/state"

	"github.com/JaimeStill/muse/internal/ideas"
	"github.com/JaimeStill/muse/internal/prompts"
	"github.com/JaimeStill/muse/pkg/images"
	"github.com/JaimeStill/muse/pkg/retry"
)

// renderNode generates, uploads and links an image for each approved idea.
// Rows run concurrently up to Runtime.Concurrency and a failed row never
// cancels or blocks the others; its image link stays empty so the next run
// picks it up again.
func (x *execution) renderNode() state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		approved, err := lookup[[]ideas.Idea](s, KeyApproved)
		if err != nil {
			return s, fmt.Errorf("render: %w", err)
		}

		results := make([]RowResult, len(approved))

		var g errgroup.Group
		g.SetLimit(workerCount(x.rt.Concurrency, len(approved)))

		for i, idea := range approved {
			g.Go(func() error {
				results[i] = x.renderRow(ctx, idea)
				return nil
			})
		}
		g.Wait()

		x.logger.InfoContext(
			ctx, "render node complete",
			"model", x.rt.Images.Model(),
			"rows", len(results),
		)
		return s.Set(KeyRows, results), nil
	})
}

func (x *execution) renderRow(ctx context.Context, idea ideas.Idea) RowResult {
	result := RowResult{IdeaID: idea.ID}

	err := x.linkImage(ctx, idea, &result)
	if err != nil {
		result.Err = err
		result.Error = err.Error()
		x.logger.WarnContext(ctx, "row failed", "idea_id", idea.ID, "error", err)
	}
	return result
}

func (x *execution) linkImage(ctx context.Context, idea ideas.Idea, result *RowResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	prompt, err := prompts.Image(x.rt.Brief, idea.Text)
	if err != nil {
		return fmt.Errorf("%w: compose image prompt: %w", ErrUpstream, err)
	}

	img, err := retry.Do(ctx, x.rt.Retry, x.logger, "image "+idea.ID.String(), func(ctx context.Context) (*images.Image, error) {
		img, err := x.rt.Images.Generate(ctx, prompt)
		if err != nil && !images.Transient(err) {
			return nil, retry.Permanent(err)
		}
		return img, err
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	asset, err := x.rt.Assets.Upload(ctx, idea.ID, img)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpload, err)
	}
	result.Key = asset.Key

	if _, err := x.rt.Ideas.SetImageLink(ctx, idea.ID, asset.Link, asset.Key); err != nil {
		return fmt.Errorf("%w: write link: %w", ErrStore, err)
	}
	result.Link = asset.Link

	return nil
}

func workerCount(limit, rows int) int {
	return max(min(limit, rows), 1)
}

package workflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/JaimeStill/go-agents-orchestration/pkg/state"

	"github.com/JaimeStill/muse/internal/ideas"
)

// reviewsNode consumes pending review events so decisions made since the
// last run are visible to the gate.
func (x *execution) reviewsNode() state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		report, err := lookup[*Report](s, KeyReport)
		if err != nil {
			return s, fmt.Errorf("reviews: %w", err)
		}

		applied, err := x.rt.Ideas.ApplyReviews(ctx)
		if err != nil {
			return s, x.fail(fmt.Errorf("%w: apply reviews: %w", ErrStore, err))
		}

		report.Reviews = *applied

		x.logger.InfoContext(
			ctx, "reviews node complete",
			"applied", applied.Applied,
			"ignored", applied.Ignored,
		)

		return s.Set(KeyReviews, *applied), nil
	})
}

// generateNode asks the text model for a batch of ideas. A failure here ends
// the run before anything is written.
func (x *execution) generateNode() state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		texts, err := x.rt.Generator.Generate(ctx)
		if err != nil {
			return s, x.fail(fmt.Errorf("%w: %w", ErrUpstream, err))
		}

		x.logger.InfoContext(ctx, "generate node complete", "ideas", len(texts))
		return s.Set(KeyTexts, texts), nil
	})
}

// storeNode appends the generated batch as new rows awaiting review.
func (x *execution) storeNode() state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		runID, err := lookup[uuid.UUID](s, KeyRunID)
		if err != nil {
			return s, fmt.Errorf("store: %w", err)
		}

		texts, err := lookup[[]string](s, KeyTexts)
		if err != nil {
			return s, fmt.Errorf("store: %w", err)
		}

		report, err := lookup[*Report](s, KeyReport)
		if err != nil {
			return s, fmt.Errorf("store: %w", err)
		}

		created, err := x.rt.Ideas.Append(ctx, runID, texts)
		if err != nil {
			return s, x.fail(fmt.Errorf("%w: %w", ErrStore, err))
		}

		report.Created = created

		x.logger.InfoContext(ctx, "store node complete", "appended", len(created))
		return s.Set(KeyCreated, created), nil
	})
}

// gateNode reads the whole store and keeps approved ideas without an image.
func (x *execution) gateNode() state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		report, err := lookup[*Report](s, KeyReport)
		if err != nil {
			return s, fmt.Errorf("gate: %w", err)
		}

		rows, err := x.rt.Ideas.All(ctx)
		if err != nil {
			return s, x.fail(fmt.Errorf("%w: %w", ErrStore, err))
		}

		approved := ideas.Gate(rows)
		report.Approved = len(approved)

		x.logger.InfoContext(
			ctx, "gate node complete",
			"rows", len(rows),
			"approved", len(approved),
		)

		return s.Set(KeyApproved, approved), nil
	})
}

package ideas

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/muse/pkg/repository"
)

func (r *repo) SubmitReview(ctx context.Context, id uuid.UUID, cmd ReviewCommand) (*Review, error) {
	cmd.Reviewer = strings.TrimSpace(cmd.Reviewer)
	if err := r.validate.Struct(cmd); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReview, err)
	}

	var reviewer *string
	if cmd.Reviewer != "" {
		reviewer = &cmd.Reviewer
	}

	q := `
		INSERT INTO idea_reviews (id, idea_id, status, reviewer)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + reviewColumns

	review, err := repository.QueryOne(ctx, r.db, q, []any{uuid.New(), id, cmd.Status, reviewer}, scanReview)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.InfoContext(ctx, "review submitted", "idea_id", id, "status", review.Status, "review_id", review.ID)
	return &review, nil
}

func (r *repo) Reviews(ctx context.Context, id uuid.UUID) ([]Review, error) {
	if _, err := r.Find(ctx, id); err != nil {
		return nil, err
	}

	q := `SELECT ` + reviewColumns + ` FROM idea_reviews WHERE idea_id = $1 ORDER BY submitted_at, id`

	reviews, err := repository.QueryMany(ctx, r.db, q, []any{id}, scanReview)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	return reviews, nil
}

// ApplyReviews moves ideas out of Waiting for Review according to pending
// review events. Only the first decision for an idea takes effect; later
// events are marked ignored. The whole batch commits together.
func (r *repo) ApplyReviews(ctx context.Context) (*ApplyResult, error) {
	pendingQ := `
		SELECT ` + reviewColumns + `
		FROM idea_reviews
		WHERE applied_at IS NULL
		ORDER BY submitted_at, id
		FOR UPDATE`

	transitionQ := `
		UPDATE ideas
		SET status = $2, reviewed_at = now(), updated_at = now()
		WHERE id = $1 AND status = $3`

	markQ := `UPDATE idea_reviews SET applied_at = now(), outcome = $2 WHERE id = $1`

	result, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (*ApplyResult, error) {
		pending, err := repository.QueryMany(ctx, tx, pendingQ, nil, scanReview)
		if err != nil {
			return nil, fmt.Errorf("read pending reviews: %w", err)
		}

		res := &ApplyResult{}
		for _, rv := range pending {
			n, err := repository.Exec(ctx, tx, transitionQ, rv.IdeaID, rv.Status, StatusWaiting)
			if err != nil {
				return nil, fmt.Errorf("apply review %s: %w", rv.ID, err)
			}

			outcome := OutcomeIgnored
			if n == 1 {
				outcome = OutcomeApplied
				res.Applied++
			} else {
				res.Ignored++
			}

			if err := repository.ExecExpectOne(ctx, tx, markQ, rv.ID, outcome); err != nil {
				return nil, fmt.Errorf("mark review %s: %w", rv.ID, err)
			}
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}

	if result.Applied+result.Ignored > 0 {
		r.logger.InfoContext(ctx, "reviews applied", "applied", result.Applied, "ignored", result.Ignored)
	}
	return result, nil
}

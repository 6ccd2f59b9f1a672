package ideas

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/JaimeStill/muse/pkg/pagination"
	"github.com/JaimeStill/muse/pkg/query"
	"github.com/JaimeStill/muse/pkg/repository"
)

type repo struct {
	db         *sql.DB
	validate   *validator.Validate
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates an idea repository implementing System.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     logger.With("system", "ideas"),
		pagination: pagination,
	}
}

func (r *repo) Append(ctx context.Context, runID uuid.UUID, texts []string) ([]Idea, error) {
	batch, err := normalizeBatch(texts)
	if err != nil {
		return nil, err
	}

	q := `
		INSERT INTO ideas (id, run_id, idea_text)
		VALUES ($1, $2, $3)
		RETURNING ` + ideaColumns

	created, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) ([]Idea, error) {
		rows := make([]Idea, 0, len(batch))
		for _, text := range batch {
			idea, err := repository.QueryOne(ctx, tx, q, []any{uuid.New(), runID, text}, scanIdea)
			if err != nil {
				return nil, err
			}
			rows = append(rows, idea)
		}
		return rows, nil
	})
	if err != nil {
		return nil, fmt.Errorf("append ideas: %w", repository.MapError(err, ErrNotFound, ErrDuplicate))
	}

	r.logger.InfoContext(ctx, "ideas appended", "run_id", runID, "count", len(created))
	return created, nil
}

func (r *repo) All(ctx context.Context) ([]Idea, error) {
	q, args := query.NewBuilder(projection, creationOrder...).Build()

	rows, err := repository.QueryMany(ctx, r.db, q, args, scanIdea)
	if err != nil {
		return nil, fmt.Errorf("read ideas: %w", err)
	}
	return rows, nil
}

func (r *repo) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Idea], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Text")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count ideas: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	rows, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanIdea)
	if err != nil {
		return nil, fmt.Errorf("query ideas: %w", err)
	}

	result := pagination.NewPageResult(rows, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Idea, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	idea, err := repository.QueryOne(ctx, r.db, q, args, scanIdea)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &idea, nil
}

func (r *repo) SetImageLink(ctx context.Context, id uuid.UUID, link, key string) (*Idea, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return nil, ErrInvalidLink
	}

	q := `
		UPDATE ideas
		SET image_link = $2, image_key = NULLIF($3, ''), updated_at = now()
		WHERE id = $1
		  AND status = $4
		  AND (image_link IS NULL OR image_link = '' OR image_link = $2)
		RETURNING ` + ideaColumns

	idea, err := repository.QueryOne(ctx, r.db, q, []any{id, link, key, StatusApproved}, scanIdea)
	if err == nil {
		r.logger.InfoContext(ctx, "image link written", "id", id, "key", key)
		return &idea, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("write image link: %w", err)
	}

	return nil, r.explainLinkRefusal(ctx, id)
}

// explainLinkRefusal reports why a conditional link update matched no row.
func (r *repo) explainLinkRefusal(ctx context.Context, id uuid.UUID) error {
	current, err := r.Find(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != StatusApproved {
		return fmt.Errorf("%w: status is %s", ErrNotApproved, current.Status)
	}
	return ErrLinkExists
}

func (r *repo) MarkPublished(ctx context.Context, id uuid.UUID, postID, postURL string) (*Idea, error) {
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return nil, ErrInvalidPost
	}

	q := `
		UPDATE ideas
		SET post_id = $2, post_url = NULLIF($3, ''), published_at = now(), updated_at = now()
		WHERE id = $1
		  AND status = $4
		  AND image_link IS NOT NULL AND image_link <> ''
		  AND published_at IS NULL
		RETURNING ` + ideaColumns

	idea, err := repository.QueryOne(ctx, r.db, q, []any{id, postID, postURL, StatusApproved}, scanIdea)
	if err == nil {
		r.logger.InfoContext(ctx, "idea published", "id", id, "post_id", postID)
		return &idea, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record post: %w", err)
	}

	return r.explainPublishRefusal(ctx, id, postID)
}

// explainPublishRefusal reports why a conditional post update matched no row.
// An idea already published as postID is returned unchanged.
func (r *repo) explainPublishRefusal(ctx context.Context, id uuid.UUID, postID string) (*Idea, error) {
	current, err := r.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case current.Status != StatusApproved:
		return nil, fmt.Errorf("%w: status is %s", ErrNotApproved, current.Status)
	case !current.HasImage():
		return nil, ErrNoImage
	case current.PostID != nil && *current.PostID == postID:
		return current, nil
	}
	return nil, ErrPublished
}

// normalizeBatch trims texts and enforces BatchSize distinct non-empty entries.
func normalizeBatch(texts []string) ([]string, error) {
	if len(texts) != BatchSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatch, len(texts))
	}

	seen := make(map[string]struct{}, len(texts))
	batch := make([]string, len(texts))
	for i, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			return nil, fmt.Errorf("%w: idea %d is empty", ErrInvalidBatch, i+1)
		}
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: idea %d repeats an earlier idea", ErrInvalidBatch, i+1)
		}
		seen[key] = struct{}{}
		batch[i] = t
	}
	return batch, nil
}

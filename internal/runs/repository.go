package runs

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/JaimeStill/muse/internal/workflow"
	"github.com/JaimeStill/muse/pkg/pagination"
	"github.com/JaimeStill/muse/pkg/query"
	"github.com/JaimeStill/muse/pkg/repository"
)

// singleRunning is the partial unique index allowing one running row.
const singleRunning = "runs_single_running"

// runLockKey is the session advisory lock held for the length of a run. A
// process that cannot take it knows a run is live somewhere.
const runLockKey int64 = 0x6d757365

type repo struct {
	db         *sql.DB
	pipeline   Pipeline
	logger     *slog.Logger
	pagination pagination.Config

	mu       sync.Mutex
	inflight sync.WaitGroup
}

// New creates a run repository that executes pipeline.
func New(db *sql.DB, pipeline Pipeline, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		pipeline:   pipeline,
		logger:     logger.With("system", "runs"),
		pagination: pagination,
	}
}

func (r *repo) Execute(ctx context.Context, trigger Trigger) (*Run, error) {
	run, lock, err := r.begin(ctx, trigger)
	if err != nil {
		return nil, err
	}
	defer r.mu.Unlock()

	return r.finish(ctx, run, lock)
}

func (r *repo) Launch(ctx context.Context, trigger Trigger) (*Run, error) {
	run, lock, err := r.begin(ctx, trigger)
	if err != nil {
		return nil, err
	}

	r.inflight.Go(func() {
		defer r.mu.Unlock()
		if _, err := r.finish(ctx, run, lock); err != nil {
			r.logger.ErrorContext(ctx, "launched run not recorded", "run_id", run.ID, "error", err)
		}
	})

	return run, nil
}

func (r *repo) Wait() {
	r.inflight.Wait()
}

// begin takes the in-process lock and the advisory lock, then records a
// running row. Both locks are held on success and released on failure.
func (r *repo) begin(ctx context.Context, trigger Trigger) (*Run, *sql.Conn, error) {
	if _, err := ParseTrigger(string(trigger)); err != nil {
		return nil, nil, err
	}

	if !r.mu.TryLock() {
		return nil, nil, ErrRunInProgress
	}

	lock, held, err := r.tryLock(ctx)
	if err != nil {
		r.mu.Unlock()
		return nil, nil, err
	}
	if !held {
		r.mu.Unlock()
		return nil, nil, ErrRunInProgress
	}

	q := `
		INSERT INTO runs (id, trigger, status)
		VALUES ($1, $2, $3)
		RETURNING ` + runColumns

	run, err := repository.QueryOne(ctx, r.db, q, []any{uuid.New(), trigger, StatusRunning}, scanRun)
	if err != nil {
		r.unlock(context.WithoutCancel(ctx), lock)
		r.mu.Unlock()
		if repository.IsUniqueViolation(err, singleRunning) {
			return nil, nil, ErrRunInProgress
		}
		return nil, nil, fmt.Errorf("record run: %w", err)
	}

	r.logger.InfoContext(ctx, "run started", "run_id", run.ID, "trigger", run.Trigger)
	return &run, lock, nil
}

// tryLock takes the run advisory lock on a dedicated connection. The
// connection is returned only when the lock is held.
func (r *repo) tryLock(ctx context.Context) (*sql.Conn, bool, error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire run lock: %w", err)
	}

	var held bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, runLockKey).Scan(&held); err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("acquire run lock: %w", err)
	}
	if !held {
		conn.Close()
		return nil, false, nil
	}
	return conn, true, nil
}

// unlock releases the advisory lock. A connection that fails to unlock is
// discarded so the lock cannot leak back into the pool.
func (r *repo) unlock(ctx context.Context, conn *sql.Conn) {
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, runLockKey); err != nil {
		r.logger.WarnContext(ctx, "run lock release failed", "error", err)
		conn.Raw(func(any) error { return driver.ErrBadConn })
	}
	conn.Close()
}

// finish executes the pipeline for run and records its outcome. Recording
// ignores ctx cancellation so an interrupted run is still closed out.
func (r *repo) finish(ctx context.Context, run *Run, lock *sql.Conn) (*Run, error) {
	defer r.unlock(context.WithoutCancel(ctx), lock)

	report, err := r.pipeline(ctx, run.ID)
	status, cause := assess(report, err)

	completed, recErr := r.complete(context.WithoutCancel(ctx), run.ID, status, report, cause)
	if recErr != nil {
		return nil, fmt.Errorf("complete run %s: %w", run.ID, recErr)
	}

	attrs := []any{
		"run_id", completed.ID,
		"status", completed.Status,
		"ideas_created", completed.IdeasCreated,
		"images_linked", completed.ImagesLinked,
		"images_failed", completed.ImagesFailed,
		"posts_published", completed.PostsPublished,
		"posts_failed", completed.PostsFailed,
	}
	switch {
	case completed.Success():
		r.logger.InfoContext(ctx, "run succeeded", attrs...)
	case completed.Status == StatusPartial:
		r.logger.WarnContext(ctx, "run partially succeeded", append(attrs, "warnings", completed.Warnings)...)
	default:
		r.logger.ErrorContext(ctx, "run failed", append(attrs, "error", cause)...)
	}

	return completed, nil
}

// assess derives the final status from a pipeline result.
func assess(report *workflow.Report, err error) (Status, error) {
	switch {
	case err != nil:
		return StatusFailed, err
	case report == nil:
		return StatusSucceeded, nil
	case report.AllFailed():
		return StatusFailed, ErrAllRowsFailed
	case report.Partial():
		return StatusPartial, nil
	default:
		return StatusSucceeded, nil
	}
}

func (r *repo) complete(ctx context.Context, id uuid.UUID, status Status, report *workflow.Report, cause error) (*Run, error) {
	if report == nil {
		report = &workflow.Report{}
	}

	warnings := report.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	encoded, err := json.Marshal(warnings)
	if err != nil {
		return nil, fmt.Errorf("encode warnings: %w", err)
	}

	var errText *string
	if cause != nil {
		s := cause.Error()
		errText = &s
	}

	q := `
		UPDATE runs
		SET status = $2,
		    reviews_applied = $3,
		    reviews_ignored = $4,
		    ideas_created = $5,
		    images_approved = $6,
		    images_linked = $7,
		    images_failed = $8,
		    posts_published = $9,
		    posts_failed = $10,
		    warnings = $11::jsonb,
		    error = $12,
		    completed_at = now(),
		    duration_ms = (EXTRACT(EPOCH FROM now() - started_at) * 1000)::bigint
		WHERE id = $1
		RETURNING ` + runColumns

	args := []any{
		id,
		status,
		report.Reviews.Applied,
		report.Reviews.Ignored,
		len(report.Created),
		report.Approved,
		report.Linked,
		report.Failed,
		report.Published,
		report.PostFailed,
		string(encoded),
		errText,
	}

	run, err := repository.QueryOne(ctx, r.db, q, args, scanRun)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrRunInProgress)
	}
	return &run, nil
}

func (r *repo) Recover(ctx context.Context) (int64, error) {
	lock, held, err := r.tryLock(ctx)
	if err != nil {
		return 0, fmt.Errorf("recover runs: %w", err)
	}
	if !held {
		r.logger.InfoContext(ctx, "run recovery skipped, a run is live")
		return 0, nil
	}
	defer r.unlock(context.WithoutCancel(ctx), lock)

	q := `
		UPDATE runs
		SET status = $1,
		    error = $2,
		    completed_at = now(),
		    duration_ms = (EXTRACT(EPOCH FROM now() - started_at) * 1000)::bigint
		WHERE status = $3`

	n, err := repository.Exec(ctx, lock, q, StatusFailed, "interrupted", StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("recover runs: %w", err)
	}

	if n > 0 {
		r.logger.WarnContext(ctx, "interrupted runs marked failed", "count", n)
	}
	return n, nil
}

func (r *repo) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Run], error) {
	page.Normalize(r.pagination)

	qb := query.NewBuilder(projection, defaultSort)
	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count runs: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	rows, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanRun)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	result := pagination.NewPageResult(rows, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Run, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	run, err := repository.QueryOne(ctx, r.db, q, args, scanRun)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find run: %w", err)
	}
	return &run, nil
}

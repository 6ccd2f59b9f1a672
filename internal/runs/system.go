package runs

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/muse/internal/workflow"
	"github.com/JaimeStill/muse/pkg/pagination"
)

// Pipeline executes the workflow once for runID.
type Pipeline func(ctx context.Context, runID uuid.UUID) (*workflow.Report, error)

// System runs the pipeline and keeps its history.
type System interface {
	// Execute runs the pipeline synchronously and returns the completed run.
	// A failed pipeline is recorded on the run, not returned as an error.
	Execute(ctx context.Context, trigger Trigger) (*Run, error)
	// Launch records a new running run and executes it in the background
	// under ctx. It returns as soon as the run is recorded.
	Launch(ctx context.Context, trigger Trigger) (*Run, error)
	// Wait blocks until every launched run has completed.
	Wait()
	// Recover marks runs left running by a dead process as failed. It does
	// nothing while any process holds the run lock.
	Recover(ctx context.Context) (int64, error)

	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Run], error)
	Find(ctx context.Context, id uuid.UUID) (*Run, error)
}

package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	gaoconfig "github.com/JaimeStill/go-agents-orchestration/pkg/config"
	"github.com/JaimeStill/go-agents-orchestration/pkg/state"

	"github.com/JaimeStill/muse/internal/ideas"
)

// execution carries the per-run logger and the first node failure. The graph
// may reword node errors, so Execute returns the recorded failure itself.
type execution struct {
	rt      *Runtime
	logger  *slog.Logger
	failure error
}

func (x *execution) fail(err error) error {
	if x.failure == nil {
		x.failure = err
	}
	return err
}

// Execute runs the pipeline once for runID. The graph is
// reviews → generate → store → gate → render? → publish → report, where
// render is skipped when no approved idea lacks an image and publish does
// nothing without a Publisher.
//
// On failure the returned Report holds whatever completed before the failing
// step, and the error wraps ErrUpstream, ErrStore or ErrUpload. Nothing is
// rolled back. Per-row render failures are not errors; they are counted in
// the Report.
func Execute(ctx context.Context, rt *Runtime, runID uuid.UUID) (*Report, error) {
	x := &execution{
		rt:     rt,
		logger: rt.Logger.With("workflow", "pipeline", "run_id", runID),
	}

	graph, err := x.buildGraph()
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	report := &Report{
		RunID:    runID,
		Created:  []ideas.Idea{},
		Rows:     []RowResult{},
		Posts:    []PostResult{},
		Warnings: []string{},
	}

	initialState := state.New(nil)
	initialState = initialState.Set(KeyRunID, runID)
	initialState = initialState.Set(KeyReport, report)

	if _, err := graph.Execute(ctx, initialState); err != nil {
		if x.failure != nil {
			return report, x.failure
		}
		return report, fmt.Errorf("execute graph: %w", err)
	}

	return report, nil
}

func (x *execution) buildGraph() (state.StateGraph, error) {
	cfg := gaoconfig.DefaultGraphConfig("muse-pipeline")
	cfg.Observer = "noop"

	graph, err := state.NewGraph(cfg)
	if err != nil {
		return nil, err
	}

	nodes := []struct {
		name string
		node state.StateNode
	}{
		{"reviews", x.reviewsNode()},
		{"generate", x.generateNode()},
		{"store", x.storeNode()},
		{"gate", x.gateNode()},
		{"render", x.renderNode()},
		{"publish", x.publishNode()},
		{"report", x.reportNode()},
	}
	for _, n := range nodes {
		if err := graph.AddNode(n.name, n.node); err != nil {
			return nil, err
		}
	}

	if err := graph.AddEdge("reviews", "generate", nil); err != nil {
		return nil, err
	}

	if err := graph.AddEdge("generate", "store", nil); err != nil {
		return nil, err
	}

	if err := graph.AddEdge("store", "gate", nil); err != nil {
		return nil, err
	}

	// gate → render (when an approved idea lacks an image)
	if err := graph.AddEdge("gate", "render", hasApproved); err != nil {
		return nil, err
	}

	// gate → publish (nothing to render)
	if err := graph.AddEdge("gate", "publish", state.Not(hasApproved)); err != nil {
		return nil, err
	}

	if err := graph.AddEdge("render", "publish", nil); err != nil {
		return nil, err
	}

	if err := graph.AddEdge("publish", "report", nil); err != nil {
		return nil, err
	}

	if err := graph.SetEntryPoint("reviews"); err != nil {
		return nil, err
	}

	if err := graph.SetExitPoint("report"); err != nil {
		return nil, err
	}

	return graph, nil
}

// reportNode tallies row and post results and stamps completion.
func (x *execution) reportNode() state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		report, err := lookup[*Report](s, KeyReport)
		if err != nil {
			return s, fmt.Errorf("report: %w", err)
		}

		if rows, err := lookup[[]RowResult](s, KeyRows); err == nil {
			report.Rows = rows
		}

		for _, row := range report.Rows {
			if row.OK() {
				report.Linked++
				continue
			}
			report.Failed++
			report.Warnings = append(report.Warnings, fmt.Sprintf("idea %s: %s", row.IdeaID, row.Error))
		}

		if posts, err := lookup[[]PostResult](s, KeyPosts); err == nil {
			report.Posts = posts
		}

		for _, post := range report.Posts {
			if post.OK() {
				report.Published++
				continue
			}
			report.PostFailed++
			report.Warnings = append(report.Warnings, fmt.Sprintf("post %s: %s", post.IdeaID, post.Error))
		}
		report.CompletedAt = time.Now()

		x.logger.InfoContext(
			ctx, "report node complete",
			"created", len(report.Created),
			"approved", report.Approved,
			"linked", report.Linked,
			"failed", report.Failed,
			"published", report.Published,
			"post_failed", report.PostFailed,
		)

		return s, nil
	})
}

func hasApproved(s state.State) bool {
	approved, err := lookup[[]ideas.Idea](s, KeyApproved)
	return err == nil && len(approved) > 0
}

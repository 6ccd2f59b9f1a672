package runs

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/JaimeStill/muse/pkg/query"
	"github.com/JaimeStill/muse/pkg/repository"
)

const runColumns = "id, trigger, status, reviews_applied, reviews_ignored, ideas_created, images_approved, images_linked, images_failed, posts_published, posts_failed, warnings, error, started_at, completed_at, duration_ms"

var projection = query.
	NewProjectionMap("public", "runs", "r").
	Project("id", "ID").
	Project("trigger", "Trigger").
	Project("status", "Status").
	Project("reviews_applied", "ReviewsApplied").
	Project("reviews_ignored", "ReviewsIgnored").
	Project("ideas_created", "IdeasCreated").
	Project("images_approved", "ImagesApproved").
	Project("images_linked", "ImagesLinked").
	Project("images_failed", "ImagesFailed").
	Project("posts_published", "PostsPublished").
	Project("posts_failed", "PostsFailed").
	Project("warnings", "Warnings").
	Project("error", "Error").
	Project("started_at", "StartedAt").
	Project("completed_at", "CompletedAt").
	Project("duration_ms", "DurationMS")

var defaultSort = query.SortField{Field: "StartedAt", Descending: true}

// Filters narrows run listings. Nil fields are ignored.
type Filters struct {
	Status  *string `json:"status,omitempty"`
	Trigger *string `json:"trigger,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", f.Status).
		WhereEquals("Trigger", f.Trigger)
}

// FiltersFromQuery reads status and trigger from URL query values.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}
	if t := values.Get("trigger"); t != "" {
		f.Trigger = &t
	}
	return f
}

func scanRun(s repository.Scanner) (Run, error) {
	var (
		r         Run
		warnings  []byte
		errText   sql.NullString
		completed sql.NullTime
		duration  sql.NullInt64
	)

	err := s.Scan(
		&r.ID,
		&r.Trigger,
		&r.Status,
		&r.ReviewsApplied,
		&r.ReviewsIgnored,
		&r.IdeasCreated,
		&r.ImagesApproved,
		&r.ImagesLinked,
		&r.ImagesFailed,
		&r.PostsPublished,
		&r.PostsFailed,
		&warnings,
		&errText,
		&r.StartedAt,
		&completed,
		&duration,
	)
	if err != nil {
		return r, err
	}

	r.Warnings = []string{}
	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &r.Warnings); err != nil {
			return r, fmt.Errorf("decode warnings: %w", err)
		}
	}
	if errText.Valid {
		r.Error = &errText.String
	}
	if completed.Valid {
		r.CompletedAt = &completed.Time
	}
	if duration.Valid {
		r.DurationMS = &duration.Int64
	}
	return r, nil
}

package ideas

import (
	"database/sql"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/JaimeStill/muse/pkg/query"
	"github.com/JaimeStill/muse/pkg/repository"
)

const ideaColumns = "id, run_id, idea_text, status, image_link, image_key, created_at, updated_at, reviewed_at, post_id, post_url, published_at"

const reviewColumns = "id, idea_id, status, reviewer, submitted_at, applied_at, outcome"

var projection = query.
	NewProjectionMap("public", "ideas", "i").
	Project("id", "ID").
	Project("run_id", "RunID").
	Project("idea_text", "Text").
	Project("status", "Status").
	Project("image_link", "ImageLink").
	Project("image_key", "ImageKey").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt").
	Project("reviewed_at", "ReviewedAt").
	Project("post_id", "PostID").
	Project("post_url", "PostURL").
	Project("published_at", "PublishedAt")

var defaultSort = query.SortField{Field: "CreatedAt", Descending: true}

// creationOrder is the stable order used when reading the whole store.
var creationOrder = []query.SortField{{Field: "CreatedAt"}, {Field: "ID"}}

// Filters narrows idea listings. Nil fields are ignored.
type Filters struct {
	Status   *string    `json:"status,omitempty"`
	RunID    *uuid.UUID `json:"run_id,omitempty"`
	HasImage  *bool      `json:"has_image,omitempty"`
	Published *bool      `json:"published,omitempty"`
}

// Apply adds filter conditions to a query builder. An empty image link counts
// as no image.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	b.WhereEquals("Status", f.Status).WhereEquals("RunID", f.RunID)
	if f.HasImage != nil {
		missing := !*f.HasImage
		b.WhereBlank("ImageLink", &missing)
	}
	if f.Published != nil {
		pending := !*f.Published
		b.WhereNull("PublishedAt", &pending)
	}
	return b
}

// FiltersFromQuery reads status, run_id, has_image, and published from URL
// query values. Unparseable values are ignored.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}
	if v := values.Get("run_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			f.RunID = &id
		}
	}
	if v := values.Get("has_image"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			f.HasImage = &b
		}
	}
	if v := values.Get("published"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			f.Published = &b
		}
	}
	return f
}

func scanIdea(s repository.Scanner) (Idea, error) {
	var (
		i       Idea
		runID   uuid.NullUUID
		link    sql.NullString
		key     sql.NullString
		rev     sql.NullTime
		postID  sql.NullString
		postURL sql.NullString
		pub     sql.NullTime
	)

	err := s.Scan(
		&i.ID,
		&runID,
		&i.Text,
		&i.Status,
		&link,
		&key,
		&i.CreatedAt,
		&i.UpdatedAt,
		&rev,
		&postID,
		&postURL,
		&pub,
	)
	if err != nil {
		return i, err
	}

	if runID.Valid {
		i.RunID = &runID.UUID
	}
	if link.Valid {
		i.ImageLink = &link.String
	}
	if key.Valid {
		i.ImageKey = &key.String
	}
	if rev.Valid {
		i.ReviewedAt = &rev.Time
	}
	if postID.Valid {
		i.PostID = &postID.String
	}
	if postURL.Valid {
		i.PostURL = &postURL.String
	}
	if pub.Valid {
		i.PublishedAt = &pub.Time
	}
	return i, nil
}

func scanReview(s repository.Scanner) (Review, error) {
	var (
		r        Review
		reviewer sql.NullString
		applied  sql.NullTime
		outcome  sql.NullString
	)

	err := s.Scan(
		&r.ID,
		&r.IdeaID,
		&r.Status,
		&reviewer,
		&r.SubmittedAt,
		&applied,
		&outcome,
	)
	if err != nil {
		return r, err
	}

	if reviewer.Valid {
		r.Reviewer = &reviewer.String
	}
	if applied.Valid {
		r.AppliedAt = &applied.Time
	}
	if outcome.Valid {
		o := Outcome(outcome.String)
		r.Outcome = &o
	}
	return r, nil
}

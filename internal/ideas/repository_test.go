package ideas_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/JaimeStill/muse/internal/ideas"
	"github.com/JaimeStill/muse/pkg/pagination"
)

var (
	discard = slog.New(slog.NewTextHandler(io.Discard, nil))
	pageCfg = pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}
	created = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	runID   = uuid.MustParse("7f1c2a8e-3f44-4d3f-9a53-0b1f3d0b9a11")
)

var ideaCols = []string{
	"id", "run_id", "idea_text", "status", "image_link", "image_key", "created_at", "updated_at", "reviewed_at",
	"post_id", "post_url", "published_at",
}

var reviewCols = []string{"id", "idea_id", "status", "reviewer", "submitted_at", "applied_at", "outcome"}

func newRepo(t *testing.T) (ideas.System, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return ideas.New(db, discard, pageCfg), mock
}

func ideaRow(id uuid.UUID, text string, status ideas.Status, link any) []driver.Value {
	var key any
	if link != nil {
		key = "ideas/" + id.String() + ".png"
	}
	return []driver.Value{id.String(), runID.String(), text, string(status), link, key, created, created, nil, nil, nil, nil}
}

func publishedRow(id uuid.UUID, link, postID string) []driver.Value {
	row := ideaRow(id, "x", ideas.StatusApproved, link)
	row[9], row[10], row[11] = postID, "https://www.instagram.com/p/"+postID+"/", created
	return row
}

func batch() []string {
	return []string{"a misty harbor at dawn", "steam over a pour-over", "b", "c", "d"}
}

func TestAppend(t *testing.T) {
	repo, mock := newRepo(t)

	texts := batch()
	mock.ExpectBegin()
	for _, text := range texts {
		mock.ExpectQuery("INSERT INTO ideas").
			WithArgs(sqlmock.AnyArg(), runID, text).
			WillReturnRows(sqlmock.NewRows(ideaCols).AddRow(ideaRow(uuid.New(), text, ideas.StatusWaiting, nil)...))
	}
	mock.ExpectCommit()

	got, err := repo.Append(context.Background(), runID, texts)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if len(got) != ideas.BatchSize {
		t.Fatalf("len = %d, want %d", len(got), ideas.BatchSize)
	}
	for _, idea := range got {
		if idea.Status != ideas.StatusWaiting || idea.HasImage() {
			t.Errorf("idea = %+v, want waiting without image", idea)
		}
		if idea.RunID == nil || *idea.RunID != runID {
			t.Errorf("run id = %v", idea.RunID)
		}
	}
}

func TestAppendRollsBackOnFailure(t *testing.T) {
	repo, mock := newRepo(t)

	texts := batch()
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO ideas").
		WillReturnRows(sqlmock.NewRows(ideaCols).AddRow(ideaRow(uuid.New(), texts[0], ideas.StatusWaiting, nil)...))
	mock.ExpectQuery("INSERT INTO ideas").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	if _, err := repo.Append(context.Background(), runID, texts); err == nil {
		t.Fatal("expected error")
	}
}

func TestAppendRejectsInvalidBatch(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
	}{
		{"three ideas", []string{"a", "b", "c"}},
		{"six ideas", []string{"a", "b", "c", "d", "e", "f"}},
		{"blank idea", []string{"a", "b", " ", "d", "e"}},
		{"case-insensitive duplicate", []string{"a", "b", "c", "d", "A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, _ := newRepo(t)

			_, err := repo.Append(context.Background(), runID, tt.texts)
			if !errors.Is(err, ideas.ErrInvalidBatch) {
				t.Errorf("error = %v, want ErrInvalidBatch", err)
			}
		})
	}
}

func TestAllOrdersByCreation(t *testing.T) {
	repo, mock := newRepo(t)

	a, b := uuid.New(), uuid.New()
	mock.ExpectQuery("ORDER BY i.created_at ASC, i.id ASC").
		WillReturnRows(sqlmock.NewRows(ideaCols).
			AddRow(ideaRow(a, "first", ideas.StatusApproved, nil)...).
			AddRow(ideaRow(b, "second", ideas.StatusWaiting, nil)...))

	rows, err := repo.All(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].ID != a || rows[1].ID != b {
		t.Errorf("rows = %+v", rows)
	}
}

func TestList(t *testing.T) {
	repo, mock := newRepo(t)

	status := string(ideas.StatusApproved)
	hasImage := false

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(status).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("(i.image_link IS NULL OR i.image_link = '')")).
		WithArgs(status).
		WillReturnRows(sqlmock.NewRows(ideaCols).AddRow(ideaRow(uuid.New(), "x", ideas.StatusApproved, nil)...))

	result, err := repo.List(
		context.Background(),
		pagination.PageRequest{Page: 1, PageSize: 10},
		ideas.Filters{Status: &status, HasImage: &hasImage},
	)
	if err != nil {
		t.Fatal(err)
	}
	if result.Total != 1 || len(result.Data) != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestFindNotFound(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("FROM public.ideas i WHERE i.id").WillReturnRows(sqlmock.NewRows(ideaCols))

	if _, err := repo.Find(context.Background(), uuid.New()); !errors.Is(err, ideas.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestSetImageLink(t *testing.T) {
	id := uuid.New()
	link := "https://acct.blob.core.windows.net/content/ideas/" + id.String() + ".png"
	key := "ideas/" + id.String() + ".png"

	t.Run("writes link to approved idea", func(t *testing.T) {
		repo, mock := newRepo(t)

		mock.ExpectQuery("UPDATE ideas").
			WithArgs(id, link, key, string(ideas.StatusApproved)).
			WillReturnRows(sqlmock.NewRows(ideaCols).AddRow(ideaRow(id, "x", ideas.StatusApproved, link)...))

		idea, err := repo.SetImageLink(context.Background(), id, link, key)
		if err != nil {
			t.Fatal(err)
		}
		if !idea.HasImage() || *idea.ImageLink != link {
			t.Errorf("idea = %+v", idea)
		}
	})

	refusals := []struct {
		name    string
		current []driver.Value
		want    error
	}{
		{"unknown id", nil, ideas.ErrNotFound},
		{"waiting idea", ideaRow(id, "x", ideas.StatusWaiting, nil), ideas.ErrNotApproved},
		{"rejected idea", ideaRow(id, "x", ideas.StatusRejected, nil), ideas.ErrNotApproved},
		{"different link already set", ideaRow(id, "x", ideas.StatusApproved, "https://elsewhere/x.png"), ideas.ErrLinkExists},
	}

	for _, tt := range refusals {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newRepo(t)

			mock.ExpectQuery("UPDATE ideas").WillReturnRows(sqlmock.NewRows(ideaCols))
			rows := sqlmock.NewRows(ideaCols)
			if tt.current != nil {
				rows.AddRow(tt.current...)
			}
			mock.ExpectQuery("FROM public.ideas i WHERE i.id").WillReturnRows(rows)

			_, err := repo.SetImageLink(context.Background(), id, link, key)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	t.Run("empty link", func(t *testing.T) {
		repo, _ := newRepo(t)
		if _, err := repo.SetImageLink(context.Background(), id, "  ", key); !errors.Is(err, ideas.ErrInvalidLink) {
			t.Errorf("error = %v", err)
		}
	})
}

func TestListPublishedFilter(t *testing.T) {
	repo, mock := newRepo(t)

	published := true
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("i.published_at IS NOT NULL").
		WillReturnRows(sqlmock.NewRows(ideaCols))

	if _, err := repo.List(context.Background(), pagination.PageRequest{}, ideas.Filters{Published: &published}); err != nil {
		t.Fatal(err)
	}
}

func TestMarkPublished(t *testing.T) {
	id := uuid.New()
	link := "https://acct.blob.core.windows.net/content/ideas/" + id.String()
	postURL := "https://www.instagram.com/p/C1/"

	t.Run("records post on linked idea", func(t *testing.T) {
		repo, mock := newRepo(t)

		mock.ExpectQuery("UPDATE ideas").
			WithArgs(id, "1789", postURL, string(ideas.StatusApproved)).
			WillReturnRows(sqlmock.NewRows(ideaCols).AddRow(publishedRow(id, link, "1789")...))

		idea, err := repo.MarkPublished(context.Background(), id, " 1789 ", postURL)
		if err != nil {
			t.Fatal(err)
		}
		if !idea.Published() || *idea.PostID != "1789" {
			t.Errorf("idea = %+v", idea)
		}
	})

	t.Run("same post again", func(t *testing.T) {
		repo, mock := newRepo(t)

		mock.ExpectQuery("UPDATE ideas").WillReturnRows(sqlmock.NewRows(ideaCols))
		mock.ExpectQuery("FROM public.ideas i WHERE i.id").
			WillReturnRows(sqlmock.NewRows(ideaCols).AddRow(publishedRow(id, link, "1789")...))

		idea, err := repo.MarkPublished(context.Background(), id, "1789", postURL)
		if err != nil {
			t.Fatalf("repeat error = %v", err)
		}
		if *idea.PostID != "1789" {
			t.Errorf("post id = %s", *idea.PostID)
		}
	})

	refusals := []struct {
		name    string
		current []driver.Value
		want    error
	}{
		{"unknown id", nil, ideas.ErrNotFound},
		{"waiting idea", ideaRow(id, "x", ideas.StatusWaiting, nil), ideas.ErrNotApproved},
		{"no image", ideaRow(id, "x", ideas.StatusApproved, ""), ideas.ErrNoImage},
		{"other post", publishedRow(id, link, "42"), ideas.ErrPublished},
	}

	for _, tt := range refusals {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newRepo(t)

			mock.ExpectQuery("UPDATE ideas").WillReturnRows(sqlmock.NewRows(ideaCols))
			rows := sqlmock.NewRows(ideaCols)
			if tt.current != nil {
				rows.AddRow(tt.current...)
			}
			mock.ExpectQuery("FROM public.ideas i WHERE i.id").WillReturnRows(rows)

			_, err := repo.MarkPublished(context.Background(), id, "1789", postURL)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	t.Run("empty post id", func(t *testing.T) {
		repo, _ := newRepo(t)
		if _, err := repo.MarkPublished(context.Background(), id, " ", postURL); !errors.Is(err, ideas.ErrInvalidPost) {
			t.Errorf("error = %v", err)
		}
	})
}

func TestPublishable(t *testing.T) {
	link := "https://example/x"
	empty := ""
	now := time.Now()
	rows := []ideas.Idea{
		{ID: uuid.New(), Status: ideas.StatusApproved, ImageLink: &link},
		{ID: uuid.New(), Status: ideas.StatusApproved},
		{ID: uuid.New(), Status: ideas.StatusApproved, ImageLink: &empty},
		{ID: uuid.New(), Status: ideas.StatusApproved, ImageLink: &link, PublishedAt: &now},
		{ID: uuid.New(), Status: ideas.StatusRejected, ImageLink: &link},
		{ID: uuid.New(), Status: ideas.StatusApproved, ImageLink: &link},
	}

	tests := []struct {
		limit int
		want  []uuid.UUID
	}{
		{0, nil},
		{1, []uuid.UUID{rows[0].ID}},
		{5, []uuid.UUID{rows[0].ID, rows[5].ID}},
	}

	for _, tt := range tests {
		got := ideas.Publishable(rows, tt.limit)
		if len(got) != len(tt.want) {
			t.Fatalf("Publishable(limit %d) = %d rows, want %d", tt.limit, len(got), len(tt.want))
		}
		for i := range got {
			if got[i].ID != tt.want[i] {
				t.Errorf("Publishable(limit %d)[%d] = %s", tt.limit, i, got[i].ID)
			}
		}
	}
}

func TestSubmitReview(t *testing.T) {
	id := uuid.New()

	t.Run("records pending review", func(t *testing.T) {
		repo, mock := newRepo(t)

		mock.ExpectQuery("INSERT INTO idea_reviews").
			WithArgs(sqlmock.AnyArg(), id, string(ideas.StatusApproved), "editor").
			WillReturnRows(sqlmock.NewRows(reviewCols).
				AddRow(uuid.New().String(), id.String(), "Approved", "editor", created, nil, nil))

		review, err := repo.SubmitReview(context.Background(), id, ideas.ReviewCommand{Status: ideas.StatusApproved, Reviewer: " editor "})
		if err != nil {
			t.Fatal(err)
		}
		if review.AppliedAt != nil || review.Outcome != nil || *review.Reviewer != "editor" {
			t.Errorf("review = %+v", review)
		}
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		repo, _ := newRepo(t)

		for _, status := range []ideas.Status{"", ideas.StatusWaiting, "Maybe"} {
			_, err := repo.SubmitReview(context.Background(), id, ideas.ReviewCommand{Status: status})
			if !errors.Is(err, ideas.ErrInvalidReview) {
				t.Errorf("status %q: error = %v", status, err)
			}
		}
	})
}

func TestApplyReviews(t *testing.T) {
	repo, mock := newRepo(t)

	ideaA, ideaB := uuid.New(), uuid.New()
	first, second, third := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM idea_reviews").
		WillReturnRows(sqlmock.NewRows(reviewCols).
			AddRow(first.String(), ideaA.String(), "Approved", nil, created, nil, nil).
			AddRow(second.String(), ideaA.String(), "Rejected", nil, created.Add(time.Minute), nil, nil).
			AddRow(third.String(), ideaB.String(), "Rejected", "editor", created.Add(2*time.Minute), nil, nil))

	mock.ExpectExec("UPDATE ideas").
		WithArgs(ideaA, "Approved", string(ideas.StatusWaiting)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE idea_reviews").
		WithArgs(first, "applied").
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec("UPDATE ideas").
		WithArgs(ideaA, "Rejected", string(ideas.StatusWaiting)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE idea_reviews").
		WithArgs(second, "ignored").
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec("UPDATE ideas").
		WithArgs(ideaB, "Rejected", string(ideas.StatusWaiting)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE idea_reviews").
		WithArgs(third, "applied").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := repo.ApplyReviews(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Applied != 2 || res.Ignored != 1 {
		t.Errorf("result = %+v, want 2 applied 1 ignored", res)
	}
}

func TestGate(t *testing.T) {
	link := "https://example/x.png"
	empty := ""
	rows := []ideas.Idea{
		{ID: uuid.New(), Status: ideas.StatusWaiting},
		{ID: uuid.New(), Status: ideas.StatusApproved},
		{ID: uuid.New(), Status: ideas.StatusApproved, ImageLink: &link},
		{ID: uuid.New(), Status: ideas.StatusRejected},
		{ID: uuid.New(), Status: ideas.StatusApproved, ImageLink: &empty},
	}

	got := ideas.Gate(rows)
	if len(got) != 2 || got[0].ID != rows[1].ID || got[1].ID != rows[4].ID {
		t.Fatalf("Gate() = %+v", got)
	}

	again := ideas.Gate(rows)
	if len(again) != len(got) {
		t.Error("Gate() is not deterministic")
	}
	if rows[1].HasImage() {
		t.Error("Gate() mutated its input")
	}
	if len(ideas.Gate(nil)) != 0 {
		t.Error("Gate(nil) should be empty")
	}
}

package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/muse/internal/assets"
	"github.com/JaimeStill/muse/internal/generator"
	"github.com/JaimeStill/muse/internal/ideas"
	"github.com/JaimeStill/muse/internal/prompts"
	"github.com/JaimeStill/muse/internal/workflow"
	"github.com/JaimeStill/muse/pkg/images"
	"github.com/JaimeStill/muse/pkg/pagination"
	"github.com/JaimeStill/muse/pkg/publish"
	"github.com/JaimeStill/muse/pkg/retry"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// memStore is an in-memory ideas.System with the same link and review rules
// as the database repository.
type memStore struct {
	mu       sync.Mutex
	rows     []ideas.Idea
	pending  []ideas.Review
	appendFn func() error
	links    int
	// publishErr fails MarkPublished.
	publishErr error
}

func (m *memStore) seed(text string, status ideas.Status) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.rows = append(m.rows, ideas.Idea{ID: id, Text: text, Status: status, CreatedAt: time.Now()})
	return id
}

func (m *memStore) seedLinked(text string) uuid.UUID {
	id := m.seed(text, ideas.StatusApproved)
	m.mu.Lock()
	defer m.mu.Unlock()
	link, key := "https://blob.test/content/ideas/"+id.String()+"?se=expired", "ideas/"+id.String()
	m.rows[len(m.rows)-1].ImageLink = &link
	m.rows[len(m.rows)-1].ImageKey = &key
	return id
}

func (m *memStore) snapshot() []ideas.Idea {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ideas.Idea, len(m.rows))
	copy(out, m.rows)
	return out
}

func (m *memStore) row(id uuid.UUID) ideas.Idea {
	for _, r := range m.snapshot() {
		if r.ID == id {
			return r
		}
	}
	return ideas.Idea{}
}

func (m *memStore) Append(_ context.Context, runID uuid.UUID, texts []string) ([]ideas.Idea, error) {
	if m.appendFn != nil {
		if err := m.appendFn(); err != nil {
			return nil, err
		}
	}
	if len(texts) != ideas.BatchSize {
		return nil, ideas.ErrInvalidBatch
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	created := make([]ideas.Idea, 0, len(texts))
	for _, t := range texts {
		idea := ideas.Idea{ID: uuid.New(), RunID: &runID, Text: t, Status: ideas.StatusWaiting, CreatedAt: time.Now()}
		m.rows = append(m.rows, idea)
		created = append(created, idea)
	}
	return created, nil
}

func (m *memStore) All(context.Context) ([]ideas.Idea, error) {
	return m.snapshot(), nil
}

func (m *memStore) List(context.Context, pagination.PageRequest, ideas.Filters) (*pagination.PageResult[ideas.Idea], error) {
	return nil, errors.New("not implemented")
}

func (m *memStore) Find(_ context.Context, id uuid.UUID) (*ideas.Idea, error) {
	row := m.row(id)
	if row.ID == uuid.Nil {
		return nil, ideas.ErrNotFound
	}
	return &row, nil
}

func (m *memStore) SetImageLink(_ context.Context, id uuid.UUID, link, key string) (*ideas.Idea, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		r := &m.rows[i]
		if r.ID != id {
			continue
		}
		if r.Status != ideas.StatusApproved {
			return nil, ideas.ErrNotApproved
		}
		if r.HasImage() && *r.ImageLink != link {
			return nil, ideas.ErrLinkExists
		}
		r.ImageLink, r.ImageKey = &link, &key
		m.links++
		out := *r
		return &out, nil
	}
	return nil, ideas.ErrNotFound
}

func (m *memStore) MarkPublished(_ context.Context, id uuid.UUID, postID, postURL string) (*ideas.Idea, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		r := &m.rows[i]
		if r.ID != id {
			continue
		}
		if m.publishErr != nil {
			return nil, m.publishErr
		}
		if r.Status != ideas.StatusApproved {
			return nil, ideas.ErrNotApproved
		}
		if !r.HasImage() {
			return nil, ideas.ErrNoImage
		}
		if r.Published() {
			if *r.PostID == postID {
				out := *r
				return &out, nil
			}
			return nil, ideas.ErrPublished
		}
		now := time.Now()
		r.PostID, r.PublishedAt = &postID, &now
		if postURL != "" {
			r.PostURL = &postURL
		}
		out := *r
		return &out, nil
	}
	return nil, ideas.ErrNotFound
}

func (m *memStore) SubmitReview(_ context.Context, id uuid.UUID, cmd ideas.ReviewCommand) (*ideas.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rv := ideas.Review{ID: uuid.New(), IdeaID: id, Status: cmd.Status, SubmittedAt: time.Now()}
	m.pending = append(m.pending, rv)
	return &rv, nil
}

func (m *memStore) Reviews(context.Context, uuid.UUID) ([]ideas.Review, error) {
	return nil, errors.New("not implemented")
}

func (m *memStore) ApplyReviews(context.Context) (*ideas.ApplyResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := &ideas.ApplyResult{}
	for _, rv := range m.pending {
		applied := false
		for i := range m.rows {
			if m.rows[i].ID == rv.IdeaID && m.rows[i].Status == ideas.StatusWaiting {
				m.rows[i].Status = rv.Status
				applied = true
			}
		}
		if applied {
			res.Applied++
		} else {
			res.Ignored++
		}
	}
	m.pending = nil
	return res, nil
}

type mockImages struct {
	mu         sync.Mutex
	calls      int
	generateFn func(prompt string) (*images.Image, error)
}

func (m *mockImages) Generate(_ context.Context, prompt string) (*images.Image, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.generateFn != nil {
		return m.generateFn(prompt)
	}
	return &images.Image{Data: []byte("png"), ContentType: "image/png"}, nil
}

func (m *mockImages) Model() string { return "test-image-model" }

type mockAssets struct {
	mu      sync.Mutex
	uploads []uuid.UUID
	failFor map[uuid.UUID]bool
}

func (m *mockAssets) Key(id uuid.UUID) string {
	return "ideas/" + id.String()
}

func (m *mockAssets) Link(_ context.Context, key string) (string, error) {
	return "https://blob.test/content/" + key + "?se=fresh", nil
}

func (m *mockAssets) Upload(_ context.Context, id uuid.UUID, img *images.Image) (*assets.Asset, error) {
	if m.failFor[id] {
		return nil, fmt.Errorf("%w: storage unavailable", assets.ErrUpload)
	}
	m.mu.Lock()
	m.uploads = append(m.uploads, id)
	m.mu.Unlock()
	key := m.Key(id)
	return &assets.Asset{Key: key, Link: "https://blob.test/content/" + key}, nil
}

type mockPublisher struct {
	mu    sync.Mutex
	posts []publish.Post
	fn    func(post publish.Post) (*publish.Published, error)
}

func (m *mockPublisher) Publish(_ context.Context, post publish.Post) (*publish.Published, error) {
	m.mu.Lock()
	m.posts = append(m.posts, post)
	n := len(m.posts)
	m.mu.Unlock()
	if m.fn != nil {
		return m.fn(post)
	}
	return &publish.Published{ID: fmt.Sprintf("media-%d", n), URL: fmt.Sprintf("https://www.instagram.com/p/%d/", n)}, nil
}

type generatorFunc func(ctx context.Context) ([]string, error)

func (f generatorFunc) Generate(ctx context.Context) ([]string, error) { return f(ctx) }

func fiveIdeas(context.Context) ([]string, error) {
	return []string{"one", "two", "three", "four", "five"}, nil
}

func newRuntime(store *memStore, gen generator.System, img *mockImages, up *mockAssets) *workflow.Runtime {
	return &workflow.Runtime{
		Ideas:       store,
		Generator:   gen,
		Images:      img,
		Assets:      up,
		Brief:       prompts.Brief{Topic: "coffee", Style: "watercolor"},
		Concurrency: 2,
		Retry:       retry.Policy{MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
		Logger:      discard,
	}
}

func TestExecuteOneApproved(t *testing.T) {
	store := &memStore{}
	approved := store.seed("latte art close-up", ideas.StatusApproved)
	for _, text := range []string{"a", "b", "c"} {
		store.seed(text, ideas.StatusWaiting)
	}
	rejected := store.seed("rejected", ideas.StatusRejected)

	img, up := &mockImages{}, &mockAssets{}
	rt := newRuntime(store, generatorFunc(fiveIdeas), img, up)

	report, err := workflow.Execute(context.Background(), rt, uuid.New())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if img.calls != 1 || len(up.uploads) != 1 || store.links != 1 {
		t.Errorf("images=%d uploads=%d links=%d, want 1 each", img.calls, len(up.uploads), store.links)
	}
	if report.Approved != 1 || report.Linked != 1 || report.Failed != 0 {
		t.Errorf("report = %+v", report)
	}
	if len(report.Created) != ideas.BatchSize {
		t.Errorf("created = %d, want %d", len(report.Created), ideas.BatchSize)
	}

	if row := store.row(approved); !row.HasImage() {
		t.Error("approved row was not linked")
	}
	if row := store.row(rejected); row.HasImage() {
		t.Error("rejected row was linked")
	}

	waiting := 0
	for _, r := range store.snapshot() {
		if r.Status == ideas.StatusWaiting {
			waiting++
			if r.HasImage() {
				t.Errorf("waiting row %s has an image", r.ID)
			}
		}
	}
	if waiting != 3+ideas.BatchSize {
		t.Errorf("waiting rows = %d, want %d", waiting, 3+ideas.BatchSize)
	}

	again, err := workflow.Execute(context.Background(), rt, uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if again.Approved != 0 || img.calls != 1 {
		t.Errorf("second run rendered again: approved=%d images=%d", again.Approved, img.calls)
	}
}

func TestExecuteGenerationFailureWritesNothing(t *testing.T) {
	store := &memStore{}
	store.seed("already approved", ideas.StatusApproved)
	before := len(store.snapshot())

	gen := generatorFunc(func(context.Context) ([]string, error) {
		return nil, fmt.Errorf("%w: %w: got 3", generator.ErrGenerate, generator.ErrTooFewIdeas)
	})
	img := &mockImages{}
	rt := newRuntime(store, gen, img, &mockAssets{})

	report, err := workflow.Execute(context.Background(), rt, uuid.New())
	if !errors.Is(err, workflow.ErrUpstream) || !errors.Is(err, generator.ErrTooFewIdeas) {
		t.Fatalf("error = %v, want ErrUpstream wrapping ErrTooFewIdeas", err)
	}
	if got := len(store.snapshot()); got != before {
		t.Errorf("rows = %d, want %d", got, before)
	}
	if img.calls != 0 {
		t.Errorf("image calls = %d, want 0", img.calls)
	}
	if report == nil || len(report.Created) != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestExecuteIsolatesRowFailures(t *testing.T) {
	store := &memStore{}
	good := store.seed("sunrise pour-over", ideas.StatusApproved)
	bad := store.seed("forbidden subject", ideas.StatusApproved)

	img := &mockImages{
		generateFn: func(prompt string) (*images.Image, error) {
			if strings.Contains(prompt, "forbidden") {
				return nil, images.ErrEmptyResponse
			}
			return &images.Image{Data: []byte("png"), ContentType: "image/png"}, nil
		},
	}
	rt := newRuntime(store, generatorFunc(fiveIdeas), img, &mockAssets{})

	report, err := workflow.Execute(context.Background(), rt, uuid.New())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !store.row(good).HasImage() {
		t.Error("successful row was not linked")
	}
	if store.row(bad).HasImage() {
		t.Error("failed row was linked")
	}
	if !report.Partial() || report.Linked != 1 || report.Failed != 1 {
		t.Errorf("report = %+v, want partial 1/1", report)
	}
	if len(report.Warnings) != 1 || !strings.Contains(report.Warnings[0], bad.String()) {
		t.Errorf("warnings = %v", report.Warnings)
	}
	for _, row := range report.Rows {
		if row.IdeaID == bad && !errors.Is(row.Err, workflow.ErrUpstream) {
			t.Errorf("row error = %v, want ErrUpstream", row.Err)
		}
	}
	if img.calls != 2 {
		t.Errorf("image calls = %d, want 2 (non-transient failure is not retried)", img.calls)
	}
}

func TestExecuteUploadFailureLeavesLinkEmpty(t *testing.T) {
	store := &memStore{}
	id := store.seed("cold brew", ideas.StatusApproved)

	up := &mockAssets{failFor: map[uuid.UUID]bool{id: true}}
	rt := newRuntime(store, generatorFunc(fiveIdeas), &mockImages{}, up)

	report, err := workflow.Execute(context.Background(), rt, uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if !report.AllFailed() {
		t.Errorf("report = %+v, want all failed", report)
	}
	if !errors.Is(report.Rows[0].Err, workflow.ErrUpload) {
		t.Errorf("row error = %v, want ErrUpload", report.Rows[0].Err)
	}
	if store.row(id).HasImage() {
		t.Error("row linked despite upload failure")
	}
}

func TestExecuteAppliesReviewsBeforeGate(t *testing.T) {
	store := &memStore{}
	id := store.seed("espresso macro", ideas.StatusWaiting)
	store.SubmitReview(context.Background(), id, ideas.ReviewCommand{Status: ideas.StatusApproved})
	store.SubmitReview(context.Background(), id, ideas.ReviewCommand{Status: ideas.StatusRejected})

	rt := newRuntime(store, generatorFunc(fiveIdeas), &mockImages{}, &mockAssets{})

	report, err := workflow.Execute(context.Background(), rt, uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if report.Reviews.Applied != 1 || report.Reviews.Ignored != 1 {
		t.Errorf("reviews = %+v", report.Reviews)
	}
	row := store.row(id)
	if row.Status != ideas.StatusApproved || !row.HasImage() {
		t.Errorf("row = %+v, want approved with image", row)
	}
}

func TestExecuteNothingApproved(t *testing.T) {
	store := &memStore{}
	store.seed("pending", ideas.StatusWaiting)

	img := &mockImages{}
	rt := newRuntime(store, generatorFunc(fiveIdeas), img, &mockAssets{})

	report, err := workflow.Execute(context.Background(), rt, uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if img.calls != 0 || report.Approved != 0 || len(report.Rows) != 0 {
		t.Errorf("render ran: images=%d report=%+v", img.calls, report)
	}
	if report.CompletedAt.IsZero() {
		t.Error("report not completed")
	}
}

func TestExecuteStoreFailure(t *testing.T) {
	store := &memStore{appendFn: func() error { return errors.New("connection refused") }}
	store.seed("approved", ideas.StatusApproved)

	img := &mockImages{}
	rt := newRuntime(store, generatorFunc(fiveIdeas), img, &mockAssets{})

	_, err := workflow.Execute(context.Background(), rt, uuid.New())
	if !errors.Is(err, workflow.ErrStore) {
		t.Fatalf("error = %v, want ErrStore", err)
	}
	if img.calls != 0 {
		t.Error("render ran after store failure")
	}
}

func TestExecutePublishesRenderedIdeas(t *testing.T) {
	store := &memStore{}
	linked := store.seedLinked("cold brew on ice")
	fresh := store.seed("latte art close-up", ideas.StatusApproved)
	waiting := store.seed("waiting", ideas.StatusWaiting)

	pub := &mockPublisher{}
	rt := newRuntime(store, generatorFunc(fiveIdeas), &mockImages{}, &mockAssets{})
	rt.Brief.Hashtags = "coffee"
	rt.Publisher = pub
	rt.MaxPosts = 5

	report, err := workflow.Execute(context.Background(), rt, uuid.New())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if report.Linked != 1 || report.Published != 2 || report.PostFailed != 0 {
		t.Errorf("report = %+v, want 1 linked and 2 published", report)
	}
	for _, id := range []uuid.UUID{fresh, linked} {
		if row := store.row(id); !row.Published() || row.PostURL == nil {
			t.Errorf("row %s not published: %+v", id, row)
		}
	}
	if store.row(waiting).Published() {
		t.Error("waiting row was published")
	}
	if pub.posts[0].Caption != "cold brew on ice\n\n#coffee" {
		t.Errorf("caption = %q", pub.posts[0].Caption)
	}
	if want := "https://blob.test/content/ideas/" + linked.String() + "?se=fresh"; pub.posts[0].ImageURL != want {
		t.Errorf("image url = %q, want freshly signed %q", pub.posts[0].ImageURL, want)
	}

	again, err := workflow.Execute(context.Background(), rt, uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if again.Published != 0 || len(pub.posts) != 2 {
		t.Errorf("second run posted again: published=%d posts=%d", again.Published, len(pub.posts))
	}
}

func TestExecutePublishLimit(t *testing.T) {
	store := &memStore{}
	first := store.seedLinked("first")
	second := store.seedLinked("second")

	pub := &mockPublisher{}
	rt := newRuntime(store, generatorFunc(fiveIdeas), &mockImages{}, &mockAssets{})
	rt.Publisher = pub
	rt.MaxPosts = 1

	report, err := workflow.Execute(context.Background(), rt, uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if report.Published != 1 || !store.row(first).Published() || store.row(second).Published() {
		t.Errorf("report = %+v, want only the oldest idea published", report)
	}
}

func TestExecutePublishFailures(t *testing.T) {
	tests := []struct {
		name       string
		fn         func(publish.Post) (*publish.Published, error)
		publishErr error
		wantCalls  int
		wantErr    error
	}{
		{
			name: "rejected image is not retried",
			fn: func(publish.Post) (*publish.Published, error) {
				return nil, fmt.Errorf("%w: %w", publish.ErrPublish, &publish.APIError{Status: 400, Code: 9004})
			},
			wantCalls: 1,
			wantErr:   workflow.ErrUpstream,
		},
		{
			name: "throttling is retried",
			fn: func(publish.Post) (*publish.Published, error) {
				return nil, fmt.Errorf("%w: %w", publish.ErrPublish, &publish.APIError{Status: 429})
			},
			wantCalls: 2,
			wantErr:   workflow.ErrUpstream,
		},
		{
			name:       "record failure",
			publishErr: errors.New("connection refused"),
			wantCalls:  1,
			wantErr:    workflow.ErrStore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{publishErr: tt.publishErr}
			id := store.seedLinked("espresso macro")

			pub := &mockPublisher{fn: tt.fn}
			rt := newRuntime(store, generatorFunc(fiveIdeas), &mockImages{}, &mockAssets{})
			rt.Publisher = pub
			rt.MaxPosts = 1

			report, err := workflow.Execute(context.Background(), rt, uuid.New())
			if err != nil {
				t.Fatalf("Execute() error = %v, post failures are not run errors", err)
			}
			if !report.Partial() || report.PostFailed != 1 || report.Published != 0 {
				t.Errorf("report = %+v", report)
			}
			if !errors.Is(report.Posts[0].Err, tt.wantErr) {
				t.Errorf("post error = %v, want %v", report.Posts[0].Err, tt.wantErr)
			}
			if len(pub.posts) != tt.wantCalls {
				t.Errorf("publish calls = %d, want %d", len(pub.posts), tt.wantCalls)
			}
			if store.row(id).Published() {
				t.Error("failed post recorded as published")
			}
		})
	}
}

func TestExecuteWithoutPublisher(t *testing.T) {
	store := &memStore{}
	id := store.seedLinked("already linked")

	rt := newRuntime(store, generatorFunc(fiveIdeas), &mockImages{}, &mockAssets{})

	report, err := workflow.Execute(context.Background(), rt, uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if report.Published != 0 || len(report.Posts) != 0 || store.row(id).Published() {
		t.Errorf("report = %+v, want nothing published", report)
	}
}

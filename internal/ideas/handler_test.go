package ideas_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/muse/internal/ideas"
	"github.com/JaimeStill/muse/pkg/lifecycle"
	"github.com/JaimeStill/muse/pkg/middleware"
	"github.com/JaimeStill/muse/pkg/pagination"
	"github.com/JaimeStill/muse/pkg/routes"
	"github.com/JaimeStill/muse/pkg/storage"
)

type mockSystem struct {
	listFn   func(context.Context, pagination.PageRequest, ideas.Filters) (*pagination.PageResult[ideas.Idea], error)
	findFn   func(context.Context, uuid.UUID) (*ideas.Idea, error)
	submitFn func(context.Context, uuid.UUID, ideas.ReviewCommand) (*ideas.Review, error)
}

func (m *mockSystem) Append(context.Context, uuid.UUID, []string) ([]ideas.Idea, error) {
	return nil, errors.New("not implemented")
}

func (m *mockSystem) All(context.Context) ([]ideas.Idea, error) {
	return nil, errors.New("not implemented")
}

func (m *mockSystem) List(ctx context.Context, page pagination.PageRequest, f ideas.Filters) (*pagination.PageResult[ideas.Idea], error) {
	return m.listFn(ctx, page, f)
}

func (m *mockSystem) Find(ctx context.Context, id uuid.UUID) (*ideas.Idea, error) {
	return m.findFn(ctx, id)
}

func (m *mockSystem) SetImageLink(context.Context, uuid.UUID, string, string) (*ideas.Idea, error) {
	return nil, errors.New("not implemented")
}

func (m *mockSystem) MarkPublished(context.Context, uuid.UUID, string, string) (*ideas.Idea, error) {
	return nil, errors.New("not implemented")
}

func (m *mockSystem) SubmitReview(ctx context.Context, id uuid.UUID, cmd ideas.ReviewCommand) (*ideas.Review, error) {
	return m.submitFn(ctx, id, cmd)
}

func (m *mockSystem) Reviews(context.Context, uuid.UUID) ([]ideas.Review, error) {
	return []ideas.Review{}, nil
}

func (m *mockSystem) ApplyReviews(context.Context) (*ideas.ApplyResult, error) {
	return nil, errors.New("not implemented")
}

type mockStore struct {
	blobs map[string]string
}

func (m *mockStore) Start(*lifecycle.Coordinator) error { return nil }
func (m *mockStore) Ready() bool                        { return true }

func (m *mockStore) Upload(context.Context, string, io.Reader, string) error { return nil }

func (m *mockStore) Download(_ context.Context, key string) (*storage.Blob, error) {
	body, ok := m.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.Blob{
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentType:   "image/png",
		ContentLength: int64(len(body)),
	}, nil
}

func (m *mockStore) Link(_ context.Context, key string) (string, error) {
	return "https://blob.test/content/" + key, nil
}

func (m *mockStore) KeyFromURL(link string) (string, error) {
	key, ok := strings.CutPrefix(link, "https://blob.test/content/")
	if !ok {
		return "", storage.ErrInvalidKey
	}
	return key, nil
}

func serve(t *testing.T, sys ideas.System, store storage.System, req *http.Request, mw ...func(http.Handler) http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	h := ideas.NewHandler(sys, store, discard, pageCfg, 1<<20)
	mux := http.NewServeMux()
	routes.Register(mux, h.Routes(mw...))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandlerList(t *testing.T) {
	var got ideas.Filters
	sys := &mockSystem{
		listFn: func(_ context.Context, page pagination.PageRequest, f ideas.Filters) (*pagination.PageResult[ideas.Idea], error) {
			got = f
			res := pagination.NewPageResult([]ideas.Idea{{ID: uuid.New(), Text: "x", Status: ideas.StatusApproved}}, 1, page.Page, page.PageSize)
			return &res, nil
		},
	}

	req := httptest.NewRequest("GET", "/ideas?status=Approved&has_image=false", nil)
	rec := serve(t, sys, &mockStore{}, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if got.Status == nil || *got.Status != "Approved" {
		t.Errorf("status filter = %v", got.Status)
	}
	if got.HasImage == nil || *got.HasImage {
		t.Errorf("has_image filter = %v", got.HasImage)
	}

	var page pagination.PageResult[ideas.Idea]
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || len(page.Data) != 1 {
		t.Errorf("page = %+v", page)
	}
}

func TestHandlerFind(t *testing.T) {
	known := uuid.New()
	sys := &mockSystem{
		findFn: func(_ context.Context, id uuid.UUID) (*ideas.Idea, error) {
			if id != known {
				return nil, ideas.ErrNotFound
			}
			return &ideas.Idea{ID: id, Text: "x", Status: ideas.StatusWaiting}, nil
		},
	}

	tests := []struct {
		name string
		path string
		want int
	}{
		{"found", "/ideas/" + known.String(), http.StatusOK},
		{"unknown", "/ideas/" + uuid.NewString(), http.StatusNotFound},
		{"malformed id", "/ideas/not-a-uuid", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, sys, &mockStore{}, httptest.NewRequest("GET", tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHandlerSubmitReview(t *testing.T) {
	id := uuid.New()

	var got ideas.ReviewCommand
	sys := &mockSystem{
		submitFn: func(_ context.Context, ideaID uuid.UUID, cmd ideas.ReviewCommand) (*ideas.Review, error) {
			if cmd.Status != ideas.StatusApproved && cmd.Status != ideas.StatusRejected {
				return nil, ideas.ErrInvalidReview
			}
			got = cmd
			return &ideas.Review{ID: uuid.New(), IdeaID: ideaID, Status: cmd.Status}, nil
		},
	}

	t.Run("accepted", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/ideas/"+id.String()+"/reviews", strings.NewReader(`{"status":"Approved","reviewer":"anon"}`))
		rec := serve(t, sys, &mockStore{}, req)

		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
		}
		if got.Reviewer != "anon" {
			t.Errorf("reviewer = %q", got.Reviewer)
		}
	})

	t.Run("identity overrides reviewer", func(t *testing.T) {
		withIdentity := func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctx := middleware.WithIdentity(r.Context(), &middleware.Identity{Subject: "u-1", Email: "editor@example.com"})
				next.ServeHTTP(w, r.WithContext(ctx))
			})
		}

		req := httptest.NewRequest("POST", "/ideas/"+id.String()+"/reviews", strings.NewReader(`{"status":"Rejected","reviewer":"spoofed"}`))
		rec := serve(t, sys, &mockStore{}, req, withIdentity)

		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d", rec.Code)
		}
		if got.Reviewer != "editor@example.com" {
			t.Errorf("reviewer = %q, want identity email", got.Reviewer)
		}
	})

	t.Run("invalid status", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/ideas/"+id.String()+"/reviews", strings.NewReader(`{"status":"Maybe"}`))
		if rec := serve(t, sys, &mockStore{}, req); rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/ideas/"+id.String()+"/reviews", strings.NewReader(`{`))
		if rec := serve(t, sys, &mockStore{}, req); rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandlerImage(t *testing.T) {
	withKey, withLink, bare, missing := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	key := "ideas/" + withKey.String()
	linkKey := "ideas/" + withLink.String()
	link := "https://blob.test/content/" + linkKey
	missingLink := "https://blob.test/content/ideas/gone.png"

	rows := map[uuid.UUID]*ideas.Idea{
		withKey:  {ID: withKey, Status: ideas.StatusApproved, ImageLink: &link, ImageKey: &key},
		withLink: {ID: withLink, Status: ideas.StatusApproved, ImageLink: &link},
		bare:     {ID: bare, Status: ideas.StatusApproved},
		missing:  {ID: missing, Status: ideas.StatusApproved, ImageLink: &missingLink},
	}
	sys := &mockSystem{
		findFn: func(_ context.Context, id uuid.UUID) (*ideas.Idea, error) {
			if row, ok := rows[id]; ok {
				return row, nil
			}
			return nil, ideas.ErrNotFound
		},
	}
	store := &mockStore{blobs: map[string]string{key: "png-bytes", linkKey: "other-bytes"}}

	tests := []struct {
		name     string
		id       uuid.UUID
		want     int
		wantBody string
		wantFile string
	}{
		{"stored key", withKey, http.StatusOK, "png-bytes", withKey.String() + ".png"},
		{"key resolved from link", withLink, http.StatusOK, "other-bytes", withLink.String() + ".png"},
		{"no image yet", bare, http.StatusNotFound, "", ""},
		{"blob missing", missing, http.StatusNotFound, "", ""},
		{"unknown idea", uuid.New(), http.StatusNotFound, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, sys, store, httptest.NewRequest("GET", "/ideas/"+tt.id.String()+"/image", nil))

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.want, rec.Body)
			}
			if tt.wantBody == "" {
				return
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q", rec.Body)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
				t.Errorf("Content-Type = %q", ct)
			}
			if cd, want := rec.Header().Get("Content-Disposition"), fmt.Sprintf("inline; filename=%q", tt.wantFile); cd != want {
				t.Errorf("Content-Disposition = %q, want %q", cd, want)
			}
		})
	}
}

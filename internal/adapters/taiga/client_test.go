package taiga

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/HamedShams/agile-ingest/internal/domain"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

func TestListFollowsPaginationHeader(t *testing.T) {
	var srv *httptest.Server
	var firstQuery string
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token")
		}
		page := r.URL.Query().Get("page")
		switch page {
		case "":
			firstQuery = r.URL.RawQuery
			w.Header().Set("X-Pagination-Next", srv.URL+"/api/v1/tasks?project=5&page=2")
			fmt.Fprint(w, `[{"id":1},{"id":2}]`)
		case "2":
			fmt.Fprint(w, `[{"id":3}]`)
		default:
			t.Errorf("unexpected page %q", page)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, zerolog.Nop())
	w := domain.Window{Since: time.Date(2024, 6, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))}
	var ids []int64
	err := c.List(context.Background(), "tok", "tasks", 5, w, func(items []gjson.Result) error {
		for _, it := range items {
			ids = append(ids, it.Get("id").Int())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 3 || ids[2] != 3 {
		t.Fatalf("expected 3 items across 2 pages, got %v", ids)
	}
	if firstQuery != "modified_date__gte=2024-06-01T10%3A00%3A00Z&project=5" {
		t.Fatalf("unexpected first query %q", firstQuery)
	}
}

func TestListFollowsBodyNext(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"results":[{"id":3}],"next":null}`)
			return
		}
		fmt.Fprintf(w, `{"results":[{"id":1},{"id":2}],"next":"%s/api/v1/epics?page=2"}`, srv.URL)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, zerolog.Nop())
	n := 0
	if err := c.List(context.Background(), "", "epics", 1, domain.Window{}, func(items []gjson.Result) error {
		n += len(items)
		return nil
	}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 items, got %d", n)
	}
}

func TestTokenAndMilestoneStats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/auth":
			fmt.Fprint(w, `{"auth_token":"abc"}`)
		case "/api/v1/milestones/8/stats":
			if r.URL.Query().Get("project") != "5" {
				t.Errorf("missing project param")
			}
			fmt.Fprint(w, `{"total_points":{"1":3,"2":5.5},"completed_points":[1,2],"total_userstories":4,"completed_userstories":1,"total_tasks":9,"completed_tasks":3}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, zerolog.Nop())
	tok, err := c.Token(context.Background(), "u", "p")
	if err != nil || tok != "abc" {
		t.Fatalf("token=%q err=%v", tok, err)
	}
	st, err := c.MilestoneStats(context.Background(), tok, 5, 8)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := domain.MilestoneStats{TotalPoints: 8.5, ClosedPoints: 3, TotalUserStories: 4, CompletedUserStories: 1, TotalTasks: 9, CompletedTasks: 3}
	if st != want {
		t.Fatalf("got %+v want %+v", st, want)
	}
	if _, err := c.ProjectBySlug(context.Background(), "", "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trendscope-pipeline/internal/config"
)

func archiveFixture(t *testing.T, handler http.HandlerFunc) (*ArchiveService, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	service, err := NewArchiveService(config.ArchiveConfig{
		BaseURL:      server.URL,
		Timeout:      5 * time.Second,
		RelatedLimit: 5,
	}, testLogger(t))
	if err != nil {
		t.Fatalf("Failed to create archive service: %v", err)
	}
	return service, server
}

func TestArchiveServiceRequiresBaseURL(t *testing.T) {
	_, err := NewArchiveService(config.ArchiveConfig{}, testLogger(t))
	if err == nil {
		t.Error("Expected error for missing base URL")
	}
}

func TestGetTaxonomy(t *testing.T) {
	service, _ := archiveFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/categories" {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("hide_empty") != "false" {
			t.Error("Expected hide_empty=false")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": 3, "name": "Economy"}, {"id": 7, "name": "Politics"}]`))
	})

	taxonomy, err := service.GetTaxonomy(context.Background())
	if err != nil {
		t.Fatalf("GetTaxonomy failed: %v", err)
	}

	if len(taxonomy) != 2 {
		t.Fatalf("Expected 2 categories, got %d", len(taxonomy))
	}
	if taxonomy[0].TermID != 3 || taxonomy[0].Name != "Economy" {
		t.Errorf("Unexpected first category: %+v", taxonomy[0])
	}
}

func TestFindRelatedPosts(t *testing.T) {
	service, _ := archiveFixture(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("categories") != "3,7" {
			t.Errorf("Expected categories=3,7, got %q", q.Get("categories"))
		}
		if q.Get("per_page") != "5" {
			t.Errorf("Expected per_page=5, got %q", q.Get("per_page"))
		}
		if q.Get("orderby") != "date" || q.Get("order") != "desc" {
			t.Error("Expected newest-first ordering")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"title": "Report", "date": "2026-03-01", "url": "https://research.example.org/r", "excerpt": "..."}]`))
	})

	posts, err := service.FindRelatedPosts(context.Background(), []int{3, 7}, 5)
	if err != nil {
		t.Fatalf("FindRelatedPosts failed: %v", err)
	}

	if len(posts) != 1 || posts[0].Title != "Report" {
		t.Errorf("Unexpected posts: %+v", posts)
	}
}

func TestFindRelatedPostsEmptyCategories(t *testing.T) {
	called := false
	service, _ := archiveFixture(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	posts, err := service.FindRelatedPosts(context.Background(), nil, 5)
	if err != nil {
		t.Fatalf("Expected nil error for empty categories, got %v", err)
	}
	if posts != nil || called {
		t.Error("Empty category set must short-circuit without an API call")
	}
}

func TestArchiveErrorStatus(t *testing.T) {
	service, _ := archiveFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if _, err := service.GetTaxonomy(context.Background()); err == nil {
		t.Error("Expected error for 500 response")
	}
}

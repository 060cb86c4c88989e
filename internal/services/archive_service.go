package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"trendscope-pipeline/internal/config"
	"trendscope-pipeline/internal/models"
	"trendscope-pipeline/internal/pkg/logger"
)

// ArchiveService queries the organization's publication archive over its
// content API: the topic taxonomy, and published items intersecting a
// category set.
type ArchiveService struct {
	config config.ArchiveConfig
	client *http.Client
	logger *logger.Logger
}

type archiveCategory struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type archivePost struct {
	Title   string `json:"title"`
	Date    string `json:"date"`
	URL     string `json:"url"`
	Excerpt string `json:"excerpt"`
}

func NewArchiveService(cfg config.ArchiveConfig, log *logger.Logger) (*ArchiveService, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("archive API URL required")
	}

	service := &ArchiveService{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: log,
	}

	log.Info("archive service initialized", "base_url", cfg.BaseURL, "related_limit", cfg.RelatedLimit)

	return service, nil
}

// GetTaxonomy returns the full topic dictionary, including categories
// with no published content yet.
func (s *ArchiveService) GetTaxonomy(ctx context.Context) ([]models.CategoryRef, error) {
	startTime := time.Now()

	var decoded []archiveCategory
	if err := s.getJSON(ctx, "/categories?hide_empty=false", &decoded); err != nil {
		s.logger.LogService("archive", "get_taxonomy", time.Since(startTime), nil, err)
		return nil, models.WrapExternalError("ARCHIVE", err)
	}

	taxonomy := make([]models.CategoryRef, 0, len(decoded))
	for _, category := range decoded {
		taxonomy = append(taxonomy, models.CategoryRef{Name: category.Name, TermID: category.ID})
	}

	s.logger.LogService("archive", "get_taxonomy", time.Since(startTime), map[string]any{
		"categories": len(taxonomy),
	}, nil)

	return taxonomy, nil
}

// FindRelatedPosts returns up to limit published items tagged with any of
// the given categories, newest first, restricted to the current year.
func (s *ArchiveService) FindRelatedPosts(ctx context.Context, categoryIDs []int, limit int) ([]models.RelatedPost, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}

	startTime := time.Now()

	ids := make([]string, len(categoryIDs))
	for i, id := range categoryIDs {
		ids[i] = strconv.Itoa(id)
	}

	params := url.Values{}
	params.Set("categories", strings.Join(ids, ","))
	params.Set("per_page", strconv.Itoa(limit))
	params.Set("orderby", "date")
	params.Set("order", "desc")
	params.Set("after", fmt.Sprintf("%d-01-01", time.Now().UTC().Year()))

	var decoded []archivePost
	if err := s.getJSON(ctx, "/posts?"+params.Encode(), &decoded); err != nil {
		s.logger.LogService("archive", "find_related_posts", time.Since(startTime), map[string]any{
			"category_ids": categoryIDs,
		}, err)
		return nil, models.WrapExternalError("ARCHIVE", err)
	}

	posts := make([]models.RelatedPost, 0, len(decoded))
	for _, post := range decoded {
		posts = append(posts, models.RelatedPost{
			Title:   post.Title,
			Date:    post.Date,
			URL:     post.URL,
			Excerpt: post.Excerpt,
		})
	}

	s.logger.LogService("archive", "find_related_posts", time.Since(startTime), map[string]any{
		"category_ids": categoryIDs,
		"found":        len(posts),
	}, nil)

	return posts, nil
}

func (s *ArchiveService) getJSON(ctx context.Context, path string, target any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build archive request: %w", err)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("archive request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("archive API returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode archive response: %w", err)
	}

	return nil
}

func (s *ArchiveService) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.BaseURL+"/categories?per_page=1", nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("archive unreachable: %w", err)
	}
	resp.Body.Close()
	return nil
}

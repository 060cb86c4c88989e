package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"trendscope-pipeline/internal/config"
	"trendscope-pipeline/internal/models"
	"trendscope-pipeline/internal/pkg/logger"
)

// NewsService fetches trending headlines from the GNews API. Calls run
// behind a circuit breaker so a misbehaving upstream trips fast instead
// of holding every job for the full timeout.
type NewsService struct {
	config  config.NewsConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *logger.Logger
}

type newsAPIResponse struct {
	TotalArticles int              `json:"totalArticles"`
	Articles      []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"source"`
}

func NewNewsService(cfg config.NewsConfig, log *logger.Logger) (*NewsService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("news API key required")
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "news-api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("news breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})

	service := &NewsService{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		logger:  log,
	}

	log.Info("news service initialized", "base_url", cfg.BaseURL, "lang", cfg.Lang, "country", cfg.Country)

	return service, nil
}

// FetchTopHeadlines returns headlines for the request's category, date
// range, count and optional search query.
func (s *NewsService) FetchTopHeadlines(ctx context.Context, req models.AnalysisRequest) ([]models.NewsItem, error) {
	startTime := time.Now()

	from, to := req.DateRange(time.Now())

	params := url.Values{}
	params.Set("category", req.Category)
	params.Set("lang", s.config.Lang)
	params.Set("country", s.config.Country)
	params.Set("max", strconv.Itoa(req.Total))
	params.Set("from", from+"T00:00:00Z")
	params.Set("to", to+"T23:59:59Z")
	params.Set("page", "1")
	params.Set("apikey", s.config.APIKey)
	if req.Query != "" {
		params.Set("q", req.Query)
	}

	endpoint := s.config.BaseURL + "/top-headlines?" + params.Encode()

	result, err := s.breaker.Execute(func() (any, error) {
		return s.fetch(ctx, endpoint)
	})
	if err != nil {
		s.logger.LogService("news", "top_headlines", time.Since(startTime), map[string]any{
			"category": req.Category,
			"total":    req.Total,
		}, err)
		return nil, models.WrapExternalError("NEWS", err)
	}

	items := result.([]models.NewsItem)

	s.logger.LogService("news", "top_headlines", time.Since(startTime), map[string]any{
		"category": req.Category,
		"from":     from,
		"to":       to,
		"fetched":  len(items),
	}, nil)

	return items, nil
}

func (s *NewsService) fetch(ctx context.Context, endpoint string) ([]models.NewsItem, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build news request: %w", err)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("news request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news API returned status %d", resp.StatusCode)
	}

	var decoded newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode news response: %w", err)
	}

	items := make([]models.NewsItem, 0, len(decoded.Articles))
	for _, article := range decoded.Articles {
		items = append(items, models.NewsItem{
			Title:       article.Title,
			Description: article.Description,
			URL:         article.URL,
			Source:      article.Source.Name,
			PublishedAt: article.PublishedAt,
		})
	}

	return items, nil
}

func (s *NewsService) HealthCheck(ctx context.Context) error {
	if s.breaker.State() == gobreaker.StateOpen {
		return errors.New("news breaker open")
	}
	return nil
}

package services

import (
	"context"
	"encoding/json"
	"time"

	"trendscope-pipeline/internal/config"
	"trendscope-pipeline/internal/models"
	"trendscope-pipeline/internal/pkg/logger"
)

// Collaborator surfaces the pipeline depends on. Concrete services
// satisfy these; tests swap in fakes.
type (
	NewsFetcher interface {
		FetchTopHeadlines(ctx context.Context, req models.AnalysisRequest) ([]models.NewsItem, error)
	}

	StoryClassifier interface {
		ClassifyStories(ctx context.Context, items []models.NewsItem, taxonomy []models.CategoryRef) ([]models.ClassifiedStory, error)
	}

	StoryJudge interface {
		JudgeStory(ctx context.Context, story models.EnrichedStory) (*models.AnalyzedStory, error)
	}

	ArchiveSearcher interface {
		GetTaxonomy(ctx context.Context) ([]models.CategoryRef, error)
		FindRelatedPosts(ctx context.Context, categoryIDs []int, limit int) ([]models.RelatedPost, error)
	}
)

// Pipeline runs the five-stage trending news analysis: fetch headlines,
// classify them against the archive taxonomy, enrich each story with
// related research, judge the enriched stories one by one, and format
// the survivors.
type Pipeline struct {
	news       NewsFetcher
	classifier StoryClassifier
	judge      StoryJudge
	archive    ArchiveSearcher
	cache      CacheClient
	config     config.PipelineConfig
	limit      int
	logger     *logger.Logger
}

func NewPipeline(
	news NewsFetcher,
	classifier StoryClassifier,
	judge StoryJudge,
	archive ArchiveSearcher,
	cache CacheClient,
	cfg config.PipelineConfig,
	relatedLimit int,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		news:       news,
		classifier: classifier,
		judge:      judge,
		archive:    archive,
		cache:      cache,
		config:     cfg,
		limit:      relatedLimit,
		logger:     log,
	}
}

// Run executes every stage for one job and returns the analyzed stories.
// Fetch and classify failures abort the run; judge failures only skip
// the story they hit.
func (p *Pipeline) Run(ctx context.Context, job models.Job) ([]models.AnalyzedStory, error) {
	jc := models.NewJobContext(job)

	p.logger.LogJob(job.ID, job.Context.UserID, "pipeline_started", 0, nil)

	if err := p.fetchStage(ctx, jc); err != nil {
		return nil, err
	}
	if err := p.classifyStage(ctx, jc); err != nil {
		return nil, err
	}
	if err := p.enrichStage(ctx, jc); err != nil {
		return nil, err
	}
	if err := p.judgeStage(ctx, jc); err != nil {
		return nil, err
	}
	if err := p.formatStage(jc); err != nil {
		return nil, err
	}

	jc.Advance(models.StageDone)
	p.logger.LogJob(job.ID, job.Context.UserID, "pipeline_finished", jc.Duration(), nil)

	return jc.Analyzed, nil
}

func (p *Pipeline) fetchStage(ctx context.Context, jc *models.JobContext) error {
	start := time.Now()
	jc.Advance(models.StageFetching)

	items, err := p.news.FetchTopHeadlines(ctx, jc.Job.Request)
	if err != nil {
		p.logger.LogStage(jc.Job.ID, string(models.StageFetching), time.Since(start), nil, err)
		return err
	}
	if len(items) == 0 {
		err := models.ErrNoTrendingNews
		p.logger.LogStage(jc.Job.ID, string(models.StageFetching), time.Since(start), nil, err)
		return err
	}

	jc.NewsItems = items
	jc.RecordStage(models.StageFetching, start, len(items), 0)
	p.logger.LogStage(jc.Job.ID, string(models.StageFetching), time.Since(start), map[string]any{
		"items": len(items),
	}, nil)

	return nil
}

func (p *Pipeline) classifyStage(ctx context.Context, jc *models.JobContext) error {
	start := time.Now()
	jc.Advance(models.StageClassifying)

	taxonomy, err := p.loadTaxonomy(ctx)
	if err != nil {
		p.logger.LogStage(jc.Job.ID, string(models.StageClassifying), time.Since(start), nil, err)
		return err
	}

	classified, err := p.classifier.ClassifyStories(ctx, jc.NewsItems, taxonomy)
	if err != nil {
		p.logger.LogStage(jc.Job.ID, string(models.StageClassifying), time.Since(start), nil, err)
		return err
	}

	jc.Classified = classified
	jc.RecordStage(models.StageClassifying, start, len(classified), 0)
	p.logger.LogStage(jc.Job.ID, string(models.StageClassifying), time.Since(start), map[string]any{
		"classified": len(classified),
		"taxonomy":   len(taxonomy),
	}, nil)

	return nil
}

// enrichStage attaches related archive research to each classified story
// and drops stories with none: no research, no angle worth judging.
func (p *Pipeline) enrichStage(ctx context.Context, jc *models.JobContext) error {
	start := time.Now()
	jc.Advance(models.StageEnriching)

	enriched := make([]models.EnrichedStory, 0, len(jc.Classified))
	skipped := 0

	for _, story := range jc.Classified {
		posts, err := p.loadRelatedPosts(ctx, story.CategoryIDs())
		if err != nil {
			p.logger.WithError(err).WithFields(logger.Fields{
				"job_id": jc.Job.ID,
				"story":  story.Title,
			}).Warn("related research lookup failed, skipping story")
			skipped++
			continue
		}
		if len(posts) == 0 {
			skipped++
			continue
		}
		enriched = append(enriched, models.EnrichedStory{ClassifiedStory: story, RelatedPosts: posts})
	}

	jc.Enriched = enriched
	jc.RecordStage(models.StageEnriching, start, len(enriched), skipped)
	p.logger.LogStage(jc.Job.ID, string(models.StageEnriching), time.Since(start), map[string]any{
		"enriched": len(enriched),
		"skipped":  skipped,
	}, nil)

	return nil
}

func (p *Pipeline) judgeStage(ctx context.Context, jc *models.JobContext) error {
	start := time.Now()
	jc.Advance(models.StageJudging)

	analyzed := make([]models.AnalyzedStory, 0, len(jc.Enriched))
	skipped := 0

	for _, story := range jc.Enriched {
		result, err := p.judge.JudgeStory(ctx, story)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.LogStage(jc.Job.ID, string(models.StageJudging), time.Since(start), nil, err)
				return err
			}
			p.logger.WithError(err).WithFields(logger.Fields{
				"job_id": jc.Job.ID,
				"story":  story.Title,
			}).Warn("judge failed, skipping story")
			skipped++
			continue
		}
		analyzed = append(analyzed, *result)
	}

	jc.Analyzed = analyzed
	jc.RecordStage(models.StageJudging, start, len(analyzed), skipped)
	p.logger.LogStage(jc.Job.ID, string(models.StageJudging), time.Since(start), map[string]any{
		"analyzed": len(analyzed),
		"skipped":  skipped,
	}, nil)

	return nil
}

// formatStage renders the analyzed stories in the job's output format
// and keeps the result on the job context.
func (p *Pipeline) formatStage(jc *models.JobContext) error {
	start := time.Now()
	jc.Advance(models.StageFormatting)

	rendered, err := p.FormatResult(jc.Analyzed, jc.Job.Request.OutputFormat)
	if err != nil {
		p.logger.LogStage(jc.Job.ID, string(models.StageFormatting), time.Since(start), nil, err)
		return err
	}

	jc.Formatted = rendered
	jc.RecordStage(models.StageFormatting, start, len(jc.Analyzed), 0)
	p.logger.LogStage(jc.Job.ID, string(models.StageFormatting), time.Since(start), map[string]any{
		"format": jc.Job.Request.OutputFormat,
		"chars":  len(rendered),
	}, nil)

	return nil
}

// FormatResult renders analyzed stories in the requested output format.
func (p *Pipeline) FormatResult(stories []models.AnalyzedStory, outputFormat string) (string, error) {
	if outputFormat == models.FormatJSON {
		return FormatJSON(stories)
	}
	return FormatMarkdown(stories), nil
}

// loadTaxonomy serves the archive category dictionary through the cache.
// The taxonomy barely moves, so it gets the long TTL.
func (p *Pipeline) loadTaxonomy(ctx context.Context) ([]models.CategoryRef, error) {
	key := TaxonomyKey()

	if cached, found, err := p.cache.Get(ctx, key); err == nil && found {
		var taxonomy []models.CategoryRef
		if err := json.Unmarshal([]byte(cached), &taxonomy); err == nil {
			return taxonomy, nil
		}
		p.logger.WithFields(logger.Fields{"key": key}).Warn("discarding unreadable cached taxonomy")
	}

	taxonomy, err := p.archive.GetTaxonomy(ctx)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(taxonomy); err == nil {
		if err := p.cache.Set(ctx, key, string(encoded), p.config.TaxonomyTTL); err != nil {
			p.logger.WithError(err).Warn("failed to cache taxonomy")
		}
	}

	return taxonomy, nil
}

func (p *Pipeline) loadRelatedPosts(ctx context.Context, categoryIDs []int) ([]models.RelatedPost, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}

	key := RelatedPostsKey(categoryIDs, p.limit)

	if cached, found, err := p.cache.Get(ctx, key); err == nil && found {
		var posts []models.RelatedPost
		if err := json.Unmarshal([]byte(cached), &posts); err == nil {
			return posts, nil
		}
	}

	posts, err := p.archive.FindRelatedPosts(ctx, categoryIDs, p.limit)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(posts); err == nil {
		if err := p.cache.Set(ctx, key, string(encoded), p.config.RelatedPostsTTL); err != nil {
			p.logger.WithError(err).Warn("failed to cache related research")
		}
	}

	return posts, nil
}

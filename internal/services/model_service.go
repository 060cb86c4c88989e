package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"google.golang.org/genai"

	"trendscope-pipeline/internal/config"
	"trendscope-pipeline/internal/models"
	"trendscope-pipeline/internal/pkg/logger"
)

// Prompt template names. Each analysis feature registers the templates it
// needs at construction time; asking for an unregistered template is a
// programming error surfaced immediately rather than a bad model call.
const (
	PromptClassifyStories = "classify_stories"
	PromptJudgeStory      = "judge_story"
)

type promptTemplate struct {
	system      string
	temperature *float32
}

// ModelService wraps the Gemini API for the two judgment calls the
// analysis pipeline makes: batch topic classification and per-story
// editorial review.
type ModelService struct {
	client  *genai.Client
	config  config.ModelConfig
	prompts map[string]promptTemplate
	logger  *logger.Logger
}

func NewModelService(cfg config.ModelConfig, log *logger.Logger) (*ModelService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("Gemini API key required")
	}

	ctx := context.Background()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	judgeTemp := float32(cfg.Temperature)

	service := &ModelService{
		client: client,
		config: cfg,
		prompts: map[string]promptTemplate{
			PromptClassifyStories: {system: classifySystemPrompt},
			PromptJudgeStory:      {system: judgeSystemPrompt, temperature: &judgeTemp},
		},
		logger: log,
	}

	log.Info("model service initialized",
		"model", cfg.Model,
		"max_tokens", cfg.MaxTokens,
		"temperature", cfg.Temperature,
	)

	return service, nil
}

const classifySystemPrompt = `You are a news taxonomist for a research organization.
You receive a list of news stories and the organization's category dictionary.
For each story, pick the categories from the dictionary that genuinely apply.
Only use categories present in the dictionary; never invent new ones.
Respond with raw JSON only (no markdown fences): an array where each element is
{"title": string, "description": string, "date": string, "url": string,
"categories": [{"name": string, "term_id": number}]}.
Include every story from the input exactly once, in the same order.
A story that matches no category gets an empty categories array.`

const judgeSystemPrompt = `You are a senior editor reviewing one news story against
related research publications from your organization's archive.
Write a concise summary of the story, then propose exactly two editorial angles
that connect the story to the research provided. Each angle needs a punchy
headline, a short explanation of how to pursue it, and the research links that
support it.
Respond with raw JSON only (no markdown fences), in this shape:
{"title": string, "summary": string, "source": string,
"suggestions": [{"headline": string, "angle": string,
"links": [{"title": string, "url": string}]}]}.
Only cite links from the research you were given.`

// ClassifyStories assigns archive categories to every fetched story in a
// single batch call. A response that cannot be parsed fails the whole
// batch; there is no per-story recovery at this stage.
func (s *ModelService) ClassifyStories(ctx context.Context, items []models.NewsItem, taxonomy []models.CategoryRef) ([]models.ClassifiedStory, error) {
	startTime := time.Now()

	payload := struct {
		Stories    []models.NewsItem    `json:"stories"`
		Dictionary []models.CategoryRef `json:"category_dictionary"`
	}{Stories: items, Dictionary: taxonomy}

	prompt, err := json.Marshal(payload)
	if err != nil {
		return nil, models.NewInternalError("CLASSIFY_ENCODE_FAILED", "failed to encode classification prompt").WithCause(err)
	}

	raw, err := s.generate(ctx, PromptClassifyStories, string(prompt))
	if err != nil {
		s.logger.LogService("model", "classify_stories", time.Since(startTime), map[string]any{
			"stories": len(items),
		}, err)
		return nil, err
	}

	var classified []models.ClassifiedStory
	if err := json.Unmarshal([]byte(stripJSONFences(raw)), &classified); err != nil {
		s.logger.LogService("model", "classify_stories", time.Since(startTime), map[string]any{
			"stories":         len(items),
			"response_length": len(raw),
		}, err)
		return nil, models.ErrClassificationInvalid.WithCause(err)
	}

	s.logger.LogService("model", "classify_stories", time.Since(startTime), map[string]any{
		"stories":    len(items),
		"classified": len(classified),
	}, nil)

	return classified, nil
}

// JudgeStory reviews one enriched story and returns the editorial
// analysis, or an error the caller may choose to skip past.
func (s *ModelService) JudgeStory(ctx context.Context, story models.EnrichedStory) (*models.AnalyzedStory, error) {
	startTime := time.Now()

	payload := struct {
		Story    models.ClassifiedStory `json:"story"`
		Research []models.RelatedPost   `json:"related_research"`
	}{Story: story.ClassifiedStory, Research: story.RelatedPosts}

	prompt, err := json.Marshal(payload)
	if err != nil {
		return nil, models.NewInternalError("JUDGE_ENCODE_FAILED", "failed to encode judge prompt").WithCause(err)
	}

	raw, err := s.generate(ctx, PromptJudgeStory, string(prompt))
	if err != nil {
		s.logger.LogService("model", "judge_story", time.Since(startTime), map[string]any{
			"title": story.Title,
		}, err)
		return nil, err
	}

	var analyzed models.AnalyzedStory
	if err := json.Unmarshal([]byte(stripJSONFences(raw)), &analyzed); err != nil {
		return nil, models.NewExternalError("JUDGE_INVALID_RESPONSE", "model returned unparseable analysis").WithCause(err)
	}

	if analyzed.Title == "" || len(analyzed.Suggestions) == 0 {
		return nil, models.NewExternalError("JUDGE_EMPTY_RESPONSE", "model returned analysis with no suggestions")
	}

	s.logger.LogService("model", "judge_story", time.Since(startTime), map[string]any{
		"title":       analyzed.Title,
		"suggestions": len(analyzed.Suggestions),
	}, nil)

	return &analyzed, nil
}

func (s *ModelService) generate(ctx context.Context, templateName, prompt string) (string, error) {
	template, ok := s.prompts[templateName]
	if !ok {
		return "", models.NewInternalError("UNKNOWN_PROMPT", fmt.Sprintf("no prompt template registered for %q", templateName))
	}

	operation := func() (string, error) {
		text, err := s.makeGenerationRequest(ctx, template, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return "", backoff.Permanent(err)
			}
			return "", err
		}
		return text, nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 500 * time.Millisecond

	text, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(s.config.MaxRetries)),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", models.NewTimeoutError("MODEL_TIMEOUT", "content generation timed out").WithCause(err)
		}
		return "", models.WrapExternalError("MODEL", err)
	}

	return text, nil
}

func (s *ModelService) makeGenerationRequest(ctx context.Context, template promptTemplate, prompt string) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(template.system, genai.RoleUser),
		MaxOutputTokens:   int32(s.config.MaxTokens),
		ResponseMIMEType:  "application/json",
	}

	if template.temperature != nil {
		genConfig.Temperature = template.temperature
	}

	result, err := s.client.Models.GenerateContent(genCtx, s.config.Model, genai.Text(prompt), genConfig)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}

	if len(result.Candidates) == 0 {
		return "", errors.New("no response candidates generated")
	}

	candidate := result.Candidates[0]

	text := ""
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			text += part.Text
		}
	}

	if text == "" {
		return "", errors.New("empty response from model")
	}

	return text, nil
}

// stripJSONFences tolerates models that wrap JSON output in markdown code
// fences despite instructions not to.
func stripJSONFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	}
	return strings.TrimSpace(trimmed)
}

func (s *ModelService) HealthCheck(ctx context.Context) error {
	genCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	result, err := s.client.Models.GenerateContent(genCtx, s.config.Model, genai.Text("ping"), nil)
	if err != nil {
		return fmt.Errorf("model unreachable: %w", err)
	}
	if len(result.Candidates) == 0 {
		return errors.New("model returned no candidates")
	}
	return nil
}

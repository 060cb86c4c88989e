package services

import (
	"strings"
	"testing"

	"trendscope-pipeline/internal/models"
)

func sampleStories() []models.AnalyzedStory {
	return []models.AnalyzedStory{
		{
			Title:   "Inflation eases for third straight month",
			Summary: "Consumer prices rose at the slowest pace in two years.",
			Source:  "https://www.example.com/news/inflation",
			Suggestions: []models.StoryAngle{
				{
					Headline: "What cooling prices mean for household budgets",
					Angle:    "Pair the CPI release with our household finances survey.",
					Links: []models.ReportLink{
						{Title: "Household Finances 2026", URL: "https://research.example.org/household-finances"},
					},
				},
				{
					Headline: "Generational views on the economy",
					Angle:    "Contrast boomer and gen-z sentiment using the tracker.",
					Links: []models.ReportLink{
						{Title: "Economic Sentiment Tracker", URL: "https://research.example.org/sentiment"},
						{Title: "Generations and Money", URL: "https://research.example.org/generations"},
					},
				},
			},
		},
		{
			Title:   "New satellite constellation launches",
			Summary: "A private operator put sixty satellites in orbit overnight.",
			Source:  "https://example.com/news/satellites",
			Suggestions: []models.StoryAngle{
				{
					Headline: "Public attitudes toward space commercialization",
					Angle:    "Revisit the space policy survey.",
					Links: []models.ReportLink{
						{Title: "Space Policy Survey", URL: "https://research.example.org/space"},
					},
				},
				{
					Headline: "Who trusts private spaceflight",
					Angle:    "Cross-tab trust by political leaning.",
					Links:    nil,
				},
			},
		},
	}
}

func TestFormatMarkdownEmpty(t *testing.T) {
	got := FormatMarkdown(nil)
	if got != "No trending news analysis available." {
		t.Errorf("Unexpected empty-result text: %q", got)
	}
}

func TestFormatMarkdownStructure(t *testing.T) {
	stories := sampleStories()
	md := FormatMarkdown(stories)

	// Every title appears as a bolded subhead.
	for _, story := range stories {
		if !strings.Contains(md, "## **"+story.Title+"**") {
			t.Errorf("Missing subhead for %q", story.Title)
		}
	}

	// Summary is italicized with a trailing source link.
	if !strings.Contains(md, "*Consumer prices rose at the slowest pace in two years. [Source](https://www.example.com/news/inflation)*") {
		t.Error("Missing italic summary with source link")
	}

	// Angle bullets are numbered per story.
	if !strings.Contains(md, "• **HEADLINE 1:** What cooling prices mean for household budgets") {
		t.Error("Missing first headline bullet")
	}
	if !strings.Contains(md, "  - **ANGLE 2:** Contrast boomer and gen-z sentiment using the tracker.") {
		t.Error("Missing second angle sub-bullet")
	}

	// Report links render as numbered markdown links.
	if !strings.Contains(md, "  - **REPORT LINK 2:** [Generations and Money](https://research.example.org/generations)") {
		t.Error("Missing second report link")
	}

	// A separator follows every story, including the last.
	if got := strings.Count(md, "---\n"); got != len(stories) {
		t.Errorf("Expected %d separators, got %d", len(stories), got)
	}
}

func TestFormatMarkdownRoundTrip(t *testing.T) {
	stories := sampleStories()
	md := FormatMarkdown(stories)

	// Everything needed to reconstruct the report survives formatting:
	// titles, summaries, headlines, and every link pair.
	for _, story := range stories {
		if !strings.Contains(md, story.Title) {
			t.Errorf("Lost title %q", story.Title)
		}
		if !strings.Contains(md, story.Summary) {
			t.Errorf("Lost summary for %q", story.Title)
		}
		for _, suggestion := range story.Suggestions {
			if !strings.Contains(md, suggestion.Headline) {
				t.Errorf("Lost headline %q", suggestion.Headline)
			}
			for _, link := range suggestion.Links {
				if !strings.Contains(md, "["+link.Title+"]("+link.URL+")") {
					t.Errorf("Lost link %q -> %q", link.Title, link.URL)
				}
			}
		}
	}
}

func TestNumberEmoji(t *testing.T) {
	if got := numberEmoji(1); got != "1️⃣" {
		t.Errorf("Expected 1️⃣, got %q", got)
	}
	if got := numberEmoji(10); got != "🔟" {
		t.Errorf("Expected 🔟, got %q", got)
	}
	if got := numberEmoji(11); got != "11." {
		t.Errorf("Expected plain fallback for 11, got %q", got)
	}
	if got := numberEmoji(0); got != "0." {
		t.Errorf("Expected plain fallback for 0, got %q", got)
	}
}

func TestFormatStorySummary(t *testing.T) {
	story := sampleStories()[0]
	payload := FormatStorySummary(story, 0)

	if len(payload.Blocks) != 2 {
		t.Fatalf("Expected 2 blocks, got %d", len(payload.Blocks))
	}
	if !strings.HasPrefix(payload.Text, "1️⃣ ") {
		t.Errorf("Expected numbered fallback text, got %q", payload.Text)
	}

	section := payload.Blocks[0]["text"].(map[string]any)["text"].(string)
	if !strings.Contains(section, "<"+story.Source+"|*"+story.Title+"*>") {
		t.Errorf("Expected linked title in section, got %q", section)
	}

	// Without a source the title renders unlinked.
	story.Source = ""
	payload = FormatStorySummary(story, 1)
	section = payload.Blocks[0]["text"].(map[string]any)["text"].(string)
	if strings.Contains(section, "<") {
		t.Errorf("Expected plain title without source, got %q", section)
	}
	if !strings.HasPrefix(section, "2️⃣ ") {
		t.Errorf("Expected second story numbering, got %q", section)
	}
}

func TestFormatStoryThread(t *testing.T) {
	story := sampleStories()[0]
	payload := FormatStoryThread(story, 0)

	var texts []string
	for _, block := range payload.Blocks {
		if text, ok := block["text"].(map[string]any); ok {
			texts = append(texts, text["text"].(string))
		}
		if elements, ok := block["elements"].([]map[string]any); ok {
			for _, el := range elements {
				texts = append(texts, el["text"].(string))
			}
		}
	}
	joined := strings.Join(texts, "\n")

	if !strings.Contains(joined, "*📝 Summary* "+story.Summary) {
		t.Error("Missing summary section")
	}
	if !strings.Contains(joined, "🔗 *Source:* <"+story.Source+"|example.com>") {
		t.Error("Expected source context with www-stripped domain")
	}
	if !strings.Contains(joined, "→ *Angle 1:*") || !strings.Contains(joined, "→ *Angle 2:*") {
		t.Error("Expected numbered angles when more than one suggestion")
	}
	if !strings.Contains(joined, "*📊 Related Research:*") {
		t.Error("Missing related research context")
	}

	// One divider between the two suggestions, none trailing.
	dividers := 0
	for _, block := range payload.Blocks {
		if block["type"] == "divider" {
			dividers++
		}
	}
	if dividers != 1 {
		t.Errorf("Expected exactly 1 divider, got %d", dividers)
	}
}

func TestCleanText(t *testing.T) {
	got := cleanText(`Breaking:\n  markets   rally\t today `)
	if got != "Breaking: markets rally today" {
		t.Errorf("Unexpected cleaned text: %q", got)
	}
	if cleanText("") != "" {
		t.Error("Empty input should stay empty")
	}
}

func TestExtractDomain(t *testing.T) {
	cases := map[string]string{
		"https://www.example.com/news/1": "example.com",
		"https://research.example.org/x": "research.example.org",
		"not a url":                      "not a url",
	}
	for input, want := range cases {
		if got := extractDomain(input); got != want {
			t.Errorf("extractDomain(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFormatAggregatedFallback(t *testing.T) {
	req := models.AnalysisRequest{Category: "business", Total: 5}
	reqCtx := models.RequestContext{UserName: "reporter"}

	payload := FormatAggregatedFallback(sampleStories(), req, reqCtx)

	if payload.ResponseType != "in_channel" {
		t.Errorf("Expected in_channel fallback, got %q", payload.ResponseType)
	}
	if payload.Blocks[0]["type"] != "header" {
		t.Error("Expected header block first")
	}

	// Report content rides inside section blocks after the divider.
	var combined strings.Builder
	for _, block := range payload.Blocks {
		if text, ok := block["text"].(map[string]any); ok {
			if s, ok := text["text"].(string); ok {
				combined.WriteString(s)
				combined.WriteString("\n")
			}
		}
	}
	if !strings.Contains(combined.String(), "Inflation eases for third straight month") {
		t.Error("Expected story content in fallback blocks")
	}
}

func TestFormatErrorPayload(t *testing.T) {
	payload := FormatErrorPayload("no trending news available", models.AnalysisRequest{Category: "science", Total: 3}, models.RequestContext{UserName: "reporter"})

	if payload.ResponseType != "ephemeral" {
		t.Errorf("Expected ephemeral error payload, got %q", payload.ResponseType)
	}

	section := payload.Blocks[1]["text"].(map[string]any)["text"].(string)
	if !strings.Contains(section, "```no trending news available```") {
		t.Errorf("Expected fenced error message, got %q", section)
	}
	if !strings.Contains(section, "reporter") {
		t.Error("Expected requester name in error payload")
	}
}

func TestSplitMarkdownContent(t *testing.T) {
	section := strings.Repeat("a", 1200)
	content := section + "\n\n" + section + "\n\n" + section

	chunks := splitMarkdownContent(content, 3000)
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 3000 {
			t.Errorf("Chunk %d exceeds limit: %d chars", i, len(chunk))
		}
	}

	single := splitMarkdownContent("short", 3000)
	if len(single) != 1 || single[0] != "short" {
		t.Errorf("Expected short content untouched, got %v", single)
	}
}

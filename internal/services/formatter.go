package services

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"trendscope-pipeline/internal/models"
)

// Block is one Slack Block Kit element. Blocks are heterogeneous maps on
// the wire, so we build them with the helpers below rather than one
// struct per block type.
type Block map[string]any

// MessagePayload is a renderable Slack message: blocks plus the plain
// fallback text shown in notifications.
type MessagePayload struct {
	Blocks []Block `json:"blocks"`
	Text   string  `json:"text"`
}

// CallbackPayload is the body posted to a Slack response URL.
type CallbackPayload struct {
	ResponseType string  `json:"response_type"`
	Text         string  `json:"text,omitempty"`
	Blocks       []Block `json:"blocks,omitempty"`
}

var numberEmojis = [...]string{"1️⃣", "2️⃣", "3️⃣", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣", "🔟"}

func numberEmoji(n int) string {
	if n >= 1 && n <= len(numberEmojis) {
		return numberEmojis[n-1]
	}
	return fmt.Sprintf("%d.", n)
}

func sectionBlock(text string) Block {
	return Block{
		"type": "section",
		"text": map[string]any{"type": "mrkdwn", "text": text},
	}
}

func contextBlock(text string) Block {
	return Block{
		"type": "context",
		"elements": []map[string]any{
			{"type": "mrkdwn", "text": text},
		},
	}
}

func headerBlock(text string) Block {
	return Block{
		"type": "header",
		"text": map[string]any{"type": "plain_text", "text": text, "emoji": true},
	}
}

func dividerBlock() Block {
	return Block{"type": "divider"}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// cleanText normalizes model output that sneaks literal escape sequences
// or ragged whitespace into display strings.
func cleanText(text string) string {
	if text == "" {
		return text
	}
	replacer := strings.NewReplacer(`\n`, " ", `\r`, " ", `\t`, " ")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(replacer.Replace(text), " "))
}

func extractDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return strings.TrimPrefix(parsed.Host, "www.")
}

// FormatMarkdown renders the full analysis as a markdown report, the
// shape returned for output_format=markdown and used for the aggregated
// delivery fallback.
func FormatMarkdown(stories []models.AnalyzedStory) string {
	if len(stories) == 0 {
		return "No trending news analysis available."
	}

	var b strings.Builder

	for _, story := range stories {
		fmt.Fprintf(&b, "## **%s**\n\n", story.Title)

		sourceText := ""
		if story.Source != "" {
			sourceText = fmt.Sprintf(" [Source](%s)", story.Source)
		}
		fmt.Fprintf(&b, "*%s%s*\n\n", story.Summary, sourceText)

		for i, suggestion := range story.Suggestions {
			fmt.Fprintf(&b, "• **HEADLINE %d:** %s\n", i+1, suggestion.Headline)
			fmt.Fprintf(&b, "  - **ANGLE %d:** %s\n", i+1, suggestion.Angle)
			for j, link := range suggestion.Links {
				fmt.Fprintf(&b, "  - **REPORT LINK %d:** [%s](%s)\n", j+1, link.Title, link.URL)
			}
			b.WriteString("\n")
		}

		b.WriteString("---\n\n")
	}

	return b.String()
}

// FormatJSON renders the analysis as a JSON document.
func FormatJSON(stories []models.AnalyzedStory) (string, error) {
	encoded, err := json.Marshal(stories)
	if err != nil {
		return "", models.NewInternalError("RESULT_ENCODE_FAILED", "failed to encode analysis result").WithCause(err)
	}
	return string(encoded), nil
}

// FormatStorySummary builds the channel message announcing one story:
// numbered title (linked when the source is known) and a prompt to open
// the thread.
func FormatStorySummary(story models.AnalyzedStory, index int) MessagePayload {
	number := numberEmoji(index + 1)
	title := cleanText(story.Title)
	if title == "" {
		title = "Untitled"
	}

	var headline string
	if story.Source != "" {
		headline = fmt.Sprintf("%s <%s|*%s*>", number, story.Source, title)
	} else {
		headline = fmt.Sprintf("%s *%s*", number, title)
	}

	return MessagePayload{
		Blocks: []Block{
			sectionBlock(headline),
			contextBlock("👇 _Click thread below for full trending news analysis_"),
		},
		Text: fmt.Sprintf("%s %s", number, title),
	}
}

// FormatStoryThread builds the threaded reply carrying the full analysis
// of one story.
func FormatStoryThread(story models.AnalyzedStory, index int) MessagePayload {
	number := numberEmoji(index + 1)
	title := cleanText(story.Title)
	summary := cleanText(story.Summary)

	blocks := []Block{
		sectionBlock(fmt.Sprintf("%s *%s*", number, title)),
	}

	if summary != "" {
		blocks = append(blocks, sectionBlock(fmt.Sprintf("*📝 Summary* %s", summary)))
	}

	if story.Source != "" {
		blocks = append(blocks, contextBlock(fmt.Sprintf("🔗 *Source:* <%s|%s>", story.Source, extractDomain(story.Source))))
	}

	if len(story.Suggestions) > 0 {
		blocks = append(blocks, sectionBlock("*💡 Story Angles:*"))

		for i, suggestion := range story.Suggestions {
			headline := cleanText(suggestion.Headline)
			if headline == "" {
				continue
			}

			arrow := "→"
			if len(story.Suggestions) > 1 {
				arrow = fmt.Sprintf("→ *Angle %d:*", i+1)
			}
			blocks = append(blocks, sectionBlock(fmt.Sprintf("%s\n_%s_", arrow, headline)))

			if angle := cleanText(suggestion.Angle); angle != "" {
				blocks = append(blocks, sectionBlock(fmt.Sprintf("*How to use:* %s", angle)))
			}

			var linkLines []string
			for _, link := range suggestion.Links {
				if link.URL != "" && link.Title != "" {
					linkLines = append(linkLines, fmt.Sprintf("• <%s|%s>", link.URL, link.Title))
				}
			}
			if len(linkLines) > 0 {
				blocks = append(blocks, contextBlock("*📊 Related Research:*\n"+strings.Join(linkLines, "\n")))
			}

			if i < len(story.Suggestions)-1 {
				blocks = append(blocks, dividerBlock())
			}
		}
	}

	return MessagePayload{
		Blocks: blocks,
		Text:   fmt.Sprintf("%s %s", number, title),
	}
}

// FormatCompletionNotice builds the channel message pointing the
// requesting user at the finished analysis.
func FormatCompletionNotice(userName string) MessagePayload {
	text := fmt.Sprintf("👋 <@%s>, your trending news analysis is ready for review 👆", userName)
	return MessagePayload{
		Blocks: []Block{sectionBlock(text)},
		Text:   text,
	}
}

// FormatAggregatedFallback builds the single response-URL payload used
// when no channel message could be posted. The whole report rides in one
// message, chunked to stay under Slack's per-block text limit.
func FormatAggregatedFallback(stories []models.AnalyzedStory, req models.AnalysisRequest, reqCtx models.RequestContext) CallbackPayload {
	blocks := []Block{
		headerBlock("📰 Trending News Analysis Complete"),
		Block{
			"type": "section",
			"fields": []map[string]any{
				{"type": "mrkdwn", "text": fmt.Sprintf("*Requested by:*\n%s", reqCtx.UserName)},
				{"type": "mrkdwn", "text": fmt.Sprintf("*Category:*\n%s", req.Category)},
				{"type": "mrkdwn", "text": fmt.Sprintf("*Total:*\n%d", req.Total)},
				{"type": "mrkdwn", "text": fmt.Sprintf("*Date:*\n%s", time.Now().UTC().Format("2006-01-02 15:04:05"))},
			},
		},
		dividerBlock(),
	}

	for _, chunk := range splitMarkdownContent(FormatMarkdown(stories), maxBlockTextLength) {
		blocks = append(blocks, sectionBlock(chunk))
	}

	return CallbackPayload{
		ResponseType: "in_channel",
		Blocks:       blocks,
	}
}

// FormatErrorPayload builds the ephemeral response-URL payload for a
// failed analysis.
func FormatErrorPayload(errorMessage string, req models.AnalysisRequest, reqCtx models.RequestContext) CallbackPayload {
	params, _ := json.Marshal(req)

	return CallbackPayload{
		ResponseType: "ephemeral",
		Blocks: []Block{
			headerBlock("❌ Analysis Failed"),
			sectionBlock(fmt.Sprintf("*Error:*\n```%s```\n\n*Requested by:* %s\n*Parameters:* %s", errorMessage, reqCtx.UserName, string(params))),
			contextBlock("💡 *Troubleshooting tips:*\n• Check your category name\n• Verify date format (YYYY-MM-DD)\n• Ensure article count is between 1-100\n• Try again in a few moments"),
		},
	}
}

// Slack rejects section text over 3000 characters.
const maxBlockTextLength = 3000

func splitMarkdownContent(content string, maxLength int) []string {
	var chunks []string
	current := ""

	for _, section := range strings.Split(content, "\n\n") {
		if len(current)+len(section)+2 > maxLength {
			if current != "" {
				chunks = append(chunks, strings.TrimSpace(current))
				current = ""
			}

			if len(section) > maxLength {
				chunks = append(chunks, section[:maxLength-20]+"... [continued]")
				current = "[continued] " + section[maxLength-20:]
			} else {
				current = section
			}
		} else {
			if current == "" {
				current = section
			} else {
				current += "\n\n" + section
			}
		}
	}

	if current != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}

	return chunks
}

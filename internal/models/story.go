package models

import "time"

// NewsItem is one article returned by the news source. Read-only after
// the fetch stage.
type NewsItem struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"publishedAt"`
}

// CategoryRef is one taxonomy entry from the topic dictionary.
type CategoryRef struct {
	Name   string `json:"name"`
	TermID int    `json:"term_id"`
}

// ClassifiedStory is a news item with the taxonomy entries the model
// assigned to it. Zero categories is allowed; such a story will simply
// match no related content.
type ClassifiedStory struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Date        string        `json:"date,omitempty"`
	URL         string        `json:"url"`
	Categories  []CategoryRef `json:"categories"`
}

// CategoryIDs returns the story's category term ids, deduplicated.
func (s ClassifiedStory) CategoryIDs() []int {
	seen := make(map[int]bool, len(s.Categories))
	ids := make([]int, 0, len(s.Categories))
	for _, c := range s.Categories {
		if !seen[c.TermID] {
			seen[c.TermID] = true
			ids = append(ids, c.TermID)
		}
	}
	return ids
}

// RelatedPost is one internally published item sharing a category with a
// news story.
type RelatedPost struct {
	Title   string `json:"title"`
	Date    string `json:"date"`
	URL     string `json:"url"`
	Excerpt string `json:"excerpt"`
}

// EnrichedStory pairs a classified story with its related internal
// content. Stories with no related posts are dropped before judgement:
// every EnrichedStory handed to the judge has at least one related post.
type EnrichedStory struct {
	ClassifiedStory
	RelatedPosts []RelatedPost `json:"related_posts"`
}

// StoryAngle is one suggested editorial framing connecting a news item
// to existing internal research.
type StoryAngle struct {
	Headline string       `json:"headline"`
	Angle    string       `json:"angle"`
	Links    []ReportLink `json:"links"`
}

type ReportLink struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// AnalyzedStory is the unit of delivery: one judged story with its
// suggested angles. The judge is asked for exactly two angles but the
// rest of the system tolerates fewer or more.
type AnalyzedStory struct {
	Title       string       `json:"title"`
	Summary     string       `json:"summary"`
	Source      string       `json:"source"`
	Suggestions []StoryAngle `json:"suggestions"`
}

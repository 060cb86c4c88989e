package models

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultCategory = "nation"
	DefaultTotal    = 5

	// Free-text commands are truncated before parsing to bound the
	// work the tokenizer can be asked to do.
	MaxCommandTextLength = 1000

	MinTotal = 1
	MaxTotal = 100

	FormatMarkdown = "markdown"
	FormatJSON     = "json"

	// The only host a callback URL may point at.
	CallbackHost = "hooks.slack.com"
)

var (
	userIDPattern    = regexp.MustCompile(`^[UW][A-Z0-9]{8,}$`)
	channelIDPattern = regexp.MustCompile(`^[CDG][A-Z0-9]{8,}$`)
	keyTokenPattern  = regexp.MustCompile(`^(\w+):(.*)$`)
)

// AnalysisRequest is the parameter set for one trending-news analysis.
// It is immutable once a job has been scheduled.
type AnalysisRequest struct {
	Category     string `json:"category"`
	Total        int    `json:"total"`
	From         string `json:"from"`
	To           string `json:"to"`
	Query        string `json:"query"`
	OutputFormat string `json:"output_format"`
}

// RequestContext identifies who asked and where results go. It lives only
// for the duration of the job.
type RequestContext struct {
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`
	ChannelID   string `json:"channel_id"`
	CallbackURL string `json:"callback_url"`
}

func DefaultAnalysisRequest() AnalysisRequest {
	return AnalysisRequest{
		Category:     DefaultCategory,
		Total:        DefaultTotal,
		OutputFormat: FormatMarkdown,
	}
}

// ParseCommandText extracts key:value tokens from slash-command free text.
// Values may span multiple words; a new pair starts at the next word:
// token. Unknown keys are ignored.
func ParseCommandText(text string) AnalysisRequest {
	req := DefaultAnalysisRequest()

	text = strings.TrimSpace(text)
	if text == "" {
		return req
	}
	if len(text) > MaxCommandTextLength {
		text = text[:MaxCommandTextLength]
	}

	var key string
	var value []string
	flush := func() {
		if key != "" {
			req.apply(key, strings.Join(value, " "))
		}
		key = ""
		value = nil
	}

	for _, word := range strings.Fields(text) {
		if m := keyTokenPattern.FindStringSubmatch(word); m != nil {
			flush()
			key = m[1]
			if m[2] != "" {
				value = append(value, m[2])
			}
			continue
		}
		if key != "" {
			value = append(value, word)
		}
	}
	flush()

	return req
}

func (r *AnalysisRequest) apply(key, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}

	switch key {
	case "category":
		r.Category = value
	case "total", "articles", "number":
		r.Total = ClampTotal(value)
	case "from":
		r.From = value
	case "to":
		r.To = value
	case "query", "search":
		r.Query = value
	case "format":
		if value == FormatJSON || value == FormatMarkdown {
			r.OutputFormat = value
		}
	}
}

// ClampTotal converts a raw total value into the [1,100] range. Values
// that do not parse as an integer fall back to the default.
func ClampTotal(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultTotal
	}
	if n < MinTotal {
		return MinTotal
	}
	if n > MaxTotal {
		return MaxTotal
	}
	return n
}

// DateRange resolves the request's date window, defaulting to
// yesterday→today in UTC when unset.
func (r AnalysisRequest) DateRange(now time.Time) (string, string) {
	from := r.From
	if from == "" {
		from = now.UTC().AddDate(0, 0, -1).Format("2006-01-02")
	}
	to := r.To
	if to == "" {
		to = now.UTC().Format("2006-01-02")
	}
	return from, to
}

func ValidUserID(id string) bool {
	return userIDPattern.MatchString(id)
}

func ValidChannelID(id string) bool {
	return channelIDPattern.MatchString(id)
}

// ValidCallbackURL reports whether the callback target is an HTTPS URL on
// the platform's webhook host. Anything else must not be trusted as a
// delivery target.
func ValidCallbackURL(raw string) bool {
	if raw == "" {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return parsed.Scheme == "https" && parsed.Host == CallbackHost
}

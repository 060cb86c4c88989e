package models

import (
	"strings"
	"testing"
	"time"
)

func TestParseCommandTextDefaults(t *testing.T) {
	req := ParseCommandText("")

	if req.Category != DefaultCategory {
		t.Errorf("Expected default category %q, got %q", DefaultCategory, req.Category)
	}
	if req.Total != DefaultTotal {
		t.Errorf("Expected default total %d, got %d", DefaultTotal, req.Total)
	}
	if req.OutputFormat != FormatMarkdown {
		t.Errorf("Expected default format %q, got %q", FormatMarkdown, req.OutputFormat)
	}
}

func TestParseCommandTextAllKeys(t *testing.T) {
	req := ParseCommandText("category:technology total:10 from:2026-08-01 to:2026-08-30 query:artificial intelligence format:json")

	if req.Category != "technology" {
		t.Errorf("Expected category technology, got %q", req.Category)
	}
	if req.Total != 10 {
		t.Errorf("Expected total 10, got %d", req.Total)
	}
	if req.From != "2026-08-01" {
		t.Errorf("Expected from 2026-08-01, got %q", req.From)
	}
	if req.To != "2026-08-30" {
		t.Errorf("Expected to 2026-08-30, got %q", req.To)
	}
	if req.Query != "artificial intelligence" {
		t.Errorf("Expected multi-word query, got %q", req.Query)
	}
	if req.OutputFormat != FormatJSON {
		t.Errorf("Expected json format, got %q", req.OutputFormat)
	}
}

func TestParseCommandTextAliases(t *testing.T) {
	req := ParseCommandText("articles:7 search:climate change")
	if req.Total != 7 {
		t.Errorf("Expected articles alias to set total, got %d", req.Total)
	}
	if req.Query != "climate change" {
		t.Errorf("Expected search alias to set query, got %q", req.Query)
	}

	req = ParseCommandText("number:3")
	if req.Total != 3 {
		t.Errorf("Expected number alias to set total, got %d", req.Total)
	}
}

func TestParseCommandTextIgnoresUnknownKeysAndLooseWords(t *testing.T) {
	req := ParseCommandText("hello there category:science banana:yes")

	if req.Category != "science" {
		t.Errorf("Expected category science, got %q", req.Category)
	}
	if req.Total != DefaultTotal {
		t.Errorf("Unknown key should not change total, got %d", req.Total)
	}
}

func TestParseCommandTextInvalidFormatIgnored(t *testing.T) {
	req := ParseCommandText("format:xml")
	if req.OutputFormat != FormatMarkdown {
		t.Errorf("Invalid format should keep default, got %q", req.OutputFormat)
	}
}

func TestParseCommandTextTruncation(t *testing.T) {
	filler := strings.Repeat("x", MaxCommandTextLength-5)

	req := ParseCommandText(filler + " total:9")
	if req.Total != DefaultTotal {
		t.Errorf("Total beyond truncation point should be ignored, got %d", req.Total)
	}

	// Same tail within the limit parses normally.
	req = ParseCommandText("xxx total:9")
	if req.Total != 9 {
		t.Errorf("Expected total 9 within limit, got %d", req.Total)
	}
}

func TestClampTotal(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{"5", 5},
		{"1", 1},
		{"100", 100},
		{"0", 1},
		{"-3", 1},
		{"101", 100},
		{"950", 100},
		{"abc", DefaultTotal},
		{"", DefaultTotal},
		{"4.5", DefaultTotal},
	}

	for _, tc := range cases {
		if got := ClampTotal(tc.raw); got != tc.want {
			t.Errorf("ClampTotal(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}

func TestDateRangeDefaults(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	from, to := AnalysisRequest{}.DateRange(now)
	if from != "2026-08-30" {
		t.Errorf("Expected from yesterday, got %q", from)
	}
	if to != "2026-08-31" {
		t.Errorf("Expected to today, got %q", to)
	}

	from, to = AnalysisRequest{From: "2026-01-01", To: "2026-01-15"}.DateRange(now)
	if from != "2026-01-01" || to != "2026-01-15" {
		t.Errorf("Explicit dates should win, got %q..%q", from, to)
	}
}

func TestValidUserID(t *testing.T) {
	valid := []string{"U12345678", "W12345678", "U1234567890AB"}
	for _, id := range valid {
		if !ValidUserID(id) {
			t.Errorf("Expected %q to be valid", id)
		}
	}

	invalid := []string{"", "X12345678", "U1234567", "u12345678", "U1234567a"}
	for _, id := range invalid {
		if ValidUserID(id) {
			t.Errorf("Expected %q to be invalid", id)
		}
	}
}

func TestValidChannelID(t *testing.T) {
	valid := []string{"C12345678", "D12345678", "G12345678"}
	for _, id := range valid {
		if !ValidChannelID(id) {
			t.Errorf("Expected %q to be valid", id)
		}
	}

	invalid := []string{"", "U12345678", "C1234567"}
	for _, id := range invalid {
		if ValidChannelID(id) {
			t.Errorf("Expected %q to be invalid", id)
		}
	}
}

func TestValidCallbackURL(t *testing.T) {
	if !ValidCallbackURL("https://hooks.slack.com/commands/T123/456/abc") {
		t.Error("Expected official webhook URL to be valid")
	}

	invalid := []string{
		"",
		"http://hooks.slack.com/commands/T123",
		"https://evil.example.com/commands",
		"https://hooks.slack.com.evil.example.com/x",
	}
	for _, raw := range invalid {
		if ValidCallbackURL(raw) {
			t.Errorf("Expected %q to be invalid", raw)
		}
	}
}

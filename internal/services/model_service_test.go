package services

import (
	"testing"

	"trendscope-pipeline/internal/config"
)

func TestModelServiceMissingAPIKey(t *testing.T) {
	_, err := NewModelService(config.ModelConfig{}, testLogger(t))
	if err == nil {
		t.Error("Expected error for missing API key")
	}
}

func TestStripJSONFences(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"plain json", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n[1,2]\n```", `[1,2]`},
		{"surrounding whitespace", "  \n{\"a\":1}\n  ", `{"a":1}`},
		{"fence with whitespace", "\n```json\n  {\"a\":1}  \n```\n", `{"a":1}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := stripJSONFences(tc.input); got != tc.want {
				t.Errorf("stripJSONFences(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

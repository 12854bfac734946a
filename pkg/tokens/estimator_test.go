package tokens

import (
	"strings"
	"testing"

	"mercator-hq/relay/pkg/providers"
)

func TestHeuristicText(t *testing.T) {
	tests := []struct {
		name   string
		ratios map[string]float64
		model  string
		text   string
		want   int
	}{
		{
			name: "empty text",
			text: "",
			want: 0,
		},
		{
			name: "short text rounds up to one",
			text: "hi",
			want: 1,
		},
		{
			name: "default ratio",
			text: strings.Repeat("a", 400),
			want: 100,
		},
		{
			name:   "exact model ratio",
			ratios: map[string]float64{"dense-model": 2.0},
			model:  "dense-model",
			text:   strings.Repeat("a", 400),
			want:   200,
		},
		{
			name:   "prefix match",
			ratios: map[string]float64{"gpt-4": 2.0},
			model:  "gpt-4-0613",
			text:   strings.Repeat("a", 400),
			want:   200,
		},
		{
			name:   "unknown model falls back to default",
			ratios: map[string]float64{"gpt-4": 2.0},
			model:  "claude-x",
			text:   strings.Repeat("a", 400),
			want:   100,
		},
		{
			name:   "zero ratio ignored",
			ratios: map[string]float64{"broken": 0},
			model:  "broken",
			text:   strings.Repeat("a", 400),
			want:   100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewHeuristic(tt.ratios).Text(tt.model, tt.text)
			if got != tt.want {
				t.Errorf("Text() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHeuristicMessages(t *testing.T) {
	est := NewHeuristic(nil)

	messages := []providers.Message{
		{Role: "system", Content: strings.Repeat("a", 40)},
		{Role: "user", Content: strings.Repeat("b", 40), Name: "cred"},
	}

	// 10 tokens per 40-char content, 1 for the name, 4 overhead each.
	want := 10 + 4 + 10 + 1 + 4
	if got := est.Messages("any", messages); got != want {
		t.Errorf("Messages() = %d, want %d", got, want)
	}

	if got := est.Messages("any", nil); got != 0 {
		t.Errorf("Messages(nil) = %d, want 0", got)
	}
}

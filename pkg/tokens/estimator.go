package tokens

import (
	"strings"

	"mercator-hq/relay/pkg/providers"
)

// DefaultCharsPerToken is the fallback characters-per-token ratio used
// when no model-specific ratio is configured. Four characters per token
// is a reasonable average for English text under common tokenizers.
const DefaultCharsPerToken = 4.0

// messageOverhead covers role markers and message framing tokens.
const messageOverhead = 4

// Estimator approximates token counts for text a backend did not meter.
type Estimator interface {
	// Text estimates the token count of a single text string.
	Text(model, text string) int

	// Messages estimates the prompt token count of a conversation,
	// including per-message framing overhead.
	Messages(model string, messages []providers.Message) int
}

// Heuristic is a character-ratio estimator. Ratios map a model id or a
// model id prefix to its characters-per-token ratio.
type Heuristic struct {
	ratios map[string]float64
}

// NewHeuristic creates a character-ratio estimator. A nil or empty
// ratios map falls back to DefaultCharsPerToken for every model.
func NewHeuristic(ratios map[string]float64) *Heuristic {
	return &Heuristic{ratios: ratios}
}

// Text implements Estimator.
func (h *Heuristic) Text(model, text string) int {
	if text == "" {
		return 0
	}

	estimated := float64(len(text)) / h.charsPerToken(model)
	if estimated < 1.0 {
		return 1
	}
	return int(estimated + 0.5)
}

// Messages implements Estimator.
func (h *Heuristic) Messages(model string, messages []providers.Message) int {
	total := 0
	for _, msg := range messages {
		total += h.Text(model, msg.Content)
		if msg.Name != "" {
			total += h.Text(model, msg.Name)
		}
		total += messageOverhead
	}
	return total
}

// charsPerToken resolves the ratio for a model: exact match first, then
// prefix match ("gpt-4" covers "gpt-4-0613"), then the default.
func (h *Heuristic) charsPerToken(model string) float64 {
	if ratio, ok := h.ratios[model]; ok && ratio > 0 {
		return ratio
	}
	for pattern, ratio := range h.ratios {
		if ratio > 0 && strings.HasPrefix(model, pattern) {
			return ratio
		}
	}
	return DefaultCharsPerToken
}

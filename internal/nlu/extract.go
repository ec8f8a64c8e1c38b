package nlu

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/MikeSquared-Agency/hearth/internal/survey"
)

// The model is instructed to wrap each appliance payload between these
// markers. A reply may carry several blocks, one per appliance.
var (
	blockRe    = regexp.MustCompile(`(?s)\[JSON_DATA_START\](.*?)\[JSON_DATA_END\]`)
	fenceRe    = regexp.MustCompile("(?s)^```(?:json)?\\s*|\\s*```$")
	trailingRe = regexp.MustCompile(`,\s*([}\]])`)
	pyTrueRe   = regexp.MustCompile(`(:\s*)True\b`)
	pyFalseRe  = regexp.MustCompile(`(:\s*)False\b`)
)

// Extraction is the parsed result of one reply: the candidates that could
// be decoded and the problems with blocks that could not.
type Extraction struct {
	Candidates []survey.Candidate
	Raw        []json.RawMessage
	Problems   []error
}

// Extract pulls every JSON block out of the reply text. Blocks that fail
// to decode are collected as problems rather than aborting the turn; each
// good block still yields a candidate.
func Extract(text string) Extraction {
	var out Extraction
	for i, match := range blockRe.FindAllStringSubmatch(text, -1) {
		cleaned := cleanBlock(match[1])
		cand, err := survey.ParseCandidate([]byte(cleaned))
		if err != nil {
			out.Problems = append(out.Problems, fmt.Errorf("block %d: %w", i+1, err))
			continue
		}
		out.Candidates = append(out.Candidates, cand)
		out.Raw = append(out.Raw, json.RawMessage(cleaned))
	}
	return out
}

// cleanBlock undoes the model's common JSON sloppiness: code fences,
// trailing commas, Python boolean literals. Boolean rewriting is anchored
// to the value position after a colon so text inside string values is
// left alone.
func cleanBlock(raw string) string {
	s := strings.TrimSpace(raw)
	s = fenceRe.ReplaceAllString(s, "")
	s = trailingRe.ReplaceAllString(s, "$1")
	s = pyTrueRe.ReplaceAllString(s, "${1}true")
	s = pyFalseRe.ReplaceAllString(s, "${1}false")
	return strings.TrimSpace(s)
}

// Summarize replaces JSON blocks in a past agent reply with short
// bracketed summaries, so replayed history does not re-trigger extraction
// and stays cheap in tokens.
func Summarize(text string) string {
	return strings.TrimSpace(blockRe.ReplaceAllStringFunc(text, func(match string) string {
		sub := blockRe.FindStringSubmatch(match)
		cand, err := survey.ParseCandidate([]byte(cleanBlock(sub[1])))
		if err != nil || cand.Name == "" {
			return "[SAVED: appliance data extracted]"
		}
		parts := []string{cand.Name}
		if cand.Power != nil {
			parts = append(parts, fmt.Sprintf("%dW", *cand.Power))
		}
		if cand.FuncTime != nil {
			parts = append(parts, fmt.Sprintf("%.1fh/day", float64(*cand.FuncTime)/60))
		}
		if cand.Windows[0] != nil {
			parts = append(parts, cand.Windows[0].String())
		}
		if cand.Update {
			parts = append(parts, "UPDATE")
		}
		return "[SAVED: " + strings.Join(parts, ", ") + "]"
	}))
}

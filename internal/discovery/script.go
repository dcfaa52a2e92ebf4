package discovery

import (
	"strings"
	"time"

	"github.com/alanyoungcy/optiprice/internal/domain"
)

// keywordPlaceholder is replaced by the session keyword in step texts.
const keywordPlaceholder = "{keyword}"

// Step is a log line appended at a fixed delay after the simulated path starts.
type Step struct {
	After time.Duration
	Text  string
}

// Script is the timed sequence played back on the simulated path.
type Script struct {
	Steps       []Step
	ResultAfter time.Duration
	Result      domain.MatchResult
}

// DefaultScript returns the stock playback: four lines between 800ms and
// 3.5s, then the canned match at 3.6s.
func DefaultScript() Script {
	sales := int64(1250)
	return Script{
		Steps: []Step{
			{After: 800 * time.Millisecond, Text: "Initializing matching model (paraphrase-multilingual-MiniLM-L12-v2)..."},
			{After: 1500 * time.Millisecond, Text: `Searching for "` + keywordPlaceholder + `"...`},
			{After: 3000 * time.Millisecond, Text: "Analyzing vectors, score 0.96"},
			{After: 3500 * time.Millisecond, Text: "Optimization complete"},
		},
		ResultAfter: 3600 * time.Millisecond,
		Result: domain.MatchResult{
			ID:         "B0SIMULATED",
			Title:      "[SIMULATED] Foldable floor chair, 14-position adjustable backrest",
			Price:      59.99,
			Currency:   "EUR",
			Sales:      &sales,
			Similarity: 0.96,
			MatchType:  "High",
			Features:   "14 positions 90-180 degrees, 48 cm seat depth, 90 kg load, foldable...",
		},
	}
}

// WithDelays returns a copy of s with step and result delays replaced.
// delays must hold one entry per step followed by the result delay; any other
// length leaves s unchanged.
func (s Script) WithDelays(delays []time.Duration) Script {
	if len(delays) != len(s.Steps)+1 {
		return s
	}
	out := s
	out.Steps = make([]Step, len(s.Steps))
	for i, st := range s.Steps {
		out.Steps[i] = Step{After: delays[i], Text: st.Text}
	}
	out.ResultAfter = delays[len(delays)-1]
	return out
}

func (st Step) render(keyword string) string {
	return strings.ReplaceAll(st.Text, keywordPlaceholder, keyword)
}

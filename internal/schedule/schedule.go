// Package schedule analyzes the day's timeline across a session's
// committed appliances, so the interview can steer toward hours no
// appliance covers yet.
package schedule

import (
	"fmt"
	"sort"
	"strings"

	"github.com/MikeSquared-Agency/hearth/internal/survey"
)

const (
	blockMinutes = 30
	blocksPerDay = survey.MinutesPerDay / blockMinutes
	minGap       = 60 // gaps shorter than an hour are not worth asking about
)

// Period is a contiguous stretch of the day covered by at least one
// appliance window.
type Period struct {
	Start      int      `json:"start_minute"`
	End        int      `json:"end_minute"`
	Appliances []string `json:"appliances"`
}

// Gap is an uncovered stretch of the day long enough to ask about.
type Gap struct {
	Start int `json:"start_minute"`
	End   int `json:"end_minute"`
}

// DurationHours returns the gap length in hours.
func (g Gap) DurationHours() float64 {
	return float64(g.End-g.Start) / 60.0
}

// Analysis is the occupied/available breakdown of one session's day.
type Analysis struct {
	Occupied  []Period `json:"occupied"`
	Available []Gap    `json:"available"`
}

// Analyze rasterizes every appliance window onto a 30-minute timeline and
// derives the occupied periods and the gaps of at least an hour.
func Analyze(appliances []survey.Appliance) Analysis {
	type block struct {
		occupied bool
		names    map[string]bool
	}
	timeline := make([]block, blocksPerDay)

	for _, a := range appliances {
		for _, w := range a.Windows {
			start := w.Start / blockMinutes
			end := w.End / blockMinutes
			if end >= blocksPerDay {
				end = blocksPerDay - 1
			}
			for b := start; b <= end; b++ {
				if timeline[b].names == nil {
					timeline[b].names = make(map[string]bool)
				}
				timeline[b].occupied = true
				timeline[b].names[a.Name] = true
			}
		}
	}

	var analysis Analysis
	var current *Period
	for i, b := range timeline {
		if b.occupied {
			if current == nil {
				current = &Period{Start: i * blockMinutes, End: (i + 1) * blockMinutes}
			} else {
				current.End = (i + 1) * blockMinutes
			}
			for name := range b.names {
				if !contains(current.Appliances, name) {
					current.Appliances = append(current.Appliances, name)
				}
			}
		} else if current != nil {
			sort.Strings(current.Appliances)
			analysis.Occupied = append(analysis.Occupied, *current)
			current = nil
		}
	}
	if current != nil {
		sort.Strings(current.Appliances)
		analysis.Occupied = append(analysis.Occupied, *current)
	}

	analysis.Available = gaps(analysis.Occupied)
	return analysis
}

func gaps(occupied []Period) []Gap {
	if len(occupied) == 0 {
		return []Gap{{Start: 0, End: survey.MinutesPerDay}}
	}

	var out []Gap
	if occupied[0].Start >= minGap {
		out = append(out, Gap{Start: 0, End: occupied[0].Start})
	}
	for i := 0; i < len(occupied)-1; i++ {
		start, end := occupied[i].End, occupied[i+1].Start
		if end-start >= minGap {
			out = append(out, Gap{Start: start, End: end})
		}
	}
	if survey.MinutesPerDay-occupied[len(occupied)-1].End >= minGap {
		out = append(out, Gap{Start: occupied[len(occupied)-1].End, End: survey.MinutesPerDay})
	}
	return out
}

// Summary renders the session state for the NLU system prompt: what is
// saved, which hours are covered, and which gaps to ask about next.
func Summary(appliances []survey.Appliance, analysis Analysis) string {
	var b strings.Builder

	if len(appliances) == 0 {
		b.WriteString("No appliances saved yet.\n")
	} else {
		fmt.Fprintf(&b, "%d appliances saved so far:\n", len(appliances))
		shown := appliances
		if len(shown) > 5 {
			shown = shown[len(shown)-5:]
		}
		for _, a := range shown {
			windows := make([]string, len(a.Windows))
			for i, w := range a.Windows {
				windows[i] = w.String()
			}
			fmt.Fprintf(&b, "  - %s (%dx, %dW) used during %s\n", a.Name, a.Number, a.Power, strings.Join(windows, ", "))
		}
	}

	b.WriteString("\nTIME WINDOW STATUS:\n")
	if len(analysis.Occupied) > 0 {
		b.WriteString("Covered periods:\n")
		for i, p := range analysis.Occupied {
			if i == 5 {
				break
			}
			names := p.Appliances
			if len(names) > 3 {
				names = names[:3]
			}
			fmt.Fprintf(&b, "  - %s-%s: %s\n", survey.Clock(p.Start), survey.Clock(p.End), strings.Join(names, ", "))
		}
	}
	if len(analysis.Available) > 0 {
		b.WriteString("Uncovered periods to ask about:\n")
		for i, g := range analysis.Available {
			if i == 3 {
				break
			}
			fmt.Fprintf(&b, "  - %s-%s (%.1fh available)\n", survey.Clock(g.Start), survey.Clock(g.End), g.DurationHours())
		}
	} else {
		b.WriteString("Full 24-hour schedule covered.\n")
	}
	return b.String()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

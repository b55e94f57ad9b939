package music

import (
	"regexp"
	"strings"
	"sync"
)

// Choice is the outcome of a selection: the chosen track and the keyword
// score that chose it (zero when the choice fell back to a mood hint).
type Choice struct {
	Track Track
	Score int
}

var (
	patternMu sync.Mutex
	patterns  = map[string]*regexp.Regexp{}
)

// keywordPattern matches a keyword as a lowercase word prefix: "battle"
// counts "battle", "battles", "battled" but not "embattled".
func keywordPattern(kw string) *regexp.Regexp {
	patternMu.Lock()
	defer patternMu.Unlock()
	if re, ok := patterns[kw]; ok {
		return re
	}
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `[a-z]*\b`)
	patterns[kw] = re
	return re
}

// Score counts keyword occurrences of the track's keywords in the prose.
func Score(prose string, t Track) int {
	text := strings.ToLower(prose)
	total := 0
	for _, kw := range t.Keywords {
		total += len(keywordPattern(kw).FindAllStringIndex(text, -1))
	}
	return total
}

// Select scores the prose against every catalog track and picks the winner.
//
// The keyword winner only displaces the current track when its score clears
// the threshold; on a weak signal the model's mood hint decides instead, and
// only an unmappable hint keeps whatever is already playing. With no current
// track the session needs something, so the best-scoring track wins
// outright, falling back to the hint (then the catalog head) when the prose
// scores zero everywhere. Ties resolve toward the hinted track, then
// catalog order.
func Select(prose, moodHint, currentID string, threshold int) Choice {
	hinted, hintOK := resolveHint(moodHint)

	best := Choice{}
	for _, t := range catalog {
		s := Score(prose, t)
		if s > best.Score {
			best = Choice{Track: t, Score: s}
		} else if s == best.Score && s > 0 && hintOK && t.ID == hinted.ID && best.Track.ID != hinted.ID {
			best = Choice{Track: t, Score: s}
		}
	}

	current, hasCurrent := ByID(currentID)
	if !hasCurrent {
		if best.Score > 0 {
			return best
		}
		if hintOK {
			return Choice{Track: hinted}
		}
		return Choice{Track: catalog[0]}
	}

	if best.Score >= threshold {
		return best
	}
	if hintOK {
		return Choice{Track: hinted}
	}
	return Choice{Track: current}
}

// resolveHint maps a free-form mood word from the text model onto a catalog
// track. Hints match a track id, name, or keyword.
func resolveHint(hint string) (Track, bool) {
	h := strings.ToLower(strings.TrimSpace(hint))
	if h == "" {
		return Track{}, false
	}
	for _, t := range catalog {
		if h == t.ID || h == strings.ToLower(t.Name) {
			return t, true
		}
	}
	for _, t := range catalog {
		for _, kw := range t.Keywords {
			if strings.HasPrefix(h, kw) {
				return t, true
			}
		}
	}
	return Track{}, false
}

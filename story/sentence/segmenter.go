// Package sentence splits chapter prose into narration units. The segmenter
// is deterministic: the same prose always yields the same sentences in the
// same order, so sentence indices are stable cache keys.
package sentence

import (
	"strings"
	"time"
	"unicode"

	"github.com/dreamweaver/dreamweaver/story"
)

// Segmenter extracts sentences from generated prose.
type Segmenter struct {
	minLength     int
	abbreviations map[string]bool
}

// NewSegmenter creates a segmenter with the standard abbreviation set.
func NewSegmenter() *Segmenter {
	return &Segmenter{
		minLength:     3,
		abbreviations: makeAbbreviationMap(),
	}
}

// Segment splits prose into sentences. Indices are global across the whole
// session, starting at startIndex; every sentence carries the id of the
// chapter it came from.
func (s *Segmenter) Segment(prose, chapterID string, startIndex int) []story.Sentence {
	text := normalizeWhitespace(prose)
	boundaries := s.findBoundaries(text)

	sentences := make([]story.Sentence, 0, len(boundaries))
	for _, b := range boundaries {
		t := strings.TrimSpace(text[b.start:b.end])
		if len(t) < s.minLength {
			continue
		}
		sentences = append(sentences, story.Sentence{
			GlobalIndex: startIndex + len(sentences),
			Text:        t,
			ChapterID:   chapterID,
			Duration:    EstimateDuration(t),
		})
	}
	return sentences
}

// EstimateDuration approximates speaking time at a storytelling pace of
// roughly 150 words per minute, slowed slightly for dense text.
func EstimateDuration(text string) time.Duration {
	words := len(strings.Fields(text))
	if words == 0 {
		words = 1
	}

	rate := 150.0 * (1.0 - complexity(text)*0.2)
	seconds := float64(words) * 60.0 / rate
	return time.Duration(seconds * float64(time.Second))
}

// complexity estimates how much to slow the reading rate: numbers and
// pause-inducing punctuation stretch narration. Capped at 0.5.
func complexity(text string) float64 {
	c := 0.0
	words := strings.Fields(text)
	long := 0
	for _, w := range words {
		if len(w) > 10 {
			long++
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsDigit(r):
			c += 0.01
		case r == ',' || r == ';' || r == ':' || r == '-':
			c += 0.01
		}
	}
	c += float64(long) / float64(len(words)+1) * 0.1
	if c > 0.5 {
		c = 0.5
	}
	return c
}

// normalizeWhitespace collapses newlines and runs of spaces so paragraph
// breaks inside a chapter do not split sentences.
func normalizeWhitespace(text string) string {
	fields := strings.Fields(text)
	return strings.Join(fields, " ")
}

// boundary is a half-open [start, end) byte range of one sentence.
type boundary struct {
	start int
	end   int
}

// findBoundaries scans for sentence-ending punctuation, skipping
// abbreviations, decimal numbers, and ellipses.
func (s *Segmenter) findBoundaries(text string) []boundary {
	var boundaries []boundary
	runes := []rune(text)
	lastStart := 0

	for i := 0; i < len(runes); i++ {
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}

		punctEnd := i + 1
		for punctEnd < len(runes) && (runes[punctEnd] == '!' || runes[punctEnd] == '?' || runes[punctEnd] == '.') {
			punctEnd++
		}
		for punctEnd < len(runes) && isClosing(runes[punctEnd]) {
			punctEnd++
		}

		if !s.isSentenceEnd(runes, i) {
			continue
		}

		boundaries = append(boundaries, boundary{start: lastStart, end: punctEnd})

		for punctEnd < len(runes) && unicode.IsSpace(runes[punctEnd]) {
			punctEnd++
		}
		lastStart = punctEnd
		i = punctEnd - 1
	}

	if lastStart < len(runes) {
		if strings.TrimSpace(string(runes[lastStart:])) != "" {
			boundaries = append(boundaries, boundary{start: lastStart, end: len(runes)})
		}
	}
	if len(boundaries) == 0 && strings.TrimSpace(text) != "" {
		boundaries = append(boundaries, boundary{start: 0, end: len(runes)})
	}

	// Rune positions to byte positions.
	for i := range boundaries {
		boundaries[i].start = len(string(runes[:boundaries[i].start]))
		boundaries[i].end = len(string(runes[:boundaries[i].end]))
	}
	return boundaries
}

// isSentenceEnd decides whether the punctuation at pos really closes a
// sentence.
func (s *Segmenter) isSentenceEnd(runes []rune, pos int) bool {
	punct := runes[pos]

	if punct == '.' {
		// Word before the period.
		start := pos - 1
		for start >= 0 && !unicode.IsSpace(runes[start]) {
			start--
		}
		word := strings.ToLower(string(runes[start+1 : pos+1]))
		bare := strings.TrimSuffix(word, ".")

		if s.abbreviations[bare] || s.abbreviations[word] {
			return false
		}
		// Multi-part abbreviations like "u.s." carry inner periods.
		if strings.Count(word, ".") > 1 {
			return false
		}

		// Decimal numbers: "3.14" is not a boundary.
		if pos > 0 && pos+1 < len(runes) && unicode.IsDigit(runes[pos-1]) && unicode.IsDigit(runes[pos+1]) {
			return false
		}

		// Ellipsis pauses, it does not end a sentence.
		if pos+2 < len(runes) && runes[pos+1] == '.' && runes[pos+2] == '.' {
			return false
		}
	}

	// Skip closing quotes/brackets, then require whitespace or end of text.
	next := pos + 1
	for next < len(runes) && (runes[next] == '!' || runes[next] == '?' || runes[next] == '.') {
		next++
	}
	for next < len(runes) && isClosing(runes[next]) {
		next++
	}
	if next >= len(runes) {
		return true
	}
	if !unicode.IsSpace(runes[next]) {
		return false
	}
	for next < len(runes) && unicode.IsSpace(runes[next]) {
		next++
	}
	if next < len(runes) && (unicode.IsUpper(runes[next]) || runes[next] == '"' || runes[next] == '\'') {
		return true
	}
	return punct == '!' || punct == '?'
}

func isClosing(r rune) bool {
	return r == '"' || r == '\'' || r == ')' || r == ']' || r == '”' || r == '’'
}

func makeAbbreviationMap() map[string]bool {
	abbrevs := []string{
		"mr", "mrs", "ms", "dr", "prof", "sr", "jr", "st",
		"i.e", "e.g", "etc", "vs", "cf",
		"ft", "oz", "kg", "km", "mi",
		"u.s", "u.k",
	}
	m := make(map[string]bool, len(abbrevs)*2)
	for _, a := range abbrevs {
		m[a] = true
		if !strings.Contains(a, ".") {
			m[a+"."] = true
		}
	}
	return m
}

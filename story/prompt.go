package story

import (
	"fmt"
	"strings"
)

// genreFraming is the narrative voice each genre asks the text model to
// adopt. Keys match the Genres list in config.go.
var genreFraming = map[string]string{
	"fantasy":      "a warm, wonder-filled high fantasy told by a fireside storyteller",
	"scifi":        "a sweeping science fiction tale with a sense of awe at vast scales",
	"mystery":      "an atmospheric mystery that rations its clues and keeps tension low and steady",
	"fairytale":    "a gentle fairy tale in the classic once-upon-a-time register",
	"adventure":    "a brisk, optimistic adventure yarn with momentum in every scene",
	"cosmic-horror": "a slow, dread-laced tale of things at the edge of comprehension, unsettling but never graphic",
}

// SystemInstruction builds the persona framing sent with every chapter
// request. It pins the output contract the gateway's response schema
// expects: a title, flowing prose of roughly the configured sentence count,
// a suggested mood, and a handful of visual moments.
func SystemInstruction(genre string, sentencesPerChapter int) string {
	framing, ok := genreFraming[strings.ToLower(genre)]
	if !ok {
		framing = genreFraming["fantasy"]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a bedtime storyteller. Write %s.\n", framing)
	fmt.Fprintf(&b, "Each chapter is about %d sentences of flowing prose, no headings or lists.\n", sentencesPerChapter)
	b.WriteString("Along with the prose, provide a short evocative chapter title, ")
	b.WriteString("a one-word mood suggestion for background music, ")
	b.WriteString("and two to four visual moments: short scene descriptions suitable as illustration prompts, in story order.\n")
	b.WriteString("Keep the tone soothing and end each chapter at a natural pause, not a cliffhanger.")
	return b.String()
}

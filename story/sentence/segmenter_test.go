package sentence

import (
	"testing"
	"time"
)

func TestSegmentBasic(t *testing.T) {
	seg := NewSegmenter()
	prose := "The fox ran. The owl watched! Where did they go?"

	got := seg.Segment(prose, "ch1", 0)
	if len(got) != 3 {
		t.Fatalf("expected 3 sentences, got %d: %#v", len(got), got)
	}

	want := []string{"The fox ran.", "The owl watched!", "Where did they go?"}
	for i, s := range got {
		if s.Text != want[i] {
			t.Errorf("sentence %d: got %q, want %q", i, s.Text, want[i])
		}
		if s.GlobalIndex != i {
			t.Errorf("sentence %d: got index %d", i, s.GlobalIndex)
		}
		if s.ChapterID != "ch1" {
			t.Errorf("sentence %d: got chapter %q", i, s.ChapterID)
		}
	}
}

func TestSegmentGlobalIndicesContinue(t *testing.T) {
	seg := NewSegmenter()

	first := seg.Segment("One star fell. Two stars fell.", "ch1", 0)
	second := seg.Segment("Three stars fell. The sky went quiet.", "ch2", len(first))

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected 2+2 sentences, got %d and %d", len(first), len(second))
	}
	if second[0].GlobalIndex != 2 || second[1].GlobalIndex != 3 {
		t.Errorf("second chapter indices: got %d, %d; want 2, 3",
			second[0].GlobalIndex, second[1].GlobalIndex)
	}
}

func TestSegmentDeterministic(t *testing.T) {
	seg := NewSegmenter()
	prose := "A long road wound uphill. Nobody knew where it led. They followed it anyway."

	a := seg.Segment(prose, "ch", 0)
	b := seg.Segment(prose, "ch", 0)

	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("sentence %d differs: %#v vs %#v", i, a[i], b[i])
		}
	}
}

func TestSegmentAbbreviations(t *testing.T) {
	seg := NewSegmenter()

	got := seg.Segment("Mr. Finch opened the door. Dr. Vale was already inside.", "ch", 0)
	if len(got) != 2 {
		t.Fatalf("abbreviations split wrongly, got %d sentences: %#v", len(got), got)
	}
	if got[0].Text != "Mr. Finch opened the door." {
		t.Errorf("got %q", got[0].Text)
	}
}

func TestSegmentDecimalsAndEllipsis(t *testing.T) {
	seg := NewSegmenter()

	got := seg.Segment("The needle read 3.14 exactly. She waited... then smiled.", "ch", 0)
	if len(got) != 2 {
		t.Fatalf("expected 2 sentences, got %d: %#v", len(got), got)
	}
}

func TestSegmentQuotedDialogue(t *testing.T) {
	seg := NewSegmenter()

	got := seg.Segment(`"Stay close." The lantern flickered twice.`, "ch", 0)
	if len(got) != 2 {
		t.Fatalf("expected 2 sentences, got %d: %#v", len(got), got)
	}
	if got[0].Text != `"Stay close."` {
		t.Errorf("got %q", got[0].Text)
	}
}

func TestSegmentCollapsesParagraphBreaks(t *testing.T) {
	seg := NewSegmenter()

	got := seg.Segment("The night was long.\n\nMorning came slowly.", "ch", 0)
	if len(got) != 2 {
		t.Fatalf("expected 2 sentences, got %d: %#v", len(got), got)
	}
}

func TestSegmentNoTerminalPunctuation(t *testing.T) {
	seg := NewSegmenter()

	got := seg.Segment("and the story goes on forever", "ch", 5)
	if len(got) != 1 {
		t.Fatalf("expected 1 sentence, got %d", len(got))
	}
	if got[0].GlobalIndex != 5 {
		t.Errorf("got index %d, want 5", got[0].GlobalIndex)
	}
}

func TestSegmentEmpty(t *testing.T) {
	seg := NewSegmenter()
	if got := seg.Segment("   \n  ", "ch", 0); len(got) != 0 {
		t.Errorf("expected no sentences, got %#v", got)
	}
}

func TestEstimateDuration(t *testing.T) {
	// 10 plain words at ~150wpm is about 4 seconds.
	d := EstimateDuration("one two three four five six seven eight nine ten")
	if d < 3*time.Second || d > 6*time.Second {
		t.Errorf("duration out of range: %v", d)
	}

	if EstimateDuration("") <= 0 {
		t.Error("empty text should still have positive duration")
	}
}

package music

import "testing"

func TestScoreCountsKeywordPrefixes(t *testing.T) {
	adventure, _ := ByID("high-adventure")

	prose := "The hero drew his sword for the epic battle against the dark warrior."
	if got := Score(prose, adventure); got != 4 {
		t.Errorf("adventure score: got %d, want 4", got)
	}

	suspense, _ := ByID("dark-suspense")
	if got := Score(prose, suspense); got != 1 {
		t.Errorf("suspense score: got %d, want 1", got)
	}
}

func TestScoreMatchesInflections(t *testing.T) {
	adventure, _ := ByID("high-adventure")

	if got := Score("Heroes fought battles on their quests.", adventure); got != 3 {
		t.Errorf("got %d, want 3", got)
	}
	// "embattled" does not start a word with "battle".
	if got := Score("The embattled town slept.", adventure); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

func TestSelectSwitchesAboveThreshold(t *testing.T) {
	prose := "The hero drew his sword for the epic battle against the dark warrior."

	choice := Select(prose, "", "gentle-dreams", 2)
	if choice.Track.ID != "high-adventure" {
		t.Errorf("got %q, want high-adventure", choice.Track.ID)
	}
	if choice.Score != 4 {
		t.Errorf("got score %d, want 4", choice.Score)
	}
}

func TestSelectBelowThresholdUsesMoodHint(t *testing.T) {
	// One weak keyword hit is not enough for the keyword winner; the model's
	// hint decides instead of the single "shadow" match.
	choice := Select("A single shadow crossed the wall.", "calm", "high-adventure", 2)
	if choice.Track.ID != "gentle-dreams" {
		t.Errorf("got %q, want gentle-dreams", choice.Track.ID)
	}
	if choice.Score != 0 {
		t.Errorf("got score %d, want 0 for a hint-driven choice", choice.Score)
	}
}

func TestSelectKeepsCurrentWhenHintUnmappable(t *testing.T) {
	// Weak signal and nothing to fall back on: don't flap, keep playing.
	for _, hint := range []string{"", "polka"} {
		choice := Select("A single shadow crossed the wall.", hint, "gentle-dreams", 2)
		if choice.Track.ID != "gentle-dreams" {
			t.Errorf("hint %q: got %q, want gentle-dreams", hint, choice.Track.ID)
		}
	}
}

func TestSelectFirstChapterUsesBestScore(t *testing.T) {
	choice := Select("Magic and wonder filled the enchanted vale.", "", "", 2)
	if choice.Track.ID != "mystic-wonder" {
		t.Errorf("got %q, want mystic-wonder", choice.Track.ID)
	}
}

func TestSelectFallsBackToMoodHint(t *testing.T) {
	// Prose with no keyword signal at all: the model's hint decides.
	choice := Select("It simply was.", "calm", "", 2)
	if choice.Track.ID != "gentle-dreams" {
		t.Errorf("got %q, want gentle-dreams", choice.Track.ID)
	}
}

func TestSelectFallsBackToCatalogHead(t *testing.T) {
	choice := Select("It simply was.", "unmappable-mood", "", 2)
	if choice.Track.ID != catalog[0].ID {
		t.Errorf("got %q, want %q", choice.Track.ID, catalog[0].ID)
	}
}

func TestSelectDeterministic(t *testing.T) {
	prose := "They laughed and played in the happy meadow while rain fell far away."
	a := Select(prose, "joy", "", 2)
	b := Select(prose, "joy", "", 2)
	if a.Track.ID != b.Track.ID || a.Score != b.Score {
		t.Errorf("selection not deterministic: %v vs %v", a, b)
	}
}

func TestResolveHint(t *testing.T) {
	cases := []struct {
		hint string
		want string
		ok   bool
	}{
		{"dark-suspense", "dark-suspense", true},
		{"High Adventure", "high-adventure", true},
		{"sleepy", "gentle-dreams", true},
		{"magical", "mystic-wonder", true},
		{"", "", false},
		{"polka", "", false},
	}
	for _, c := range cases {
		got, ok := resolveHint(c.hint)
		if ok != c.ok {
			t.Errorf("resolveHint(%q): ok=%v, want %v", c.hint, ok, c.ok)
			continue
		}
		if ok && got.ID != c.want {
			t.Errorf("resolveHint(%q): got %q, want %q", c.hint, got.ID, c.want)
		}
	}
}

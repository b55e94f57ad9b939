// Package music selects a background track for a chapter by scoring its
// prose against per-track keyword lists. Selection is deterministic: same
// prose, same catalog, same choice.
package music

// Track is one entry in the built-in music catalog. Keywords are matched as
// lowercase word prefixes, so "battle" also counts "battles" and "battled".
type Track struct {
	ID        string
	Name      string
	Icon      string
	SourceURL string
	Keywords  []string
}

var catalog = []Track{
	{
		ID:        "high-adventure",
		Name:      "High Adventure",
		Icon:      "⚔️",
		SourceURL: "https://cdn.dreamweaver.audio/music/high-adventure.ogg",
		Keywords:  []string{"hero", "sword", "epic", "battle", "quest", "adventure", "brave"},
	},
	{
		ID:        "dark-suspense",
		Name:      "Dark Suspense",
		Icon:      "🌑",
		SourceURL: "https://cdn.dreamweaver.audio/music/dark-suspense.ogg",
		Keywords:  []string{"dark", "shadow", "fear", "mystery", "suspense", "creep"},
	},
	{
		ID:        "gentle-dreams",
		Name:      "Gentle Dreams",
		Icon:      "🌙",
		SourceURL: "https://cdn.dreamweaver.audio/music/gentle-dreams.ogg",
		Keywords:  []string{"calm", "peace", "sleep", "soft", "lull", "quiet"},
	},
	{
		ID:        "mystic-wonder",
		Name:      "Mystic Wonder",
		Icon:      "✨",
		SourceURL: "https://cdn.dreamweaver.audio/music/mystic-wonder.ogg",
		Keywords:  []string{"magic", "wonder", "mystic", "enchant", "spell", "glow"},
	},
	{
		ID:        "joyful-play",
		Name:      "Joyful Play",
		Icon:      "🎈",
		SourceURL: "https://cdn.dreamweaver.audio/music/joyful-play.ogg",
		Keywords:  []string{"laugh", "play", "joy", "happy", "fun", "dance"},
	},
	{
		ID:        "melancholy-rain",
		Name:      "Melancholy Rain",
		Icon:      "🌧️",
		SourceURL: "https://cdn.dreamweaver.audio/music/melancholy-rain.ogg",
		Keywords:  []string{"sad", "tear", "rain", "loss", "lonely", "farewell"},
	},
}

// Catalog returns the built-in track list in priority order.
func Catalog() []Track {
	return catalog
}

// ByID looks up a track by its catalog id.
func ByID(id string) (Track, bool) {
	for _, t := range catalog {
		if t.ID == id {
			return t, true
		}
	}
	return Track{}, false
}

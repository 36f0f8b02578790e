// Package prompts tracks the canned opening questions offered to a visitor.
package prompts

// Prompt is one canned question. Label is what the button shows; Text is what
// gets sent on the visitor's behalf.
type Prompt struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

// DefaultCatalog is the opening question set.
var DefaultCatalog = []Prompt{
	{ID: "exosomes", Label: "🧬 מהם אקסוזומים ולמה הם מהפכה?", Text: "מהם אקסוזומים?"},
	{ID: "benefits", Label: "✨ מה התועלות העיקריות של המוצרים?", Text: "מה התועלות העיקריות של המוצרים?"},
	{ID: "pricing", Label: "💰 כמה עולים המוצרים וכמה הרווח?", Text: "כמה עולים המוצרים?"},
	{ID: "training", Label: "📚 איך נרשמים למפגש ההדרכה?", Text: "איך נרשמים למפגש ההדרכה?"},
	{ID: "compare", Label: "🏆 במה המוצרים שלנו שונים וטובים יותר?", Text: "במה המוצר שונה וטוב יותר ממוצרים אחרים דומים?"},
	{ID: "callback", Label: "📞 אני רוצה שיחזרו אליי!", Text: "אני רוצה שיחזרו אליי!"},
}

// Tracker remembers which prompts were used. The used set only grows.
// Not safe for concurrent use; the owning session serializes access.
type Tracker struct {
	catalog []Prompt
	used    map[string]struct{}
	order   []string
}

// NewTracker builds a tracker over catalog, or DefaultCatalog when nil.
func NewTracker(catalog []Prompt) *Tracker {
	if catalog == nil {
		catalog = DefaultCatalog
	}
	return &Tracker{
		catalog: append([]Prompt(nil), catalog...),
		used:    make(map[string]struct{}),
	}
}

// Offers returns the unused prompts, but only while the transcript is the
// lone opening assistant message.
func (t *Tracker) Offers(assistantMessages, userMessages int) []Prompt {
	if assistantMessages != 1 || userMessages != 0 {
		return nil
	}
	out := make([]Prompt, 0, len(t.catalog))
	for _, p := range t.catalog {
		if _, done := t.used[p.ID]; !done {
			out = append(out, p)
		}
	}
	return out
}

// Lookup finds a prompt by ID.
func (t *Tracker) Lookup(id string) (Prompt, bool) {
	for _, p := range t.catalog {
		if p.ID == id {
			return p, true
		}
	}
	return Prompt{}, false
}

// Use marks a prompt as used. It reports false when the ID is unknown.
func (t *Tracker) Use(id string) (Prompt, bool) {
	p, ok := t.Lookup(id)
	if !ok {
		return Prompt{}, false
	}
	if _, done := t.used[id]; !done {
		t.used[id] = struct{}{}
		t.order = append(t.order, id)
	}
	return p, true
}

// IsUsed reports whether id was already selected.
func (t *Tracker) IsUsed(id string) bool {
	_, ok := t.used[id]
	return ok
}

// Used returns the used IDs in selection order.
func (t *Tracker) Used() []string {
	return append([]string(nil), t.order...)
}

// Restore re-applies a previously persisted used set.
func (t *Tracker) Restore(ids []string) {
	for _, id := range ids {
		if _, done := t.used[id]; done {
			continue
		}
		t.used[id] = struct{}{}
		t.order = append(t.order, id)
	}
}

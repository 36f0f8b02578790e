package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffersOnlyOnOpeningMessage(t *testing.T) {
	tr := NewTracker(nil)

	assert.Len(t, tr.Offers(1, 0), len(DefaultCatalog))
	assert.Empty(t, tr.Offers(0, 0))
	assert.Empty(t, tr.Offers(2, 0))
	assert.Empty(t, tr.Offers(1, 1))
}

func TestUseExcludesPromptImmediately(t *testing.T) {
	tr := NewTracker(nil)

	p, ok := tr.Use("pricing")
	require.True(t, ok)
	assert.Equal(t, "כמה עולים המוצרים?", p.Text)
	assert.True(t, tr.IsUsed("pricing"))

	for _, offered := range tr.Offers(1, 0) {
		assert.NotEqual(t, "pricing", offered.ID)
	}
	assert.Len(t, tr.Offers(1, 0), len(DefaultCatalog)-1)
}

func TestUseUnknownPrompt(t *testing.T) {
	tr := NewTracker(nil)
	_, ok := tr.Use("nope")
	assert.False(t, ok)
	assert.Empty(t, tr.Used())
}

func TestUsedSetGrowsMonotonically(t *testing.T) {
	tr := NewTracker(nil)
	tr.Use("exosomes")
	tr.Use("exosomes")
	tr.Use("callback")

	assert.Equal(t, []string{"exosomes", "callback"}, tr.Used())

	restored := NewTracker(nil)
	restored.Restore([]string{"callback", "callback", "training"})
	assert.Equal(t, []string{"callback", "training"}, restored.Used())
}

func TestCustomCatalogIsCopied(t *testing.T) {
	catalog := []Prompt{{ID: "a", Label: "A", Text: "a?"}}
	tr := NewTracker(catalog)
	catalog[0].Text = "mutated"

	p, ok := tr.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "a?", p.Text)
}

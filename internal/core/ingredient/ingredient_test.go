package ingredient

import (
	"testing"

	"dish-compat/internal/core/rules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	r := NewResolver(rules.Default())

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"canonical key", "peanut", "peanut"},
		{"alias", "Groundnut", "peanut"},
		{"alias with padding", "  Chilli  ", "chili"},
		{"multi word alias", "Heavy   Cream", "cream"},
		{"accent folding", "Crème Fraîche", "cream"},
		{"unknown passes through", "  Dragon Fruit ", "dragon fruit"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Canonicalize(tt.in))
		})
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	r := NewResolver(rules.Default())

	inputs := []string{
		"peanut", "groundnuts", "JALAPEÑO", "soy sauce", "Shoyu", "ice  cream",
		"ℌello", "İstanbul pilaf", "", "2% milk", "all-purpose flour", "ÅNGSTRÖM",
	}
	for _, in := range inputs {
		once := r.Canonicalize(in)
		assert.Equal(t, once, r.Canonicalize(once), "input %q", in)
	}
	for _, key := range r.Keys() {
		assert.Equal(t, key, r.Canonicalize(key))
		assert.True(t, r.IsCanonical(key))
	}
}

func TestExpandHiddenTriggers(t *testing.T) {
	tables := rules.Default()
	e := NewExpander(tables)

	got := e.Expand("soy sauce", "Soy Sauce, low sodium")
	assert.Subset(t, got, []string{"soy sauce", "gluten", "soy", "wheat"})
	assert.IsIncreasing(t, got)

	milk := e.Expand("milk", "whole milk")
	assert.Subset(t, milk, []string{"milk", "whole milk", "dairy", "lactose"})

	plain := e.Expand("cereal", "cereal")
	assert.Equal(t, []string{"cereal"}, plain)
}

func TestExpandMatchesRawWhenCanonicalMisses(t *testing.T) {
	e := NewExpander(rules.Default())

	got := e.Expand("sourdough", "sourdough bread")
	assert.Contains(t, got, "gluten")
	assert.Contains(t, got, "yeast")
}

func TestExpandExtraAnnotations(t *testing.T) {
	e := NewExpander(rules.Default())

	got := e.Expand("pizza", "pizza", "Gluten", "Lactose")
	assert.Contains(t, got, "gluten")
	assert.Contains(t, got, "lactose")
	assert.Contains(t, got, "pizza")
}

func TestImplied(t *testing.T) {
	e := NewExpander(rules.Default())

	assert.ElementsMatch(t, []string{"dairy", "lactose", "milk"}, e.Implied("Greek Yogurt"))
	assert.Empty(t, e.Implied("water"))
}

func TestResolverKeysIsCopy(t *testing.T) {
	r := NewResolver(rules.Default())
	keys := r.Keys()
	require.NotEmpty(t, keys)
	keys[0] = "mutated"
	assert.NotEqual(t, "mutated", r.Keys()[0])
}

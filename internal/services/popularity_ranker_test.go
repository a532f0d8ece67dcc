package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func catalog() *memoryGateway {
	return newMemoryGateway().
		withProduct("p1", "shoes", 100).
		withProduct("p2", "bags", 300).
		withProduct("p3", "shoes", 200).
		withProduct("p4", "hats", 50).
		withProduct("p5", "Caf\u00e9", 10)
}

func TestPopularityRanker_GlobalPopular(t *testing.T) {
	ctx := context.Background()

	t.Run("orders by sales and truncates", func(t *testing.T) {
		ranker := NewPopularityRanker(catalog(), DefaultLimitPolicy, testLogger())

		products := ranker.GlobalPopular(ctx, 3)
		assert.Equal(t, []string{"p2", "p3", "p1"}, productIDs(products))
	})

	t.Run("limit is clamped", func(t *testing.T) {
		ranker := NewPopularityRanker(catalog(), DefaultLimitPolicy, testLogger())

		assert.Len(t, ranker.GlobalPopular(ctx, 0), 1)
	})

	t.Run("store failure yields empty list", func(t *testing.T) {
		gw := catalog()
		gw.errs["FetchGlobalPopular"] = errors.New("down")
		ranker := NewPopularityRanker(gw, DefaultLimitPolicy, testLogger())

		products := ranker.GlobalPopular(ctx, 5)
		require.NotNil(t, products)
		assert.Empty(t, products)
	})
}

func TestPopularityRanker_CategoryPopular(t *testing.T) {
	ctx := context.Background()

	t.Run("category best sellers", func(t *testing.T) {
		ranker := NewPopularityRanker(catalog(), DefaultLimitPolicy, testLogger())

		products := ranker.CategoryPopular(ctx, "shoes", 15)
		assert.Equal(t, []string{"p3", "p1"}, productIDs(products))
	})

	t.Run("empty category falls back to global", func(t *testing.T) {
		gw := catalog()
		ranker := NewPopularityRanker(gw, DefaultLimitPolicy, testLogger())

		// the category is known but has no products
		products := ranker.CategoryPopular(ctx, "sandals", 2)
		assert.Equal(t, productIDs(ranker.GlobalPopular(ctx, 2)), productIDs(products))
		assert.NotEmpty(t, products)
	})

	t.Run("blank category name falls back to global", func(t *testing.T) {
		gw := catalog()
		ranker := NewPopularityRanker(gw, DefaultLimitPolicy, testLogger())

		products := ranker.CategoryPopular(ctx, "   ", 2)
		assert.Equal(t, []string{"p2", "p3"}, productIDs(products))
		assert.Zero(t, gw.calls["FetchProductsByCategory"])
	})

	t.Run("store failure falls back to global", func(t *testing.T) {
		gw := catalog()
		gw.errs["FetchProductsByCategory"] = errors.New("timeout")
		ranker := NewPopularityRanker(gw, DefaultLimitPolicy, testLogger())

		products := ranker.CategoryPopular(ctx, "shoes", 2)
		assert.Equal(t, []string{"p2", "p3"}, productIDs(products))
	})

	t.Run("category names are normalized", func(t *testing.T) {
		ranker := NewPopularityRanker(catalog(), DefaultLimitPolicy, testLogger())

		// "Cafe" followed by a combining acute accent
		products := ranker.CategoryPopular(ctx, " Cafe\u0301 ", 15)
		assert.Equal(t, []string{"p5"}, productIDs(products))
	})
}

func TestPopularityRanker_StoredSpellingMatches(t *testing.T) {
	ctx := context.Background()
	gw := newMemoryGateway().
		withProduct("d1", "Cafe\u0301", 5).
		withProduct("w1", " socks ", 7).
		withProduct("p9", "hats", 500)
	ranker := NewPopularityRanker(gw, DefaultLimitPolicy, testLogger())

	t.Run("decomposed stored name", func(t *testing.T) {
		products := ranker.CategoryPopular(ctx, "Cafe\u0301", 15)
		assert.Equal(t, []string{"d1"}, productIDs(products))
	})

	t.Run("stored name with surrounding whitespace", func(t *testing.T) {
		products := ranker.CategoryPopular(ctx, " socks ", 15)
		assert.Equal(t, []string{"w1"}, productIDs(products))
	})

	assert.Zero(t, gw.calls["FetchGlobalPopular"])
}

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, "Caf\u00e9", NormalizeCategory("Cafe\u0301"))
	assert.Equal(t, "shoes", NormalizeCategory("  shoes\n"))
	assert.Equal(t, "", NormalizeCategory(" "))
}

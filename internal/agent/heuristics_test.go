package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tkzito/lori-llm-local/internal/tool"
)

func newHeuristicsFixture(t *testing.T, stale bool) (*Heuristics, *tool.Registry) {
	t.Helper()
	reg := tool.NewRegistry()

	hours := 0.2
	if stale {
		hours = 5.5
	}

	reg.Register(tool.Definition{
		Name: "crypto.price",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return tool.CryptoPriceResult{
				Asset:            "eth",
				AssetID:          "ethereum",
				Prices:           map[string]float64{"brl": 18000.5, "usd": 3200.25},
				Changes24h:       map[string]float64{"usd": -1.4},
				VsCurrencies:     []string{"brl", "usd"},
				LastUpdatedISO:   "2026-08-30T08:00:00Z",
				LastUpdatedHours: hours,
				Source:           "https://www.coingecko.com",
			}, nil
		},
	})
	reg.Register(tool.Definition{
		Name: "fx.rate",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return tool.FxRateResult{
				Base:             "USD",
				Target:           "BRL",
				Rate:             5.4321,
				LastUpdatedISO:   "2026-08-30T08:00:00Z",
				LastUpdatedHours: hours,
				Source:           "https://exchangerate.host",
			}, nil
		},
	})
	reg.Register(tool.Definition{
		Name: "web.search",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return tool.WebSearchResult{
				Query: "q",
				Results: []tool.SearchHit{
					{Title: "Market today", URL: "https://example.com/market"},
				},
			}, nil
		},
	})

	return NewHeuristics(reg, 1, testLogger()), reg
}

func TestShortcutCryptoPrice(t *testing.T) {
	h, _ := newHeuristicsFixture(t, false)

	answer, ok := h.Shortcut(context.Background(), "what's the current ETH price?")
	require.True(t, ok)
	assert.Contains(t, answer, "**ETH**")
	assert.Contains(t, answer, "BRL 18000.50")
	assert.Contains(t, answer, "USD 3200.25")
	assert.Contains(t, answer, "-1.40% 24h")
	assert.NotContains(t, answer, "hours old")
}

func TestShortcutCryptoPortuguese(t *testing.T) {
	h, _ := newHeuristicsFixture(t, false)

	_, ok := h.Shortcut(context.Background(), "qual a cotação do bitcoin hoje?")
	assert.True(t, ok)
}

func TestShortcutFxRate(t *testing.T) {
	h, _ := newHeuristicsFixture(t, false)

	answer, ok := h.Shortcut(context.Background(), "what is the dollar value in reais?")
	require.True(t, ok)
	assert.Contains(t, answer, "**USD/BRL**")
	assert.Contains(t, answer, "5.4321")
}

func TestShortcutStaleQuoteGetsSources(t *testing.T) {
	h, _ := newHeuristicsFixture(t, true)

	answer, ok := h.Shortcut(context.Background(), "btc price?")
	require.True(t, ok)
	assert.Contains(t, answer, "5.5 hours old")
	assert.Contains(t, answer, "[Market today](https://example.com/market)")
}

func TestShortcutRequiresPriceWord(t *testing.T) {
	h, _ := newHeuristicsFixture(t, false)

	// Mentioning an asset without asking for a quote goes to the model.
	_, ok := h.Shortcut(context.Background(), "write a poem about bitcoin")
	assert.False(t, ok)
}

func TestShortcutIgnoresUnrelatedPrompts(t *testing.T) {
	h, _ := newHeuristicsFixture(t, false)

	for _, prompt := range []string{
		"list the files in my workspace",
		"what's the weather like?",
		"price of eggs at the grocery store",
	} {
		_, ok := h.Shortcut(context.Background(), prompt)
		assert.False(t, ok, "prompt %q", prompt)
	}
}

func TestShortcutToolFailureDefersToModel(t *testing.T) {
	reg := tool.NewRegistry()
	reg.Register(tool.Definition{
		Name: "crypto.price",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("upstream down")
		},
	})
	h := NewHeuristics(reg, 1, testLogger())

	_, ok := h.Shortcut(context.Background(), "btc price now")
	assert.False(t, ok)
}

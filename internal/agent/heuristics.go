package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Tkzito/lori-llm-local/internal/logging"
	"github.com/Tkzito/lori-llm-local/internal/tool"
)

// Heuristics answers a narrow class of prompts by calling the matching
// read-only tool directly, skipping model inference entirely. Only quote
// lookups qualify; anything ambiguous falls through to the model.
type Heuristics struct {
	tools             *tool.Registry
	freshnessMaxHours float64
	log               *logging.Logger
}

// NewHeuristics creates a shortcut layer over the given tool set.
// freshnessMaxHours bounds how stale a quote may be before the answer is
// cross-checked against a web search.
func NewHeuristics(tools *tool.Registry, freshnessMaxHours float64, log *logging.Logger) *Heuristics {
	if freshnessMaxHours <= 0 {
		freshnessMaxHours = 1
	}
	return &Heuristics{
		tools:             tools,
		freshnessMaxHours: freshnessMaxHours,
		log:               log.Sub("heuristics"),
	}
}

var (
	priceWordRe   = regexp.MustCompile(`(?i)\b(price|quote|worth|value|cotação|cotacao|preço|preco|valor)\b`)
	cryptoAssetRe = regexp.MustCompile(`(?i)\b(btc|bitcoin|eth|ethereum|sol|solana|ada|cardano|doge|dogecoin|xrp|ltc|litecoin|dot|polkadot|link|chainlink)\b`)
	fxPairRe      = regexp.MustCompile(`(?i)\b(usd|dollar|dólar|dolar|eur|euro|gbp)\b.*\b(brl|real|reais|usd|eur)\b`)
)

// Shortcut returns a complete answer when the prompt matches a quote rule.
// The boolean reports whether the shortcut applies.
func (h *Heuristics) Shortcut(ctx context.Context, prompt string) (string, bool) {
	if h == nil || h.tools == nil {
		return "", false
	}
	if !priceWordRe.MatchString(prompt) {
		return "", false
	}

	if m := cryptoAssetRe.FindString(prompt); m != "" {
		return h.cryptoAnswer(ctx, strings.ToLower(m))
	}
	if fxPairRe.MatchString(prompt) {
		return h.fxAnswer(ctx)
	}
	return "", false
}

func (h *Heuristics) cryptoAnswer(ctx context.Context, asset string) (string, bool) {
	out, err := h.tools.Dispatch(ctx, tool.CallRequest{
		Name: "crypto.price",
		Args: map[string]any{"asset": asset},
	})
	if err != nil {
		h.log.Debug().Str("asset", asset).Err(err).Msg("quote shortcut failed, deferring to model")
		return "", false
	}
	res, ok := out.(tool.CryptoPriceResult)
	if !ok || len(res.Prices) == 0 {
		return "", false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s** is trading at:\n", strings.ToUpper(asset))
	for _, fiat := range res.VsCurrencies {
		price, ok := res.Prices[fiat]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %s %.2f", strings.ToUpper(fiat), price)
		if change, ok := res.Changes24h[fiat]; ok {
			fmt.Fprintf(&b, " (%+.2f%% 24h)", change)
		}
		b.WriteString("\n")
	}
	if res.LastUpdatedISO != "" {
		fmt.Fprintf(&b, "\nLast updated %s (source: %s)", res.LastUpdatedISO, res.Source)
	}

	if res.LastUpdatedHours > h.freshnessMaxHours {
		b.WriteString(h.stalenessNote(ctx, asset+" price", res.LastUpdatedHours))
	}
	return b.String(), true
}

func (h *Heuristics) fxAnswer(ctx context.Context) (string, bool) {
	out, err := h.tools.Dispatch(ctx, tool.CallRequest{Name: "fx.rate", Args: map[string]any{}})
	if err != nil {
		h.log.Debug().Err(err).Msg("fx shortcut failed, deferring to model")
		return "", false
	}
	res, ok := out.(tool.FxRateResult)
	if !ok || res.Rate == 0 {
		return "", false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s/%s** rate: %.4f\n", res.Base, res.Target, res.Rate)
	if res.LastUpdatedISO != "" {
		fmt.Fprintf(&b, "\nLast updated %s (source: %s)", res.LastUpdatedISO, res.Source)
	}
	if res.LastUpdatedHours > h.freshnessMaxHours {
		b.WriteString(h.stalenessNote(ctx, res.Base+" "+res.Target+" exchange rate", res.LastUpdatedHours))
	}
	return b.String(), true
}

// stalenessNote cross-checks a stale quote against a web search and appends
// whatever sources it finds. Search failures leave just the staleness warning.
func (h *Heuristics) stalenessNote(ctx context.Context, query string, hoursOld float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n\n_Note: this quote is %.1f hours old._", hoursOld)

	out, err := h.tools.Dispatch(ctx, tool.CallRequest{
		Name: "web.search",
		Args: map[string]any{"query": query, "limit": float64(3)},
	})
	if err != nil {
		return b.String()
	}
	res, ok := out.(tool.WebSearchResult)
	if !ok || len(res.Results) == 0 {
		return b.String()
	}

	b.WriteString(" Recent sources:\n")
	for _, hit := range res.Results {
		fmt.Fprintf(&b, "- [%s](%s)\n", hit.Title, hit.URL)
	}
	return b.String()
}

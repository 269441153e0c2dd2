package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Public quote endpoints. Overridable for tests via RegisterQuotesWith.
const (
	coinGeckoPriceURL  = "https://api.coingecko.com/api/v3/simple/price"
	exchangeRateAPIURL = "https://api.exchangerate.host/convert"
)

// CryptoPriceResult is the payload of crypto.price.
type CryptoPriceResult struct {
	Asset            string             `json:"asset"`
	AssetID          string             `json:"asset_id"`
	Prices           map[string]float64 `json:"prices"`
	Changes24h       map[string]float64 `json:"changes_24h"`
	VsCurrencies     []string           `json:"vs_currencies"`
	LastUpdated      int64              `json:"last_updated,omitempty"`
	LastUpdatedISO   string             `json:"last_updated_iso,omitempty"`
	LastUpdatedHours float64            `json:"last_updated_hours_ago"`
	Source           string             `json:"source"`
}

// FxRateResult is the payload of fx.rate.
type FxRateResult struct {
	Base             string  `json:"base"`
	Target           string  `json:"target"`
	Amount           float64 `json:"amount"`
	Rate             float64 `json:"rate"`
	Converted        float64 `json:"converted"`
	Date             string  `json:"date,omitempty"`
	LastUpdatedISO   string  `json:"last_updated_iso,omitempty"`
	LastUpdatedHours float64 `json:"last_updated_hours_ago"`
	Source           string  `json:"source"`
}

// cryptoAssets maps common tickers and names to CoinGecko asset IDs.
var cryptoAssets = map[string]string{
	"btc": "bitcoin", "bitcoin": "bitcoin",
	"eth": "ethereum", "ethereum": "ethereum",
	"sol": "solana", "solana": "solana",
	"ada": "cardano", "cardano": "cardano",
	"doge": "dogecoin", "dogecoin": "dogecoin",
	"xrp": "ripple", "ripple": "ripple",
	"bnb": "binancecoin",
	"ltc": "litecoin", "litecoin": "litecoin",
	"dot": "polkadot", "polkadot": "polkadot",
	"link": "chainlink", "chainlink": "chainlink",
	"avax": "avalanche-2",
	"matic": "matic-network",
}

// RegisterQuotes registers the market quote tools against the public APIs.
func RegisterQuotes(reg *Registry, ws Workspace) {
	RegisterQuotesWith(reg, ws, coinGeckoPriceURL, exchangeRateAPIURL)
}

// RegisterQuotesWith registers the quote tools with explicit endpoints.
func RegisterQuotesWith(reg *Registry, ws Workspace, cryptoURL, fxURL string) {
	reg.Register(Definition{
		Name:        "crypto.price",
		Description: "Fetch the current price of a cryptocurrency.",
		Schema: Schema{Params: map[string]Param{
			"asset":         {Type: TypeString, Required: true, Description: "ticker or name, e.g. btc"},
			"vs_currencies": {Type: TypeList, Description: "fiat currencies, default usd and brl"},
		}},
		Handler: cryptoPrice(ws, cryptoURL),
	})
	reg.Register(Definition{
		Name:        "fx.rate",
		Description: "Convert an amount between fiat currencies at the current rate.",
		Schema: Schema{Params: map[string]Param{
			"base":   {Type: TypeString},
			"target": {Type: TypeString},
			"amount": {Type: TypeFloat},
		}},
		Handler: fxRate(ws, fxURL),
	})
}

func cryptoPrice(ws Workspace, endpoint string) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		asset := strings.ToLower(strings.TrimSpace(stringArg(args, "asset")))
		if asset == "" {
			return nil, errors.New("asset must not be empty")
		}
		assetID, ok := cryptoAssets[asset]
		if !ok {
			return nil, fmt.Errorf("unknown asset: %s", asset)
		}

		vs := []string{"usd", "brl"}
		if raw, present := args["vs_currencies"].([]any); present && len(raw) > 0 {
			vs = vs[:0]
			for _, v := range raw {
				vs = append(vs, strings.ToLower(fmt.Sprint(v)))
			}
		}
		sort.Strings(vs)

		q := url.Values{}
		q.Set("ids", assetID)
		q.Set("vs_currencies", strings.Join(vs, ","))
		q.Set("include_24hr_change", "true")
		q.Set("include_last_updated_at", "true")

		var payload map[string]map[string]float64
		if err := getJSON(ctx, ws, endpoint+"?"+q.Encode(), &payload); err != nil {
			return nil, err
		}
		quote, ok := payload[assetID]
		if !ok {
			return nil, errors.New("invalid quote response")
		}

		result := CryptoPriceResult{
			Asset:        asset,
			AssetID:      assetID,
			Prices:       map[string]float64{},
			Changes24h:   map[string]float64{},
			VsCurrencies: vs,
			Source:       "https://www.coingecko.com",
		}
		for _, fiat := range vs {
			if v, ok := quote[fiat]; ok {
				result.Prices[fiat] = v
			}
			if v, ok := quote[fiat+"_24h_change"]; ok {
				result.Changes24h[fiat] = v
			}
		}
		if ts, ok := quote["last_updated_at"]; ok && ts > 0 {
			updated := time.Unix(int64(ts), 0).UTC()
			result.LastUpdated = int64(ts)
			result.LastUpdatedISO = updated.Format(time.RFC3339)
			result.LastUpdatedHours = time.Since(updated).Hours()
			if result.LastUpdatedHours < 0 {
				result.LastUpdatedHours = 0
			}
		}
		return result, nil
	}
}

func fxRate(ws Workspace, endpoint string) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		base := strings.ToUpper(stringArgDefault(args, "base", "USD"))
		target := strings.ToUpper(stringArgDefault(args, "target", "BRL"))
		amount := floatArg(args, "amount", 1)
		if amount <= 0 {
			return nil, errors.New("amount must be positive")
		}

		q := url.Values{}
		q.Set("from", base)
		q.Set("to", target)
		q.Set("amount", fmt.Sprintf("%g", amount))
		q.Set("places", "6")

		var payload struct {
			Success *bool   `json:"success"`
			Result  float64 `json:"result"`
			Date    string  `json:"date"`
			Info    struct {
				Rate      float64 `json:"rate"`
				Timestamp int64   `json:"timestamp"`
			} `json:"info"`
		}
		if err := getJSON(ctx, ws, endpoint+"?"+q.Encode(), &payload); err != nil {
			return nil, err
		}
		if payload.Success != nil && !*payload.Success {
			return nil, errors.New("invalid rate response")
		}

		result := FxRateResult{
			Base:      base,
			Target:    target,
			Amount:    amount,
			Rate:      payload.Info.Rate,
			Converted: payload.Result,
			Date:      payload.Date,
			Source:    endpoint,
		}
		switch {
		case payload.Info.Timestamp > 0:
			updated := time.Unix(payload.Info.Timestamp, 0).UTC()
			result.LastUpdatedISO = updated.Format(time.RFC3339)
			result.LastUpdatedHours = time.Since(updated).Hours()
		case payload.Date != "":
			if updated, err := time.Parse("2006-01-02", payload.Date); err == nil {
				result.LastUpdatedISO = updated.UTC().Format(time.RFC3339)
				result.LastUpdatedHours = time.Since(updated).Hours()
			}
		}
		if result.LastUpdatedHours < 0 {
			result.LastUpdatedHours = 0
		}
		return result, nil
	}
}

func getJSON(ctx context.Context, ws Workspace, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := ws.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("quote fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("quote fetch failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

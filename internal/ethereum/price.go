package ethereum

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/domain"
)

type dailyPrice struct {
	UnixTimeStamp string `json:"unixTimeStamp"`
	Value         string `json:"value"`
}

// PriceAt returns the fiat (USD) price of the currency at a historical Unix
// timestamp, using the provider's daily close series. Missing data maps to
// domain.ErrPriceUnavailable.
//
// Only the chain's native currency is supported; stablecoin identifiers
// resolve to 1.0.
func (c *Client) PriceAt(ctx context.Context, currency string, timestamp int64) (float64, error) {
	if isStablecoin(currency) {
		return 1.0, nil
	}
	if currency != c.currency {
		return 0, fmt.Errorf("%w: no price series for %q", domain.ErrPriceUnavailable, currency)
	}

	day := time.Unix(timestamp, 0).UTC().Format("2006-01-02")
	params := url.Values{}
	params.Set("module", "stats")
	params.Set("action", "ethdailyprice")
	params.Set("startdate", day)
	params.Set("enddate", day)
	params.Set("sort", "asc")

	result, err := c.account(ctx, params)
	if err != nil {
		return 0, err
	}

	var prices []dailyPrice
	if len(result) > 0 {
		if err := json.Unmarshal(result, &prices); err != nil {
			return 0, fmt.Errorf("decode price series: %w", err)
		}
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("%w: no data for %s on %s", domain.ErrPriceUnavailable, currency, day)
	}

	value, err := strconv.ParseFloat(prices[0].Value, 64)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%w: bad price value %q", domain.ErrPriceUnavailable, prices[0].Value)
	}
	return value, nil
}

func isStablecoin(currency string) bool {
	switch currency {
	case "USDC", "USDT", "DAI", "BUSD":
		return true
	}
	return false
}

package price

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const coingeckoDefaultURL = "https://api.coingecko.com/api/v3/simple/price?ids=monero&vs_currencies=usd"

// CoinGecko is the primary provider, same source the facilitator has always
// priced against.
type CoinGecko struct {
	URL        string
	HTTPClient *http.Client
}

func NewCoinGecko() *CoinGecko {
	return &CoinGecko{
		URL:        coingeckoDefaultURL,
		HTTPClient: http.DefaultClient,
	}
}

func (p *CoinGecko) Name() string {
	return "coingecko"
}

func (p *CoinGecko) USDPrice(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("coingecko returned status %d", resp.StatusCode)
	}

	var body struct {
		Monero struct {
			USD float64 `json:"usd"`
		} `json:"monero"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	if body.Monero.USD == 0 {
		return 0, fmt.Errorf("price data missing in coingecko response")
	}
	return body.Monero.USD, nil
}

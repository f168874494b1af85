package price

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

const krakenDefaultURL = "https://api.kraken.com/0/public/Ticker?pair=XMRUSD"

// Kraken is the failover provider. The ticker response keys the pair as
// XXMRZUSD and reports the last trade price as the first element of "c".
type Kraken struct {
	URL        string
	HTTPClient *http.Client
}

func NewKraken() *Kraken {
	return &Kraken{
		URL:        krakenDefaultURL,
		HTTPClient: http.DefaultClient,
	}
}

func (p *Kraken) Name() string {
	return "kraken"
}

func (p *Kraken) USDPrice(ctx context.Context) (float64, error) {
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
		return 0, fmt.Errorf("kraken returned status %d", resp.StatusCode)
	}

	var body struct {
		Error  []string `json:"error"`
		Result map[string]struct {
			Close []string `json:"c"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	if len(body.Error) > 0 {
		return 0, fmt.Errorf("kraken error: %s", body.Error[0])
	}
	for _, ticker := range body.Result {
		if len(ticker.Close) == 0 {
			continue
		}
		return strconv.ParseFloat(ticker.Close[0], 64)
	}
	return 0, fmt.Errorf("price data missing in kraken response")
}

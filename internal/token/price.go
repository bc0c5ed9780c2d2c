package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// PriceOracle resolves a best-effort USD price for a token: CoinGecko when
// the token carries a coingecko id, the Jupiter price API otherwise. A miss
// returns (nil, nil): price data is advisory and the chat layer must keep
// working without it.
type PriceOracle struct {
	coinGeckoURL string
	jupiterURL   string
	http         *http.Client
	logger       *logrus.Logger
}

// PriceOracleConfig holds configuration for the price oracle client.
type PriceOracleConfig struct {
	CoinGeckoURL string
	JupiterURL   string
	Timeout      time.Duration
	Logger       *logrus.Logger
}

func NewPriceOracle(cfg PriceOracleConfig) *PriceOracle {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &PriceOracle{
		coinGeckoURL: strings.TrimRight(cfg.CoinGeckoURL, "/"),
		jupiterURL:   strings.TrimRight(cfg.JupiterURL, "/"),
		http:         &http.Client{Timeout: cfg.Timeout},
		logger:       cfg.Logger,
	}
}

// Price returns the current USD price for the token, or nil on a miss.
func (o *PriceOracle) Price(ctx context.Context, t *Token) (*float64, error) {
	if id := t.CoinGeckoID(); id != "" {
		return o.byCoinGeckoID(ctx, id)
	}
	return o.byMint(ctx, t.Address)
}

func (o *PriceOracle) byCoinGeckoID(ctx context.Context, id string) (*float64, error) {
	u := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd", o.coinGeckoURL, url.QueryEscape(id))

	var resp map[string]struct {
		USD *float64 `json:"usd"`
	}
	if err := o.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	if entry, ok := resp[id]; ok {
		return entry.USD, nil
	}
	return nil, nil
}

func (o *PriceOracle) byMint(ctx context.Context, mint string) (*float64, error) {
	u := fmt.Sprintf("%s?ids=%s", o.jupiterURL, url.QueryEscape(mint))

	// Jupiter returns prices as decimal strings keyed by mint.
	var resp struct {
		Data map[string]*struct {
			Price string `json:"price"`
		} `json:"data"`
	}
	if err := o.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}

	entry, ok := resp.Data[mint]
	if !ok || entry == nil {
		return nil, nil
	}
	p, err := strconv.ParseFloat(entry.Price, 64)
	if err != nil {
		o.logger.WithField("price", entry.Price).Debug("unparseable price from jupiter")
		return nil, nil
	}
	return &p, nil
}

func (o *PriceOracle) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("accept", "application/json")

	res, err := o.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("price api http %d", res.StatusCode)
	}
	return json.Unmarshal(body, out)
}

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// httpRateProvider asks an HTTP endpoint for one rate per request:
// GET <base>?from=USD&to=EUR answers {"rate": 0.92}
type httpRateProvider struct {
	base   string
	client *http.Client
}

func newHTTPRateProvider(base string, timeout time.Duration) *httpRateProvider {
	return &httpRateProvider{
		base:   base,
		client: &http.Client{Timeout: timeout},
	}
}

type rateResponse struct {
	Rate float64 `json:"rate"`
}

func (p *httpRateProvider) FetchRate(ctx context.Context, from, to string) (float64, error) {
	u, err := url.Parse(p.base)
	if err != nil {
		return 0, errors.Wrap(err, "rates url")
	}
	query := u.Query()
	query.Set("from", from)
	query.Set("to", to)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, errors.Wrapf(err, "fetch %s->%s", from, to)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, errors.Errorf("fetch %s->%s: %s", from, to, resp.Status)
	}
	var body rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, errors.Wrapf(err, "decode %s->%s", from, to)
	}
	return body.Rate, nil
}

package linecalc

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// RateProvider fetches a live exchange rate: how many units of to one unit of
// from buys. implementations must honor ctx cancellation.
type RateProvider interface {
	FetchRate(ctx context.Context, from, to string) (float64, error)
}

var errNoProvider = errors.New("no rate provider configured")

var currencyAliases = map[string]string{
	"usd": "USD", "dollar": "USD", "dollars": "USD", "buck": "USD", "bucks": "USD",
	"eur": "EUR", "euro": "EUR", "euros": "EUR",
	"gbp": "GBP", "sterling": "GBP", "quid": "GBP",
	"jpy": "JPY", "yen": "JPY",
	"chf": "CHF", "franc": "CHF", "francs": "CHF",
	"cad": "CAD",
	"aud": "AUD",
	"nzd": "NZD",
	"cny": "CNY", "yuan": "CNY", "rmb": "CNY",
	"inr": "INR", "rupee": "INR", "rupees": "INR",
	"sek": "SEK",
	"nok": "NOK",
	"dkk": "DKK",
	"mxn": "MXN", "peso": "MXN", "pesos": "MXN",
	"brl": "BRL", "real": "BRL", "reais": "BRL",
	"krw": "KRW", "won": "KRW",
}

// CurrencyConverter converts between currencies using a RateProvider, an
// expiring cache of fetched rates, and static fallback rates
type CurrencyConverter struct {
	provider RateProvider
	timeout  time.Duration
	rates    *expirable.LRU[string, float64]
	failures *expirable.LRU[string, string]
	fallback map[string]float64
	logger   logrus.FieldLogger
	metrics  *Metrics
}

func NewCurrencyConverter(cfg Config, provider RateProvider, logger logrus.FieldLogger, metrics *Metrics) *CurrencyConverter {
	fallback := make(map[string]float64, len(cfg.FallbackRates))
	for code, rate := range cfg.FallbackRates {
		fallback[strings.ToUpper(code)] = rate
	}
	return &CurrencyConverter{
		provider: provider,
		timeout:  cfg.CurrencyTimeout,
		rates:    expirable.NewLRU[string, float64](cfg.RateCacheSize, nil, cfg.RateCacheTTL),
		failures: expirable.NewLRU[string, string](cfg.RateCacheSize, nil, cfg.RateFailureTTL),
		fallback: fallback,
		logger:   logger,
		metrics:  metrics,
	}
}

// Lookup resolves an ISO code or common name to an ISO code
func (c *CurrencyConverter) Lookup(name string) (string, bool) {
	lower := strings.ToLower(name)
	if code, ok := currencyAliases[lower]; ok {
		return code, true
	}
	upper := strings.ToUpper(name)
	if _, ok := c.fallback[upper]; ok {
		return upper, true
	}
	return "", false
}

// IsCurrency reports whether unit is a known ISO code
func (c *CurrencyConverter) IsCurrency(unit string) bool {
	if unit == "" {
		return false
	}
	code, ok := c.Lookup(unit)
	return ok && code == unit
}

// Convert converts amount between two ISO codes. provider trouble degrades
// to fallback rates and a ProviderUnavailable notice rather than an error.
func (c *CurrencyConverter) Convert(ctx context.Context, amount float64, from, to string) Result {
	if from == to {
		return NumberWithUnit(amount, to)
	}
	rate, err := c.liveRate(ctx, from, to)
	if err == nil {
		return checkFinite(NumberWithUnit(amount*rate, to))
	}

	fromRate, okFrom := c.fallback[from]
	toRate, okTo := c.fallback[to]
	if !okFrom {
		return ErrorResult(ErrorKindUnknownCurrency, "no rate for %s", from)
	}
	if !okTo {
		return ErrorResult(ErrorKindUnknownCurrency, "no rate for %s", to)
	}

	c.logger.WithFields(logrus.Fields{
		"from":  from,
		"to":    to,
		"error": err.Error(),
	}).Warn("currency provider unavailable, using fallback rate")
	if c.metrics != nil {
		c.metrics.currencyFallbacks.Inc()
	}

	notice := NewLineError(ErrorKindProviderUnavailable, "%s->%s uses a fallback rate: %s", from, to, err.Error())
	return checkFinite(NumberWithUnit(amount*toRate/fromRate, to)).withNotice(notice)
}

func (c *CurrencyConverter) liveRate(ctx context.Context, from, to string) (float64, error) {
	key := from + "/" + to
	if rate, ok := c.rates.Get(key); ok {
		return rate, nil
	}
	if reason, ok := c.failures.Get(key); ok {
		return 0, errors.New(reason)
	}
	if c.provider == nil {
		return 0, errNoProvider
	}

	rate, err := c.fetch(ctx, from, to)
	if err != nil {
		c.failures.Add(key, err.Error())
		return 0, err
	}
	c.rates.Add(key, rate)
	return rate, nil
}

type fetchResult struct {
	rate float64
	err  error
}

// fetch bounds the provider call by the timeout, whether or not the
// provider honors ctx
func (c *CurrencyConverter) fetch(ctx context.Context, from, to string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan fetchResult, 1)
	go func() {
		rate, err := c.provider.FetchRate(ctx, from, to)
		done <- fetchResult{rate: rate, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return 0, errors.Wrapf(res.err, "fetch %s/%s", from, to)
		}
		if res.rate <= 0 {
			return 0, errors.Errorf("fetch %s/%s: invalid rate %v", from, to, res.rate)
		}
		return res.rate, nil
	case <-ctx.Done():
		return 0, errors.Wrapf(ctx.Err(), "fetch %s/%s", from, to)
	}
}

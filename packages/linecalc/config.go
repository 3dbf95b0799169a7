package linecalc

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Config tunes a Workbook. the zero value is not usable, start from
// DefaultConfig.
type Config struct {
	// DebounceWindow is how long AutoRecompute waits after the last edit
	DebounceWindow time.Duration `mapstructure:"debounce_window"`

	// CurrencyTimeout bounds a single rate fetch
	CurrencyTimeout time.Duration `mapstructure:"currency_timeout"`

	RateCacheTTL   time.Duration `mapstructure:"rate_cache_ttl"`
	RateFailureTTL time.Duration `mapstructure:"rate_failure_ttl"`
	RateCacheSize  int           `mapstructure:"rate_cache_size"`

	// FallbackRates are units of each currency per US dollar, used when the
	// rate provider is missing or fails
	FallbackRates map[string]float64 `mapstructure:"fallback_rates"`

	LogLevel string `mapstructure:"log_level"`

	// EagerPropagation makes RunScheduledRecompute also refresh every sheet
	// that depends on an edited sheet, not just the active one
	EagerPropagation bool `mapstructure:"eager_propagation"`
}

func DefaultConfig() Config {
	return Config{
		DebounceWindow:  150 * time.Millisecond,
		CurrencyTimeout: 2 * time.Second,
		RateCacheTTL:    time.Hour,
		RateFailureTTL:  time.Minute,
		RateCacheSize:   256,
		FallbackRates:   defaultFallbackRates(),
		LogLevel:        "warn",
	}
}

func defaultFallbackRates() map[string]float64 {
	return map[string]float64{
		"USD": 1,
		"EUR": 0.92,
		"GBP": 0.79,
		"JPY": 150,
		"CHF": 0.88,
		"CAD": 1.36,
		"AUD": 1.52,
		"NZD": 1.64,
		"CNY": 7.2,
		"INR": 83,
		"SEK": 10.5,
		"NOK": 10.6,
		"DKK": 6.9,
		"MXN": 17,
		"BRL": 5,
		"KRW": 1330,
	}
}

// Validate checks the config for values the engine cannot work with
func (c Config) Validate() error {
	if c.DebounceWindow < 0 {
		return errors.WithStack(NewApplicationError(InvalidArgument, "debounce window must not be negative"))
	}
	if c.CurrencyTimeout <= 0 {
		return errors.WithStack(NewApplicationError(InvalidArgument, "currency timeout must be positive"))
	}
	if c.RateCacheTTL <= 0 || c.RateFailureTTL <= 0 {
		return errors.WithStack(NewApplicationError(InvalidArgument, "rate cache ttls must be positive"))
	}
	if c.RateCacheSize <= 0 {
		return errors.WithStack(NewApplicationError(InvalidArgument, "rate cache size must be positive"))
	}
	for code, rate := range c.FallbackRates {
		if rate <= 0 {
			return errors.WithStack(NewApplicationError(InvalidArgument, "fallback rate for %s must be positive", code))
		}
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.WithStack(NewApplicationError(InvalidArgument, "invalid log level %q", c.LogLevel))
	}
	return nil
}

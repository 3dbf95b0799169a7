package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vogtb/go-linecalc/packages/linecalc"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var cfgFile string

var log = logrus.New()

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $(PWD)/.linecalc.yaml)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "print informational logging")
	rootCmd.PersistentFlags().String("rates-url", "", "HTTP endpoint answering ?from=USD&to=EUR with {\"rate\": <float>}")

	rootCmd.AddCommand(evalCmd, runCmd, watchCmd, exportCmd)
	cobra.OnInitialize(initConfig)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetEnvPrefix("linecalc")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	viper.SetConfigName(".linecalc")
	viper.AddConfigPath(".")

	viper.BindPFlags(rootCmd.PersistentFlags())

	defaults := linecalc.DefaultConfig()
	viper.SetDefault("debounce_window", defaults.DebounceWindow)
	viper.SetDefault("currency_timeout", defaults.CurrencyTimeout)
	viper.SetDefault("rate_cache_ttl", defaults.RateCacheTTL)
	viper.SetDefault("rate_failure_ttl", defaults.RateFailureTTL)
	viper.SetDefault("rate_cache_size", defaults.RateCacheSize)
	viper.SetDefault("log_level", defaults.LogLevel)

	err := viper.ReadInConfig()

	// ReadInConfig fails when there is no config file at all, which is only
	// an error if one was named.
	if viper.ConfigFileUsed() != "" && err != nil {
		fmt.Fprintf(os.Stderr, "Error reading linecalc configuration: %s\n", err)
		os.Exit(2)
	}
}

var rootCmd = &cobra.Command{
	Use:   "linecalc",
	Short: "Evaluate multi-sheet line calculator workbooks",
	Long: `linecalc evaluates workbooks of line-oriented calculations: each line
is an expression that may reference earlier lines (LN3), lines of other
sheets (S.Data.LN2), units, currencies, timecodes and dates.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(viper.GetString("log_level"))
		if err != nil {
			return errors.Wrap(err, "log_level")
		}
		log.SetLevel(level)
		if viper.GetBool("debug") {
			log.SetLevel(logrus.DebugLevel)
		} else if viper.GetBool("verbose") {
			log.SetLevel(logrus.InfoLevel)
		}
		log.Debugf("Using config file: %s", viper.ConfigFileUsed())
		return nil
	},
	SilenceUsage: true,
}

// loadConfig builds the engine config from viper. keys viper does not know
// keep their DefaultConfig values.
func loadConfig() (linecalc.Config, error) {
	cfg := linecalc.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, errors.Wrap(err, "decode configuration")
	}
	// viper lower-cases map keys; configured rates win over the defaults
	rates := make(map[string]float64, len(cfg.FallbackRates))
	for code, rate := range cfg.FallbackRates {
		upper := strings.ToUpper(code)
		if _, seen := rates[upper]; seen && code == upper {
			continue
		}
		rates[upper] = rate
	}
	cfg.FallbackRates = rates
	if viper.GetBool("debug") {
		cfg.LogLevel = logrus.DebugLevel.String()
	}
	return cfg, cfg.Validate()
}

// newWorkbook creates a workbook wired to the CLI config, logger and rate
// provider
func newWorkbook() (*linecalc.Workbook, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return workbookFor(cfg)
}

// workbookFor builds the workbook every command shares. the CLI prints all
// sheets and has no active one, so edits always propagate to their readers.
func workbookFor(cfg linecalc.Config) (*linecalc.Workbook, error) {
	cfg.EagerPropagation = true
	opts := []linecalc.Option{
		linecalc.WithConfig(cfg),
		linecalc.WithLogger(log),
	}
	if url := viper.GetString("rates-url"); url != "" {
		opts = append(opts, linecalc.WithRateProvider(newHTTPRateProvider(url, cfg.CurrencyTimeout)))
	}
	return linecalc.NewWorkbook(opts...)
}

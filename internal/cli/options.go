package cli

import (
	"github.com/spf13/cobra"

	"crosscheck/internal/config"
	"crosscheck/internal/models"
	"crosscheck/internal/runner"
	"crosscheck/internal/strategy"
	"crosscheck/internal/trend"
)

// windowFlags override the configured validation windows.
type windowFlags struct {
	golden string
	death  string
	basis  string
}

func addWindowFlags(cmd *cobra.Command, f *windowFlags) {
	cmd.Flags().StringVar(&f.golden, "golden-policy", "", "window after buys: until_opposite or fixed_months:N (default from config)")
	cmd.Flags().StringVar(&f.death, "death-policy", "", "window after sells: until_opposite or fixed_months:N (default from config)")
	cmd.Flags().StringVar(&f.basis, "basis", "", "comparison basis: average or terminal (default from config)")
}

// apply overlays the flags on the configured runner options.
func (f *windowFlags) apply(opts runner.Options) (runner.Options, error) {
	var err error
	if f.golden != "" {
		if opts.GoldenPolicy, err = trend.ParsePolicy(f.golden, models.EventBuy); err != nil {
			return opts, err
		}
	}
	if f.death != "" {
		if opts.DeathPolicy, err = trend.ParsePolicy(f.death, models.EventSell); err != nil {
			return opts, err
		}
	}
	if f.basis != "" {
		if opts.Basis, err = trend.ParseBasis(f.basis); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// strategyFlags override the configured crossover rule.
type strategyFlags struct {
	params strategy.Params
	from   string
	to     string
}

func addStrategyFlags(cmd *cobra.Command, f *strategyFlags) {
	d := strategy.DefaultParams()
	cmd.Flags().IntVar(&f.params.Fast, "fast", d.Fast, "fast moving average period")
	cmd.Flags().IntVar(&f.params.Slow, "slow", d.Slow, "slow moving average period")
	cmd.Flags().StringVar(&f.params.Average, "average", d.Average, "moving average type: sma or ema")
	cmd.Flags().StringVar((*string)(&f.params.Exit), "exit", string(d.Exit), "exit rule: death_cross or hold_months")
	cmd.Flags().IntVar(&f.params.HoldMonths, "hold-months", d.HoldMonths, "months held with --exit hold_months")
	cmd.Flags().StringVar(&f.from, "from", "", "first date of price data YYYY-MM-DD (default from config)")
	cmd.Flags().StringVar(&f.to, "to", "", "last date of price data YYYY-MM-DD (default from config)")
}

// resolve merges changed flags over the configured strategy and date range.
func (f *strategyFlags) resolve(cmd *cobra.Command, cfg *config.Config, opts runner.Options) (strategy.Params, runner.Options, error) {
	params := cfg.Strategy
	changed := cmd.Flags().Changed
	if changed("fast") {
		params.Fast = f.params.Fast
	}
	if changed("slow") {
		params.Slow = f.params.Slow
	}
	if changed("average") {
		params.Average = f.params.Average
	}
	if changed("exit") {
		params.Exit = f.params.Exit
	}
	if changed("hold-months") {
		params.HoldMonths = f.params.HoldMonths
	}
	if err := params.Validate(); err != nil {
		return params, opts, err
	}

	dates := *cfg
	if changed("from") {
		dates.Data.From = f.from
	}
	if changed("to") {
		dates.Data.To = f.to
	}
	from, to, err := dates.DateRange()
	if err != nil {
		return params, opts, err
	}
	opts.From, opts.To = from, to
	return params, opts, nil
}

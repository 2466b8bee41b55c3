package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/calc-back/internal/external"
	"github.com/calc-back/internal/market"
	"github.com/calc-back/internal/valuation"
	"github.com/calc-back/pkg/config"
	"github.com/calc-back/pkg/logger"
	"github.com/calc-back/pkg/models"
)

var quoteCmd = &cobra.Command{
	Use:   "quote [amount symbol]...",
	Short: "Value a basket once and exit",
	Long: `Fetch current prices and the exchange rate, value the given basket,
and print the result. Arguments come in amount/symbol pairs.

Examples:
  calc-back quote 0.5 BTC            # Value half a bitcoin
  calc-back quote 0.5 BTC 10 ETH     # Value a two-line basket
  calc-back quote                    # Just print current prices`,
	RunE: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
}

func runQuote(cmd *cobra.Command, args []string) error {
	if len(args)%2 != 0 {
		return fmt.Errorf("arguments must come in amount/symbol pairs, got %d", len(args))
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store := market.NewStore(log)
	rates := market.NewRateStore(cfg.Rates.Currency, cfg.Rates.Fallback, log)

	// Fetch the exchange rate first; the fallback covers a failure
	fx := external.NewExchangeRateClient(&cfg.Rates, log)
	if multiplier, err := fx.FetchRate(ctx, cfg.Rates.Currency); err != nil {
		fmt.Printf("Note: exchange rate unavailable, using fallback %.2f: %v\n", cfg.Rates.Fallback, err)
	} else {
		rates.Set(multiplier)
	}

	// Prices are mandatory; without them there is nothing to value
	gecko := external.NewCoinGeckoClient(&cfg.Market, log)
	assets, err := gecko.FetchMarkets(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch market data: %w", err)
	}
	store.Replace(assets)

	rate := rates.Rate()

	fmt.Printf("%-8s %-24s %16s\n", "Symbol", "Name", "Price (USD)")
	fmt.Println(strings.Repeat("-", 50))
	for _, asset := range store.Assets() {
		fmt.Printf("%-8s %-24s %16s\n", asset.Symbol, asset.Name, valuation.FormatFiat(asset.PriceUSD))
	}

	if len(args) == 0 {
		return nil
	}

	items := make([]models.LineItem, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		items = append(items, models.LineItem{Amount: args[i], Symbol: args[i+1]})
	}

	totals := valuation.ComputeTotals(items, store.Snapshot(), rate)

	fmt.Println()
	fmt.Printf("Total (USD):  %s\n", totals.USD)
	fmt.Printf("Total (%s):  %s\n", rate.Currency, totals.Local)
	if totals.BTC != nil {
		fmt.Printf("Total (BTC):  %s\n", *totals.BTC)
	}

	return nil
}

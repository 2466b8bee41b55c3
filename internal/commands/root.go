package commands

import (
	"github.com/spf13/cobra"
)

var (
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "calc-back",
	Short: "Crypto Basket Calculator Backend",
	Long: `A backend for the crypto basket calculator, built with Go.

Features:
• Periodic market data refresh from CoinGecko
• USD to local currency conversion with a cached exchange rate
• Per-session line item baskets with live USD/local/BTC totals
• Prepend-only calculation history per session
• WebSocket push of market updates to connected browsers
• Optional Redis snapshot cache and NATS event publishing`,
	Version: "1.0.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quantfolio/fundfacts/internal/monitoring"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Show today's external-call budget usage",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initLookup(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		snap, err := env.Collector.Collect(ctx)
		if err != nil {
			return err
		}

		formatSnapshot(os.Stdout, snap)
		return nil
	},
}

func formatSnapshot(w *os.File, snap *monitoring.MetricsSnapshot) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "calls today\t%d / %d\n", snap.BudgetCallsToday, snap.BudgetLimit)
	fmt.Fprintf(tw, "remaining\t%d\n", snap.BudgetRemaining)
	fmt.Fprintf(tw, "used\t%.0f%%\n", snap.BudgetUsedFraction*100)
	fmt.Fprintf(tw, "estimated spend\t$%.4f\n", snap.EstimatedSpendUSD)
	fmt.Fprintf(tw, "cached funds\t%d\n", snap.CachedFunds)
	if snap.BreakerState != "" {
		fmt.Fprintf(tw, "breaker\t%s\n", snap.BreakerState)
	}
	_ = tw.Flush()
}

func init() {
	rootCmd.AddCommand(budgetCmd)
}

package main

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/quantfolio/fundfacts/internal/model"
)

var (
	lookupAMFI       string
	lookupISIN       string
	lookupMinConf    string
	lookupBatch      bool
	lookupConcurrent int
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <fund-name> [fund-name...]",
	Short: "Look up facts for one or more funds",
	Long:  "Resolves each fund through the augmentation pipeline and prints the merged fact bundle as JSON. With --batch, all funds share a single external call.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initLookup(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var minConf model.Confidence
		if lookupMinConf != "" {
			minConf, err = model.ParseConfidence(lookupMinConf)
			if err != nil {
				return err
			}
		}

		funds := make([]model.FundIdentity, len(args))
		for i, name := range args {
			funds[i] = model.FundIdentity{Name: name}
		}
		// Registry identifiers only make sense for a single fund.
		if len(funds) == 1 {
			funds[0].RegistryCode = lookupAMFI
			funds[0].ISIN = lookupISIN
		}

		var results []*model.AugmentedFacts
		if lookupBatch && len(funds) > 1 {
			results, err = env.Orchestrator.LookupBatch(ctx, funds)
			if err != nil {
				return err
			}
		} else {
			results = make([]*model.AugmentedFacts, len(funds))
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(lookupConcurrent)

			var mu sync.Mutex
			for i, fund := range funds {
				g.Go(func() error {
					resp, err := env.Orchestrator.Lookup(gctx, fund, minConf)
					if err != nil {
						return err
					}
					mu.Lock()
					results[i] = resp
					mu.Unlock()
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if len(results) == 1 {
			return enc.Encode(results[0])
		}
		return enc.Encode(results)
	},
}

func init() {
	lookupCmd.Flags().StringVar(&lookupAMFI, "amfi", "", "AMFI scheme code (single fund only)")
	lookupCmd.Flags().StringVar(&lookupISIN, "isin", "", "ISIN (single fund only)")
	lookupCmd.Flags().StringVar(&lookupMinConf, "min-confidence", "", "confidence floor: high or medium (default from config)")
	lookupCmd.Flags().BoolVar(&lookupBatch, "batch", false, "resolve all funds with a single external call")
	lookupCmd.Flags().IntVar(&lookupConcurrent, "concurrency", 4, "max concurrent lookups")
	rootCmd.AddCommand(lookupCmd)
}

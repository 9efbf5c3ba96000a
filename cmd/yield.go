package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/solaris/api/farms"
	"github.com/kilianp07/solaris/core/metrics/yield"
	"github.com/kilianp07/solaris/core/series"
	"github.com/kilianp07/solaris/infra/storage"
	"github.com/kilianp07/solaris/jobs/yieldkpi"
	"github.com/kilianp07/solaris/pkg/export"
)

var yieldOpts struct {
	farm string
	path string
}

var yieldCmd = &cobra.Command{
	Use:   "yield",
	Short: "Rebuild the daily yield of a farm from its recorded output",
	RunE:  backfillYield,
}

func init() {
	yieldCmd.Flags().StringVar(&yieldOpts.farm, "farm", "", "farm id, defaults to the configured farm")
	yieldCmd.Flags().StringVar(&yieldOpts.path, "sqlite", "", "also persist the records in this SQLite database")
	rootCmd.AddCommand(yieldCmd)
}

func backfillYield(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	farmID := yieldOpts.farm
	if farmID == "" {
		farmID = cfg.Farm.ID
	}
	stores, err := storage.Open(cfg.Storage)
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()
	samples, err := stores.Series.Query(context.Background(), series.Query{FarmID: farmID})
	if err != nil {
		return fmt.Errorf("query series: %w", err)
	}
	if len(samples) == 0 {
		return fmt.Errorf("no samples recorded for farm %s", farmID)
	}

	var store yield.Store = yield.NewMemoryStore()
	if yieldOpts.path != "" {
		db, err := storage.OpenSQLite(yieldOpts.path)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		store = db.Yield()
	}
	if err := yieldkpi.Backfill(store, samples, cfg.Simulation.Step); err != nil {
		return fmt.Errorf("backfill: %w", err)
	}
	recs, err := store.Query(farmID, samples[0].Timestamp, samples[len(samples)-1].Timestamp)
	if err != nil {
		return err
	}
	return export.WriteJSON(cmd.OutOrStdout(), farms.DailyYields(recs, cfg.Metrics.EmissionFactor))
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/solaris/app"
	"github.com/kilianp07/solaris/core/model"
	"github.com/kilianp07/solaris/core/series"
	"github.com/kilianp07/solaris/infra/storage"
	"github.com/kilianp07/solaris/pkg/export"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [run-id]",
	Short: "Describe the latest checkpoint and the recorded output",
	Args:  cobra.MaximumNArgs(1),
	RunE:  inspectRun,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

// Inspection is the report printed by inspect.
type Inspection struct {
	RunID    string         `json:"run_id"`
	FarmID   string         `json:"farm_id"`
	Step     int            `json:"step"`
	Cursor   time.Time      `json:"cursor"`
	SavedAt  time.Time      `json:"saved_at"`
	Panels   int            `json:"panels"`
	Statuses map[string]int `json:"statuses"`
	Summary  series.Summary `json:"summary"`
}

func inspectRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	stores, err := storage.Open(cfg.Storage)
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()

	id := ""
	if len(args) == 1 {
		id = args[0]
	}
	ctx := context.Background()
	snap, err := app.LatestSnapshot(ctx, stores.Checkpoints, id)
	if err != nil {
		return err
	}
	samples, err := stores.Series.Query(ctx, series.Query{FarmID: snap.FarmID, End: snap.Cursor})
	if err != nil {
		return fmt.Errorf("query series: %w", err)
	}
	report := Inspection{
		RunID:    snap.RunID,
		FarmID:   snap.FarmID,
		Step:     snap.Step,
		Cursor:   snap.Cursor,
		SavedAt:  snap.SavedAt,
		Panels:   len(snap.Panels),
		Statuses: map[string]int{},
		Summary:  series.Summarize(samples),
	}
	for _, st := range []model.PanelStatus{model.StatusOperational, model.StatusDegraded, model.StatusFailed} {
		report.Statuses[st.String()] = 0
	}
	for _, p := range snap.Panels {
		report.Statuses[p.Status.String()]++
	}
	return export.WriteJSON(cmd.OutOrStdout(), report)
}

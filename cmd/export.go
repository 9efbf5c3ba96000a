package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/solaris/core/series"
	"github.com/kilianp07/solaris/infra/storage"
	"github.com/kilianp07/solaris/pkg/export"
)

var exportOpts struct {
	format string
	out    string
	farm   string
	panel  string
	from   string
	to     string
	panels bool
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the recorded farm samples as csv, json or parquet",
	RunE:  exportSeries,
}

func init() {
	f := exportCmd.Flags()
	f.StringVarP(&exportOpts.format, "format", "f", "csv", "csv, json or parquet")
	f.StringVarP(&exportOpts.out, "out", "o", "", "output file, stdout when empty")
	f.StringVar(&exportOpts.farm, "farm", "", "farm id, defaults to the configured farm")
	f.StringVar(&exportOpts.panel, "panel", "", "keep a single panel")
	f.StringVar(&exportOpts.from, "from", "", "first timestamp (RFC3339)")
	f.StringVar(&exportOpts.to, "to", "", "last timestamp (RFC3339)")
	f.BoolVar(&exportOpts.panels, "panels", false, "one row per panel and step")
	rootCmd.AddCommand(exportCmd)
}

func exportSeries(cmd *cobra.Command, args []string) error {
	format, err := export.ParseFormat(exportOpts.format)
	if err != nil {
		return err
	}
	q := series.Query{FarmID: exportOpts.farm, PanelID: exportOpts.panel}
	if q.Start, err = parseTime(exportOpts.from); err != nil {
		return fmt.Errorf("from: %w", err)
	}
	if q.End, err = parseTime(exportOpts.to); err != nil {
		return fmt.Errorf("to: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if q.FarmID == "" {
		q.FarmID = cfg.Farm.ID
	}
	stores, err := storage.Open(cfg.Storage)
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()
	samples, err := stores.Series.Query(context.Background(), q)
	if err != nil {
		return fmt.Errorf("query series: %w", err)
	}

	var w io.Writer = cmd.OutOrStdout()
	if exportOpts.out != "" {
		f, err := os.Create(exportOpts.out)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	return export.Write(w, format, samples, exportOpts.panels)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

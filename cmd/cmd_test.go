package cmd

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/solaris/api/farms"
)

const testConfig = `
farm:
  id: cli-farm
  seed: 9
  start: "2024-03-01T00:00:00Z"
  layout:
    rows: 1
    cols: 4
    spacing_m: 2
simulation:
  end: "2024-03-01T06:00:00Z"
  step: 1h
  checkpoint_every: 3
baseline:
  model: constant
  power_w: 250
  voltage_v: 30
  current_a: 8.33
storage:
  series:
    backend: sqlite
    path: %DIR%/cli.db
  checkpoints:
    backend: sqlite
    path: %DIR%/cli.db
logging:
  level: error
`

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestRunInspectExport(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.ReplaceAll(testConfig, "%DIR%", dir)), 0o600))

	out := execute(t, "run", "-c", path, "--run-id", "cli-run")
	assert.Contains(t, out, "run cli-run completed 6 steps")

	var report Inspection
	require.NoError(t, json.Unmarshal([]byte(execute(t, "inspect", "-c", path, "cli-run")), &report))
	assert.Equal(t, "cli-farm", report.FarmID)
	assert.Equal(t, 6, report.Step)
	assert.Equal(t, 4, report.Panels)
	assert.Equal(t, 6, report.Summary.Steps)
	total := 0
	for _, n := range report.Statuses {
		total += n
	}
	assert.Equal(t, 4, total)

	rows, err := csv.NewReader(strings.NewReader(execute(t, "export", "-c", path, "--format", "csv"))).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 7)
	assert.Equal(t, "cli-farm", rows[1][2])

	parquet := filepath.Join(dir, "panels.parquet")
	execute(t, "export", "-c", path, "--format", "parquet", "--panels", "--out", parquet)
	b, err := os.ReadFile(parquet)
	require.NoError(t, err)
	assert.Equal(t, "PAR1", string(b[:4]))
	exportOpts.out, exportOpts.panels, exportOpts.format = "", false, "csv"

	var days []farms.DailyYield
	require.NoError(t, json.Unmarshal([]byte(execute(t, "yield", "-c", path, "--sqlite", filepath.Join(dir, "yield.db"))), &days))
	require.Len(t, days, 1)
	assert.Equal(t, "2024-03-01", days[0].Date)
	assert.Positive(t, days[0].ActualKWh)
	assert.LessOrEqual(t, days[0].ActualKWh, days[0].IdealKWh)
	yieldOpts.path = ""
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	rootCmd.SetArgs([]string{"export", "-c", "", "--format", "xlsx"})
	assert.Error(t, rootCmd.Execute())
	exportOpts.format = "csv"
}

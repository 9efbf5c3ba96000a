package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/solaris/app"
	"github.com/kilianp07/solaris/infra/logger"
)

var runID string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate the configured farm from its start",
	RunE:  runSimulation,
}

var resumeCmd = &cobra.Command{
	Use:   "resume [run-id]",
	Short: "Continue a run from its latest checkpoint",
	Args:  cobra.MaximumNArgs(1),
	RunE:  resumeSimulation,
}

func init() {
	runCmd.Flags().StringVar(&runID, "run-id", "", "identifier of the run, generated when empty")
	rootCmd.AddCommand(runCmd, resumeCmd)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runID != "" {
		cfg.Simulation.RunID = runID
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer closeService(svc)
	if err := svc.Run(ctx); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "run %s completed %d steps\n", svc.Driver.RunID(), svc.Driver.Step())
	return err
}

func resumeSimulation(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	id := ""
	if len(args) == 1 {
		id = args[0]
	}
	svc, err := app.NewResume(ctx, cfg, id)
	if err != nil {
		return err
	}
	defer closeService(svc)
	if err := svc.Run(ctx); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "run %s completed %d steps\n", svc.Driver.RunID(), svc.Driver.Step())
	return err
}

func closeService(svc *app.Service) {
	if err := svc.Close(); err != nil {
		logger.New("main").Errorf("service close: %v", err)
	}
}

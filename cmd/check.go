package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maelqr/carbonsched/app"
	"github.com/maelqr/carbonsched/config"
	"github.com/maelqr/carbonsched/core/model"
)

var checkCmd = &cobra.Command{
	Use:          "check",
	Short:        "Evaluate the gate once and print the decision",
	RunE:         checkGate,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func checkGate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close() //nolint:errcheck

	d := svc.Scheduler.Evaluate(ctx)
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%.0f gCO2eq/kWh, %s, %s)\n",
		d.Verdict, d.Reason, d.Reading.Intensity, d.Reading.Region, d.Reading.Source)
	if d.Verdict != model.VerdictProceed {
		return fmt.Errorf("gate verdict: %s", d.Verdict)
	}
	return nil
}

// Package cmd implements the carbonsched command line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maelqr/carbonsched/app"
	"github.com/maelqr/carbonsched/config"
	"github.com/maelqr/carbonsched/core/energy"
	"github.com/maelqr/carbonsched/core/model"
	"github.com/maelqr/carbonsched/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "carbonsched",
	Short: "Carbon-aware training scheduler",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.AddCommand(runCmd)
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

var runCmd = &cobra.Command{
	Use:   "run -- <command> [args...]",
	Short: "Gate a training command on grid carbon intensity",
	Long: `Waits for an acceptable carbon intensity, then executes the given
training command under energy monitoring. The command is stopped when the
carbon budget runs out.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTraining,
}

func runTraining(cmd *cobra.Command, args []string) error {
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
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	svc.Start(ctx)

	rep, err := svc.Run(ctx, func(ctx context.Context, tuned model.TrainingConfig, _ *energy.Monitor) error {
		c := exec.CommandContext(ctx, args[0], args[1:]...)
		c.Stdout = cmd.OutOrStdout()
		c.Stderr = cmd.ErrOrStderr()
		c.Env = append(os.Environ(),
			fmt.Sprintf("CARBONSCHED_BATCH_SIZE=%d", tuned.BatchSize),
			fmt.Sprintf("CARBONSCHED_PRECISION=%s", tuned.Precision),
			fmt.Sprintf("CARBONSCHED_EPOCHS=%d", tuned.Epochs),
		)
		return c.Run()
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "session %s: %.6f kWh, %.2f gCO2eq, $%.4f\n",
		rep.SessionID, rep.Energy.TotalKWh, rep.EmissionsG, rep.CostUSD)
	return nil
}

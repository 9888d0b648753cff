package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/maelqr/carbonsched/config"
	"github.com/maelqr/carbonsched/core/report"
)

var (
	reportRegion string
	reportSince  time.Duration
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "List stored session reports",
	RunE:  listReports,
}

func init() {
	reportCmd.Flags().StringVar(&reportRegion, "region", "", "filter by region")
	reportCmd.Flags().DurationVar(&reportSince, "since", 0, "only sessions newer than this, e.g. 24h")
	rootCmd.AddCommand(reportCmd)
}

func listReports(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := report.NewJSONLStore(cfg.Report.Path)
	if err != nil {
		return fmt.Errorf("report store: %w", err)
	}
	defer store.Close() //nolint:errcheck

	q := report.Query{Region: reportRegion}
	if reportSince > 0 {
		q.Start = time.Now().Add(-reportSince)
	}
	reports, err := store.Query(context.Background(), q)
	if err != nil {
		return err
	}

	var totalKWh, totalG, totalUSD float64
	for _, r := range reports {
		status := r.FinalVerdict.String()
		if r.Partial {
			status += " (partial: " + r.AbortReason + ")"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %-6s %s  %.6f kWh  %.2f gCO2eq  $%.4f  %s\n",
			r.StartedAt.Format(time.RFC3339), r.Region, r.SessionID, r.Energy.TotalKWh, r.EmissionsG, r.CostUSD, status)
		totalKWh += r.Energy.TotalKWh
		totalG += r.EmissionsG
		totalUSD += r.CostUSD
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d sessions, %.6f kWh, %.2f gCO2eq, $%.4f\n",
		len(reports), totalKWh, totalG, totalUSD)
	return nil
}

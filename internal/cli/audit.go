package cli

import (
	"github.com/spf13/cobra"

	"github.com/RBarbieri13/Decant-sub001/internal/domain"
	"github.com/RBarbieri13/Decant-sub001/internal/service"
)

var historyCmd = &cobra.Command{
	Use:   "history <node-id>",
	Short: "Show the code history of a node, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hierarchy, _ := cmd.Flags().GetString("hierarchy")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		changes, err := a.Audit.GetNodeHistory(cmd.Context(), args[0], service.HistoryFilter{
			HierarchyType: domain.HierarchyType(hierarchy),
			Limit:         limit,
			Offset:        offset,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, changes)
	},
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show the newest code changes across all nodes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		changes, total, err := a.Audit.GetRecentChanges(cmd.Context(), limit)
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]any{"changes": changes, "total": total})
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch <batch-id>",
	Short: "Show every change of a restructure batch in write order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		changes, err := a.Audit.GetBatchChanges(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, changes)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count code changes by type, trigger and hierarchy",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.Audit.GetChangeStatistics(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, stats)
	},
}

func init() {
	historyCmd.Flags().String("hierarchy", "", "function or organization (default both)")
	historyCmd.Flags().Int("limit", service.DefaultAuditLimit, "maximum rows")
	historyCmd.Flags().Int("offset", 0, "rows to skip")
	recentCmd.Flags().Int("limit", service.DefaultAuditLimit, "maximum rows")

	rootCmd.AddCommand(historyCmd, recentCmd, batchCmd, statsCmd)
}

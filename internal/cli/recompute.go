package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RBarbieri13/Decant-sub001/internal/domain"
	"github.com/RBarbieri13/Decant-sub001/internal/service"
)

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Recompute stored similarity scores",
	Long: `Score every candidate pair of the corpus with one computation method and
upsert the results. Manual scores are never overwritten.

Interrupting the command stops it between pairs; pairs already being
written complete and the partial report is printed.`,
	RunE: runRecompute,
}

func init() {
	recomputeCmd.Flags().String("method", "", "computation method (default from SIMILARITY_METHOD)")
	recomputeCmd.Flags().Int("workers", 0, "concurrent scorers (default from SIMILARITY_WORKERS)")
	recomputeCmd.Flags().StringSlice("node", nil, "only score pairs touching these node ids")
	recomputeCmd.Flags().Bool("progress", false, "print progress to stderr")
	rootCmd.AddCommand(recomputeCmd)
}

func runRecompute(cmd *cobra.Command, _ []string) error {
	method, _ := cmd.Flags().GetString("method")
	workers, _ := cmd.Flags().GetInt("workers")
	nodes, _ := cmd.Flags().GetStringSlice("node")
	showProgress, _ := cmd.Flags().GetBool("progress")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	req := service.RecomputeRequest{
		NodeIDs: nodes,
		Method:  domain.ComputationMethod(method),
		Workers: workers,
	}
	var progress service.ProgressFunc
	if showProgress {
		var (
			mu   sync.Mutex
			step int
		)
		// progress is called from the scoring workers; print roughly every 5%.
		progress = func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			if pct := done * 20 / max(total, 1); pct > step || done == total {
				step = pct
				fmt.Fprintf(cmd.ErrOrStderr(), "\r%d/%d pairs", done, total)
			}
		}
	}

	report, err := a.Similarity.RecomputeCorpus(ctx, req, progress)
	if showProgress {
		fmt.Fprintln(cmd.ErrOrStderr())
	}
	if err != nil && ctx.Err() == nil {
		return err
	}
	if report == nil {
		return context.Cause(ctx)
	}
	return printJSON(cmd, report)
}

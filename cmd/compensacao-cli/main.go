package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "compensacao",
		Short: "Deposit reconciliation and remediation",
		Long: `compensacao lists deposits stuck in the PIX pipeline and orphaned PIX
transactions, and runs the two remediation commands: reprocess and
manual override.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("token", "", "Operator bearer token forwarded to the diagnostics API (default $COMPENSACAO_OPERATOR_TOKEN)")
	rootCmd.PersistentFlags().String("start", "", "Start date YYYY-MM-DD")
	rootCmd.PersistentFlags().String("end", "", "End date YYYY-MM-DD")

	rootCmd.AddCommand(ListCmd())
	rootCmd.AddCommand(SummaryCmd())
	rootCmd.AddCommand(ReprocessCmd())
	rootCmd.AddCommand(OverrideCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

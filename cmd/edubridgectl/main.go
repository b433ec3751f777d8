// Command edubridgectl обслуживает базу EduBridge.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "edubridgectl",
		Short:         "EduBridge database maintenance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("database-url", "", "Postgres DSN (default $DATABASE_URL)")
	root.AddCommand(newCheckCmd(), newClearCmd(), newSeedCmd(), newExportCmd(), newBackupCmd(), newRestoreCmd())
	return root
}

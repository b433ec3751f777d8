package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edubridge/edubridge-backend/internal/backupclient"
)

// Backuper: sidecar pg_dump/pg_restore.
type Backuper interface {
	Trigger(ctx context.Context) (string, error)
	RestoreLatest(ctx context.Context) (string, error)
}

var newBackuper = func(base string) Backuper { return backupclient.New(base) }

func newBackupCmd() *cobra.Command {
	var base string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Ask the backup sidecar for a fresh dump",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := newBackuper(base).Trigger(cmd.Context())
			if err != nil {
				return fmt.Errorf("backup: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "backup created:", name)
			return nil
		},
	}
	cmd.Flags().StringVar(&base, "backup-url", "", "backup sidecar URL (default $BACKUPCTL_URL)")
	return cmd
}

func newRestoreCmd() *cobra.Command {
	var (
		base string
		yes  bool
	)
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore the latest dump over the current database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to restore without --yes")
			}
			out, err := newBackuper(base).RestoreLatest(cmd.Context())
			if err != nil {
				return fmt.Errorf("restore: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "restored:", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&base, "backup-url", "", "backup sidecar URL (default $BACKUPCTL_URL)")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm restore")
	return cmd
}

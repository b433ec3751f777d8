package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/edubridge/edubridge-backend/internal/db"
	"github.com/edubridge/edubridge-backend/internal/export"
	"github.com/edubridge/edubridge-backend/internal/logging"
)

// Maintainer: операции над базой, нужные командам.
type Maintainer interface {
	export.Source
	Counts(ctx context.Context) (db.Counts, error)
	Clear(ctx context.Context) error
	Seed(ctx context.Context, now time.Time) (db.SeedResult, error)
}

// openStore подключается к базе и накатывает миграции; close освобождает пул.
var openStore = func(cmd *cobra.Command) (Maintainer, func(), error) {
	dsn, _ := cmd.Flags().GetString("database-url")
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		return nil, nil, errors.New("DATABASE_URL is not set")
	}
	logger, err := logging.Init(os.Getenv("LOG_LEVEL"), "dev")
	if err != nil {
		return nil, nil, err
	}
	log := logger.Component("ctl").With(zap.String("cmd", cmd.Name()))

	pool, err := db.Connect(cmd.Context(), dsn)
	if err != nil {
		logger.Closer()
		return nil, nil, err
	}
	if err := db.Migrate(cmd.Context(), pool); err != nil {
		pool.Close()
		logger.Closer()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	log.Debug("database ready")
	return db.NewStore(pool), func() {
		pool.Close()
		logger.Closer()
	}, nil
}

func newCheckCmd() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Print record counts (and optionally list users and posts)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, closeFn, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			return runCheck(cmd.Context(), st, cmd.OutOrStdout(), list)
		},
	}
	cmd.Flags().BoolVar(&list, "list", true, "list users and posts")
	return cmd
}

func runCheck(ctx context.Context, st Maintainer, out io.Writer, list bool) error {
	c, err := st.Counts(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "users: %d\nposts: %d\nmatches: %d\nmessages: %d\n", c.Users, c.Posts, c.Matches, c.Messages)
	if !list {
		return nil
	}

	users, err := st.ListUsers(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nUSER\tEMAIL\tTYPE\tCOLLEGE")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.Name, u.Email, u.UserType, u.CollegeName)
	}
	posts, err := st.ListPosts(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(tw, "\nPOST\tTYPE\tSTATUS\tSUBJECT")
	for _, p := range posts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Title, p.Type, p.Status, p.Subject)
	}
	return tw.Flush()
}

func newClearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all users, posts, matches and messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to clear without --yes")
			}
			st, closeFn, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			if err := st.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "database cleared")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert demo users, posts and matches",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, closeFn, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			res, err := st.Seed(cmd.Context(), time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded learner %s and mentor %s, %d accepted matches\n",
				res.LearnerID, res.MentorID, res.Matched)
			return nil
		},
	}
}

func newExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all collections to an xlsx workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, closeFn, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			if out == "" {
				out = export.BuildExportFilename(time.Now())
			}
			if err := runExport(cmd.Context(), st, out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "written", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default edubridge_export_<date>.xlsx)")
	return cmd
}

func runExport(ctx context.Context, src export.Source, path string) error {
	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return fmt.Errorf("output must be an .xlsx file: %s", path)
	}
	sheets, err := export.CollectSheets(ctx, src)
	if err != nil {
		return err
	}
	wb, err := export.NewWorkbook(sheets)
	if err != nil {
		return err
	}
	return wb.SaveAs(path)
}

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/JonMunkholm/royalties/internal/app"
	"github.com/JonMunkholm/royalties/internal/core"
	"github.com/JonMunkholm/royalties/internal/database"
	"github.com/spf13/cobra"
)

func (c *cli) newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			pool, err := app.OpenPool(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := database.Migrate(cmd.Context(), pool)
			for _, name := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), "applied", name)
			}
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			}
			return nil
		},
	}
}

func (c *cli) newImportCommand() *cobra.Command {
	var year, quarter int

	cmd := &cobra.Command{
		Use:     "import FILE",
		Short:   "Import a royalty CSV for a fiscal period",
		Example: `  royaltyctl import q1.csv --year 2024 --quarter 1`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := c.service(ctx)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			imp, err := svc.CreateImport(ctx, core.CreateImportRequest{
				FileName:      filepath.Base(args[0]),
				FiscalYear:    year,
				FiscalQuarter: quarter,
			}, f)
			if err != nil {
				return err
			}

			runErr := c.run(ctx)
			if got, err := svc.GetImport(ctx, imp.ID); err == nil {
				imp = got
			}
			if err := printJSON(cmd, imp); err != nil {
				return err
			}
			return runErr
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "fiscal year of the royalties")
	cmd.Flags().IntVar(&quarter, "quarter", 0, "fiscal quarter of the royalties (1-4)")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("quarter")
	return cmd
}

func (c *cli) newPreviewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "preview FILE",
		Short: "Validate a royalty CSV without importing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			res, err := core.PreviewImport(f)
			if err != nil {
				return err
			}
			if err := printJSON(cmd, res); err != nil {
				return err
			}
			if !res.Valid {
				return fmt.Errorf("%d invalid rows", res.ErrorCount)
			}
			return nil
		},
	}
}

func (c *cli) newStatementCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "statement",
		Short: "Create and inspect writer statements",
	}

	var year, quarter int
	var writers []int64
	create := &cobra.Command{
		Use:     "create",
		Short:   "Create a statement, populate it and export it",
		Example: `  royaltyctl statement create --year 2024 --quarter 1 --writer 12 --writer 40`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := c.service(ctx)
			if err != nil {
				return err
			}
			st, err := svc.CreateStatement(ctx, core.NewStatement{
				FiscalYear:    year,
				FiscalQuarter: quarter,
				WriterIDs:     writers,
			})
			if err != nil {
				return err
			}
			runErr := c.run(ctx)
			if got, err := svc.GetStatement(ctx, st.ID); err == nil {
				st = got
			}
			if err := printJSON(cmd, st); err != nil {
				return err
			}
			return runErr
		},
	}
	create.Flags().IntVar(&year, "year", 0, "fiscal year")
	create.Flags().IntVar(&quarter, "quarter", 0, "fiscal quarter (1-4)")
	create.Flags().Int64SliceVar(&writers, "writer", nil, "writer id (repeatable)")
	_ = create.MarkFlagRequired("year")
	_ = create.MarkFlagRequired("quarter")
	_ = create.MarkFlagRequired("writer")

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show a statement and its conflicts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			svc, err := c.service(ctx)
			if err != nil {
				return err
			}
			st, err := svc.GetStatement(ctx, id)
			if err != nil {
				return err
			}
			conflicts, err := svc.ListConflicts(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd, struct {
				core.Statement
				Conflicts []core.Conflict `json:"conflicts"`
			}{st, conflicts})
		},
	}

	resolve := &cobra.Command{
		Use:   "resolve ID CONFLICT_ID",
		Short: "Mark a statement conflict resolved",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var conflictID int64
			if _, err := fmt.Sscan(args[1], &conflictID); err != nil {
				return fmt.Errorf("invalid conflict id %q", args[1])
			}
			svc, err := c.service(ctx)
			if err != nil {
				return err
			}
			return svc.ResolveConflict(ctx, id, conflictID)
		},
	}

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a statement and release its royalties",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			svc, err := c.service(ctx)
			if err != nil {
				return err
			}
			return svc.DeleteStatement(ctx, id)
		},
	}

	cmd.AddCommand(create, show, resolve, del)
	return cmd
}

func (c *cli) newExportCommand() *cobra.Command {
	var out, format string
	var regenerate bool

	cmd := &cobra.Command{
		Use:     "export ID",
		Short:   "Download a statement export",
		Example: `  royaltyctl export 2b1c... --out q1.csv
  royaltyctl export 2b1c... --format xlsx --regenerate`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			svc, err := c.service(ctx)
			if err != nil {
				return err
			}

			if regenerate {
				if _, err := svc.ExportStatement(ctx, id); err != nil {
					return err
				}
			}

			rc, name, _, err := svc.OpenExport(ctx, id, format)
			if err != nil {
				return err
			}
			defer rc.Close()

			if out == "" {
				out = name
			}
			var w io.Writer = cmd.OutOrStdout()
			if out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if _, err := io.Copy(w, rc); err != nil {
				return err
			}
			if out != "-" {
				fmt.Fprintln(cmd.ErrOrStderr(), "wrote", out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", `output path, "-" for stdout (default: export file name)`)
	cmd.Flags().StringVar(&format, "format", "csv", "csv or xlsx")
	cmd.Flags().BoolVar(&regenerate, "regenerate", false, "rebuild the export from current assignments first")
	return cmd
}

func (c *cli) newInvoiceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "invoice ID",
		Short: "Mark a completed statement invoiced",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			svc, err := c.service(ctx)
			if err != nil {
				return err
			}
			st, err := svc.MarkInvoiced(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd, st)
		},
	}
}

func (c *cli) newRollbackCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback ID",
		Short: "Delete an import and every royalty it added",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			svc, err := c.service(ctx)
			if err != nil {
				return err
			}
			res, err := svc.RollbackImport(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

func (c *cli) newReapCommand() *cobra.Command {
	var stuckAfter time.Duration

	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Fail imports and statements stuck in processing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := c.service(ctx)
			if err != nil {
				return err
			}
			if stuckAfter <= 0 {
				stuckAfter = c.cfg.Reaper.StuckAfter
			}
			res, err := svc.ReapStuck(ctx, stuckAfter)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().DurationVar(&stuckAfter, "stuck-after", 0, "processing age to treat as stuck (default: REAPER_STUCK_AFTER)")
	return cmd
}

func (c *cli) newDrainCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Run every pending import and statement now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := c.service(ctx)
			if err != nil {
				return err
			}
			n, err := svc.RequeuePending(ctx)
			if err != nil {
				return err
			}
			runErr := c.run(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d pending units\n", n)
			if runErr != nil {
				return errors.Join(errors.New("some units failed"), runErr)
			}
			return nil
		},
	}
}

func (c *cli) newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show pipeline counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := c.service(ctx)
			if err != nil {
				return err
			}
			stats, err := svc.Stats(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, stats)
		},
	}
}

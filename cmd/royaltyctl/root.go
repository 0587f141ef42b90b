package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JonMunkholm/royalties/internal/app"
	"github.com/JonMunkholm/royalties/internal/config"
	"github.com/JonMunkholm/royalties/internal/core"
	"github.com/JonMunkholm/royalties/internal/jobs"
	"github.com/JonMunkholm/royalties/internal/logging"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// cli carries state shared by the subcommands. Dependencies are opened on
// first use so commands like preview run without a database.
type cli struct {
	logLevel string

	cfg    *config.Config
	deps   *app.App
	svc    *core.Service
	queue  *jobs.InlineQueue
	runner *jobs.Runner
}

// newRootCommand builds the command tree. The returned func releases any
// dependencies a command opened.
func newRootCommand() (*cobra.Command, func()) {
	c := &cli{}

	root := &cobra.Command{
		Use:   "royaltyctl",
		Short: "Royalty reconciliation pipeline CLI",
		Long: `royaltyctl imports royalty CSV files, builds writer statements, exports
them and runs maintenance against the same database the API server uses.

Configuration is read from the environment (and .env) exactly as the server
reads it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(c.logLevel, "text")
		},
	}
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	root.AddGroup(
		&cobra.Group{ID: "pipeline", Title: "Pipeline Commands:"},
		&cobra.Group{ID: "admin", Title: "Maintenance Commands:"},
	)

	for _, cmd := range []*cobra.Command{
		c.newImportCommand(),
		c.newPreviewCommand(),
		c.newStatementCommand(),
		c.newExportCommand(),
		c.newInvoiceCommand(),
		c.newRollbackCommand(),
	} {
		cmd.GroupID = "pipeline"
		root.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{
		c.newMigrateCommand(),
		c.newReapCommand(),
		c.newDrainCommand(),
		c.newStatsCommand(),
	} {
		cmd.GroupID = "admin"
		root.AddCommand(cmd)
	}

	return root, c.close
}

func (c *cli) loadConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

// service opens the shared dependencies and a service whose jobs are queued
// inline; call run to execute them.
func (c *cli) service(ctx context.Context) (*core.Service, error) {
	if c.svc != nil {
		return c.svc, nil
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	deps, err := app.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.deps = deps
	c.queue = jobs.NewInlineQueue()
	c.svc = deps.NewService(c.queue)
	c.runner = deps.NewRunner(c.svc)
	return c.svc, nil
}

// run executes every job queued so far, including follow-up jobs.
func (c *cli) run(ctx context.Context) error {
	return c.queue.Start(ctx, c.runner.Handle)
}

func (c *cli) close() {
	if c.deps != nil {
		c.deps.Close()
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/mailmarks/internal/app"
	"github.com/MrSnakeDoc/mailmarks/internal/config"
	"github.com/MrSnakeDoc/mailmarks/internal/logger"
	"github.com/MrSnakeDoc/mailmarks/internal/version"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mailmarks",
		Short:         "Turn links from your mailbox into markdown bookmarks",
		Long:          "mailmarks reads messages, writes one markdown file per link and renders an index page.\nAll settings come from MAILMARKS_* environment variables, .env or MAILMARKS_CONFIG_FILE.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.AddCommand(
		stageCmd("ingest", "Poll the mailbox and write bookmark files", func(ctx context.Context, a *app.App, log logger.Logger) error {
			return a.Ingest(ctx)
		}),
		stageCmd("index", "Render the index page from the bookmark files", func(ctx context.Context, a *app.App, log logger.Logger) error {
			res, err := a.Index(ctx)
			if err != nil {
				return err
			}
			log.Info("index page written",
				logger.String("path", res.OutputPath),
				logger.Int("entries", res.Entries),
				logger.Int("skipped", len(res.Skipped)))
			return nil
		}),
		stageCmd("views", "Write views.md and views.html", func(ctx context.Context, a *app.App, log logger.Logger) error {
			res, err := a.Views(ctx)
			if err != nil {
				return err
			}
			log.Info("views written",
				logger.String("path", res.OutputPath),
				logger.Int("entries", res.Entries))
			return nil
		}),
		stageCmd("serve", "Serve the index page and rebuild it on change", func(ctx context.Context, a *app.App, log logger.Logger) error {
			return a.Serve(ctx)
		}),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version.String())
			},
		},
	)

	return root
}

type stageFunc func(ctx context.Context, a *app.App, log logger.Logger) error

// stageCmd loads the configuration, builds the logger and runs one stage.
func stageCmd(use, short string, run stageFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)
			defer func() { _ = loggerClient.Sync() }()
			loggerClient.Debugf("configuration: %+v", cfg.Redacted())

			a := app.New(cfg, loggerClient)
			defer func() {
				if err := a.Close(); err != nil {
					loggerClient.Warn("shutdown", logger.Error(err))
				}
			}()

			return run(cmd.Context(), a, loggerClient)
		},
	}
}

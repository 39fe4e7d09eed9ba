// Command bireus-server is the server-side CLI: scaffold new repositories,
// run updates across a repository root, and optionally serve the
// update-notification webhook.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/brutus5000/bireus/config"
	"github.com/brutus5000/bireus/logctx"
	"github.com/brutus5000/bireus/server"
	"github.com/brutus5000/bireus/strategy"
	"github.com/brutus5000/bireus/webhook"
)

type globalOptions struct {
	ctx context.Context
}

func main() {
	g := &globalOptions{ctx: logctx.WithLogger(context.Background(), logctx.NewLogrus(logrus.InfoLevel))}

	root := &cobra.Command{
		Use:   "bireus-server",
		Short: "Manage BiReUS server repositories",
	}

	root.AddCommand((&addOptions{global: g}).NewCommand())
	root.AddCommand((&updateOptions{global: g}).NewCommand())
	root.AddCommand((&serveOptions{global: g}).NewCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type addOptions struct {
	global *globalOptions

	Path         string
	FirstVersion string
	Mode         string
}

func (o *addOptions) NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Scaffold a new repository",
		Args:  cobra.ExactArgs(1),
		RunE:  o.Run,
	}

	cmd.Flags().StringVar(&o.Path, "path", ".", "repository manager root directory")
	cmd.Flags().StringVar(&o.FirstVersion, "first-version", "v1", "label of the repository's first version")
	cmd.Flags().StringVar(&o.Mode, "mode", "inc-bi", "patch strategy tag (inc-bi, inc-fo, inst-bi, inst-fo, major-bi, major-fo)")

	return cmd
}

func (o *addOptions) Run(_ *cobra.Command, args []string) error {
	name := args[0]

	strat, err := strategy.Parse(o.Mode)
	if err != nil {
		return err
	}

	manager := server.NewManager(o.Path)
	repo, err := manager.Create(name, o.FirstVersion, strat)
	if err != nil {
		return err
	}

	logctx.GetLogger(o.global.ctx).Infof("created repository %s at %s", repo.Info.Name, repo.Path)
	return nil
}

type updateOptions struct {
	global *globalOptions

	Path    string
	Repo    string
	Cleanup bool
}

func (o *updateOptions) NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Run CompareTask over every new version and refresh manifests",
		Args:  cobra.NoArgs,
		RunE:  o.Run,
	}

	cmd.Flags().StringVar(&o.Path, "path", ".", "repository manager root directory")
	cmd.Flags().StringVar(&o.Repo, "repo", "", "update only this repository (default: all)")
	cmd.Flags().BoolVar(&o.Cleanup, "cleanup", false, "delete __patches__ before updating (archives of versions already in the graph are not regenerated)")

	return cmd
}

func (o *updateOptions) Run(_ *cobra.Command, _ []string) error {
	manager := server.NewManager(o.Path)
	logger := logctx.GetLogger(o.global.ctx)

	if o.Repo == "" {
		if o.Cleanup {
			if err := manager.FullCleanup(); err != nil {
				return err
			}
		}
		if err := manager.FullUpdate(o.global.ctx); err != nil {
			return err
		}
		logger.Infof("updated all repositories under %s", o.Path)
		return nil
	}

	repo, err := manager.Open(o.Repo)
	if err != nil {
		return err
	}

	if o.Cleanup {
		if err := repo.Cleanup(); err != nil {
			return err
		}
	}

	if err := repo.Update(o.global.ctx); err != nil {
		return err
	}

	logger.Infof("updated repository %s (latest %s)", repo.Info.Name, repo.Info.LatestVersion)
	return nil
}

type serveOptions struct {
	global *globalOptions

	ConfigPath string
}

func (o *serveOptions) NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve <config>",
		Short: "Serve the update-notification webhook",
		Args:  cobra.ExactArgs(1),
		RunE:  o.Run,
	}

	return cmd
}

func (o *serveOptions) Run(_ *cobra.Command, args []string) error {
	o.ConfigPath = args[0]

	fp, err := os.Open(o.ConfigPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", o.ConfigPath, err)
	}
	defer fp.Close()

	cfg, err := config.Parse(fp)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", o.ConfigPath, err)
	}

	logger := logctx.NewLogrus(parseLevel(cfg.Log.Level))
	o.global.ctx = logctx.WithLogger(o.global.ctx, logger)

	manager := server.NewManager(cfg.Server.RootDir)
	handler := webhook.NewHandler(manager, os.Stdout)

	logger.Infof("serving webhook on %s, repositories rooted at %s", cfg.HTTP.Addr, cfg.Server.RootDir)
	return http.ListenAndServe(cfg.HTTP.Addr, handler)
}

func parseLevel(level string) logrus.Level {
	l, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return l
}

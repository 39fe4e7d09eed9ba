// Command bireus-client is the client-side CLI: bootstrap a working tree
// from a remote repository, then keep it checked out at a given version.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/brutus5000/bireus/client"
	"github.com/brutus5000/bireus/logctx"
	"github.com/brutus5000/bireus/transport"
)

type globalOptions struct {
	ctx context.Context
}

func main() {
	g := &globalOptions{ctx: logctx.WithLogger(context.Background(), logctx.NewLogrus(logrus.InfoLevel))}

	root := &cobra.Command{
		Use:   "bireus-client",
		Short: "Manage a BiReUS client working tree",
	}

	root.AddCommand((&initOptions{global: g}).NewCommand())
	root.AddCommand((&checkoutOptions{global: g}).NewCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type initOptions struct {
	global *globalOptions
}

func (o *initOptions) NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init <path> <url>",
		Short: "Bootstrap a fresh working tree from a remote repository",
		Args:  cobra.ExactArgs(2),
		RunE:  o.Run,
	}
}

func (o *initOptions) Run(_ *cobra.Command, args []string) error {
	path, url := args[0], args[1]

	if err := os.MkdirAll(path, 0o755); err != nil {
		return err
	}

	downloader := transport.NewHTTPDownloader()
	repo, err := client.GetFromURL(o.global.ctx, path, url, downloader)
	if err != nil {
		return err
	}

	logctx.GetLogger(o.global.ctx).Infof("initialized %s at %s (%s)", repo.Info.Name, path, repo.Info.CurrentVersion)
	return nil
}

type checkoutOptions struct {
	global *globalOptions
	Path   string
}

func (o *checkoutOptions) NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkout [<version>]",
		Short: "Check out a version of the working tree, or the latest if none given",
		Args:  cobra.MaximumNArgs(1),
		RunE:  o.Run,
	}

	cmd.Flags().StringVar(&o.Path, "path", ".", "working tree path")
	return cmd
}

func (o *checkoutOptions) Run(_ *cobra.Command, args []string) error {
	downloader := transport.NewHTTPDownloader()
	repo, err := client.Open(o.Path, downloader)
	if err != nil {
		return err
	}

	logger := logctx.GetLogger(o.global.ctx)

	if len(args) == 0 {
		if err := repo.CheckoutLatest(o.global.ctx); err != nil {
			return err
		}
		logger.Infof("checked out latest (%s)", repo.Info.CurrentVersion)
		return nil
	}

	version := args[0]
	if err := repo.CheckoutVersion(o.global.ctx, version); err != nil {
		return err
	}
	logger.Infof("checked out %s", version)
	return nil
}

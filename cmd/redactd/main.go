// Command redactd is the salary redaction daemon: it watches an inbox
// directory, masks every PDF that lands there, and records the results.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/hyeonwoo/redactkit/observability/charmlog"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "redactd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, envFile string

	root := &cobra.Command{
		Use:           "redactd",
		Short:         "Salary redaction daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML config file")
	root.PersistentFlags().StringVar(&envFile, "env", "", "dotenv file with overrides")

	open := func() (*Daemon, error) {
		cfg, err := LoadConfig(configPath, envFile)
		if err != nil {
			return nil, err
		}
		cl := log.New(os.Stderr)
		if lvl, err := log.ParseLevel(cfg.Log.Level); err == nil {
			cl.SetLevel(lvl)
		}
		return NewDaemon(cfg, charmlog.New(cl))
	}

	run := &cobra.Command{
		Use:   "run",
		Short: "Watch the inbox and mask incoming documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := open()
			if err != nil {
				return err
			}
			defer d.Close()
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return d.Run(ctx)
		},
	}

	once := &cobra.Command{
		Use:   "once",
		Short: "Mask everything currently in the inbox and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := open()
			if err != nil {
				return err
			}
			defer d.Close()
			return d.DrainInbox(context.Background())
		},
	}

	list := &cobra.Command{
		Use:   "list [owner]",
		Short: "List stored documents",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := open()
			if err != nil {
				return err
			}
			defer d.Close()
			owner := "inbox"
			if len(args) == 1 {
				owner = args[0]
			}
			docs, err := d.docs.List(cmd.Context(), owner)
			if err != nil {
				return err
			}
			for _, doc := range docs {
				masked := " "
				if doc.Masked {
					masked = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s  %8d  %s  %s\n",
					masked, doc.ID, doc.Size, doc.CreatedAt.Format("2006-01-02 15:04"), doc.Name)
			}
			return nil
		},
	}

	root.AddCommand(run, once, list)
	return root
}

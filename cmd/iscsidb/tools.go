package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"iscsidb/internal/codec"
	"iscsidb/internal/config"
	"iscsidb/internal/service"
	"iscsidb/internal/watcher"
)

func newExportCmd(opts *globalOptions) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := codec.NewExporter(format)
			if err != nil {
				return err
			}
			db, _, _, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			return db.Export(cmd.Context(), exp, w)
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "output format (text, yaml)")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file")
	return cmd
}

func newWatchCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Reload record defaults whenever iscsid.conf changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, cfg, log, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			events := make(chan service.Event, 16)
			db.Events().Subscribe(events)
			go func() {
				for {
					select {
					case ev := <-events:
						log.WithField("event", string(ev.Type)).Info("defaults reloaded")
					case <-ctx.Done():
						return
					}
				}
			}()

			w := watcher.New(cfg.ISCSI.ConfigFile, db.SyncDefaults, log)
			if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

func newInitiatorCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "initiator",
		Short: "Print the initiator's iSCSI name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.settings()
			if err != nil {
				return err
			}
			name, err := config.ReadInitiatorName(cfg.ISCSI.InitiatorNameFile)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}
}

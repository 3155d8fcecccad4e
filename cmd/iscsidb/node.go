package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"iscsidb/internal/codec"
	"iscsidb/internal/domain"
	"iscsidb/internal/recinfo"
	"iscsidb/internal/service"
)

func newNodeCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Manage node records",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List node records",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db, _, _, err := opts.open(cmd)
				if err != nil {
					return err
				}
				defer db.Close()

				n, err := db.PrintNode(cmd.Context(), service.AllRecords)
				if err != nil {
					return err
				}
				if n == 0 {
					fmt.Fprintln(cmd.ErrOrStderr(), "no node records found")
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Print the parameters of a node record",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := domain.ParseID(args[0])
				if err != nil {
					return err
				}
				db, _, _, err := opts.open(cmd)
				if err != nil {
					return err
				}
				defer db.Close()

				n, err := db.PrintNode(cmd.Context(), int(id))
				if err != nil {
					return err
				}
				if n == 0 {
					return fmt.Errorf("no node record [%s]", domain.FormatID(id))
				}
				return nil
			},
		},
		newNodeAddCmd(opts),
		newNodeSetCmd(opts),
	)
	return cmd
}

func newNodeAddCmd(opts *globalOptions) *cobra.Command {
	var (
		port      int
		tpgt      int
		discovery string
	)

	cmd := &cobra.Command{
		Use:   "add <target name> <address>",
		Short: "Add or update a node record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, _, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			var drec *domain.DiscoveryRecord
			if discovery != "" {
				id, err := domain.ParseID(discovery)
				if err != nil {
					return err
				}
				if drec, err = db.ReadDiscovery(cmd.Context(), id); err != nil {
					return err
				}
			}

			rec := db.NodeDefaults()
			rec.Name = domain.Truncate(args[0], domain.TargetNameMaxLen)
			rec.TPGT = tpgt
			rec.Conns[0].Address = domain.Truncate(args[1], domain.AddressMaxLen)
			rec.Conns[0].Port = port

			if err := db.AddNode(cmd.Context(), drec, &rec); err != nil {
				return err
			}
			addr, p := rec.Portal()
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s:%d,%d %s\n", domain.FormatID(rec.ID), addr, p, rec.TPGT, rec.Name)
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", defaultPort, "target portal port")
	cmd.Flags().IntVarP(&tpgt, "tpgt", "t", 1, "target portal group tag")
	cmd.Flags().StringVarP(&discovery, "discovery", "d", "", "id of the discovery record the node belongs to")
	return cmd
}

func newNodeSetCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <id> <name=value>...",
		Short: "Change parameters of a node record",
		Long: `Change parameters of a node record. Names are those printed by
"iscsidb node show", for example node.session.iscsi.InitialR2T=Yes.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseID(args[0])
			if err != nil {
				return err
			}
			db, _, log, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			rec, err := db.ReadNode(cmd.Context(), id)
			if err != nil {
				return err
			}
			fields, err := recinfo.Node(rec)
			if err != nil {
				return err
			}

			text := strings.Join(args[1:], "\n") + "\n"
			if n := codec.Apply(text, fields, log); n != len(args)-1 {
				return errors.New("not every parameter was accepted, record left unchanged")
			}
			rec.Session.Auth.SyncPasswordLengths()

			return db.WriteNode(cmd.Context(), id, rec)
		},
	}
}

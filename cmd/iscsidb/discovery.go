package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"iscsidb/internal/domain"
	"iscsidb/internal/service"
)

const defaultPort = 3260

func newDiscoveryCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discovery",
		Short: "Manage discovery records",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List discovery records",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				db, _, _, err := opts.open(cmd)
				if err != nil {
					return err
				}
				defer db.Close()

				n, err := db.PrintDiscovery(cmd.Context(), service.AllRecords)
				if err != nil {
					return err
				}
				if n == 0 {
					fmt.Fprintln(cmd.ErrOrStderr(), "no discovery records found")
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Print the parameters of a discovery record",
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

				n, err := db.PrintDiscovery(cmd.Context(), int(id))
				if err != nil {
					return err
				}
				if n == 0 {
					return fmt.Errorf("no discovery record [%s]", domain.FormatID(id))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "nodes <id>",
			Short: "List the nodes found through a discovery record",
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

				drec, err := db.ReadDiscovery(cmd.Context(), id)
				if err != nil {
					return err
				}
				_, err = db.PrintNodes(cmd.Context(), drec)
				return err
			},
		},
		newDiscoveryAddCmd(opts),
		newDiscoveryImportCmd(opts),
	)
	return cmd
}

func newDiscoveryAddCmd(opts *globalOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "add <address>",
		Short: "Add or update a sendtargets discovery record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, _, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			drec, err := db.DiscoveryDefaults(domain.DiscoveryTypeSendTargets)
			if err != nil {
				return err
			}
			drec.SendTargets.Address = domain.Truncate(args[0], domain.AddressMaxLen)
			drec.SendTargets.Port = port

			if err := db.AddDiscovery(cmd.Context(), drec); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s:%d via sendtargets\n",
				domain.FormatID(drec.ID), drec.SendTargets.Address, drec.SendTargets.Port)
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", defaultPort, "target portal port")
	return cmd
}

func newDiscoveryImportCmd(opts *globalOptions) *cobra.Command {
	var (
		port int
		file string
	)

	cmd := &cobra.Command{
		Use:   "import <address>",
		Short: "Import a sendtargets discovery response",
		Long: `Import a discovery response obtained from the portal at <address>.

The response is read from --file, or from standard input when the file is
"-". It holds DTN, TT, TP and TA lines, ";" after each target and "!" at
the end.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := readInput(cmd, file)
			if err != nil {
				return err
			}

			db, _, _, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			drec, err := db.NewDiscovery(cmd.Context(), args[0], port, domain.DiscoveryTypeSendTargets, info)
			if err != nil {
				return err
			}
			_, err = db.PrintNodes(cmd.Context(), drec)
			return err
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", defaultPort, "target portal port")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "discovery response file")
	return cmd
}

func readInput(cmd *cobra.Command, file string) (string, error) {
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read discovery response: %w", err)
	}
	return string(data), nil
}

package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"iscsidb/internal/config"
	"iscsidb/internal/logger"
	"iscsidb/internal/service"
)

// globalOptions are the persistent flags shared by every subcommand
type globalOptions struct {
	configPath   string
	dbDir        string
	iscsidConfig string
	logLevel     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "iscsidb",
		Short: "Manage the iSCSI initiator record database",
		Long: `iscsidb lists, edits and imports the discovery and node records of an
iSCSI initiator.

Records are addressed by their six digit hex id as printed by the list
commands, for example:

  iscsidb discovery list
  iscsidb node show 07ff91
  iscsidb node set 07ff91 node.tpgt=5 node.startup=automatic
`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "settings file (default: search $ISCSIDB_CONFIG, ./iscsidb.yaml, ~/.config/iscsidb, /etc/iscsidb)")
	flags.StringVar(&opts.dbDir, "db-dir", "", "directory holding the record tables")
	flags.StringVar(&opts.iscsidConfig, "iscsid-config", "", "iscsid.conf overriding the built-in record defaults")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newDiscoveryCmd(opts),
		newNodeCmd(opts),
		newExportCmd(opts),
		newWatchCmd(opts),
		newInitiatorCmd(opts),
	)
	return cmd
}

// settings loads the settings file and applies flag overrides
func (o *globalOptions) settings() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, _, err = config.LoadFromPath(o.configPath)
	} else {
		cfg, _, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if o.dbDir != "" {
		cfg.Database.Dir = o.dbDir
	}
	if o.iscsidConfig != "" {
		cfg.ISCSI.ConfigFile = o.iscsidConfig
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

// open loads settings, builds the logger and opens the record database
func (o *globalOptions) open(cmd *cobra.Command) (*service.DB, *config.Config, *logrus.Logger, error) {
	cfg, err := o.settings()
	if err != nil {
		return nil, nil, nil, err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, nil, err
	}

	db, err := service.Open(service.Options{
		ConfigFile:    cfg.ISCSI.ConfigFile,
		DiscoveryPath: cfg.Database.DiscoveryPath(),
		NodePath:      cfg.Database.NodePath(),
		Logger:        log,
		Output:        cmd.OutOrStdout(),
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return db, cfg, log, nil
}

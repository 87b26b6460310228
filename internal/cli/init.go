package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/planstore/internal/paths"
)

func newInitCmd(a *app) *cobra.Command {
	var userDir bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize planstore configuration and storage",
		Long: "Create the configuration directory and config.yaml, then initialize the\n" +
			"plan store in the data directory. With --user-dir the per-user data\n" +
			"directory is recorded in config.yaml as data_dir.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userDir && a.flags.dataDir == "" {
				dir, err := paths.DefaultUserDataDir()
				if err != nil {
					return fmt.Errorf("resolve user data dir: %w", err)
				}
				if err := setConfigValue(paths.ConfigFile(a.configDir), cfgKeyDataDir, dir); err != nil {
					return err
				}
				a.config.Set(cfgKeyDataDir, dir)
			}

			cfg, err := a.storeConfig()
			if err != nil {
				return err
			}
			// Opening the store creates the data directory and an empty
			// collection.
			if _, err := a.repository(); err != nil {
				return err
			}
			a.logger.Info("plan store initialized",
				zap.String("backend", cfg.Backend),
				zap.String("data_dir", cfg.DataDir))

			result := map[string]string{
				"config_dir": a.configDir,
				"data_dir":   cfg.DataDir,
				"backend":    cfg.Backend,
			}
			return a.output(cmd, result, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Plan store initialized (%s backend)\nconfig: %s\ndata:   %s\n",
					cfg.Backend, paths.ConfigFile(a.configDir), cfg.DataDir)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&userDir, "user-dir", false, "store plans in the per-user data directory")
	return cmd
}

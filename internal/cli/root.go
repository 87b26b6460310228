// Package cli implements the planstore command-line interface: a thin
// presentation layer over the plan repository and the metrics engine.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/planstore/internal/paths"
	"github.com/mesh-intelligence/planstore/pkg/repository"
	"github.com/mesh-intelligence/planstore/pkg/store"
	"github.com/mesh-intelligence/planstore/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	jsonMode  bool
	user      string
}

// app carries the state shared by one command invocation.
type app struct {
	flags   rootFlags
	started bool

	configDir string
	config    *viper.Viper
	logger    *zap.Logger

	store types.PlanStore
	repo  *repository.Repository
}

// NewRootCmd creates the top-level "planstore" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	root, _ := newRoot()
	return root
}

func newRoot() (*cobra.Command, *app) {
	a := &app{logger: zap.NewNop()}
	root := &cobra.Command{
		Use:   "planstore",
		Short: "A local store for delivery plans",
		Long: "planstore keeps delivery plans (epics, stories and tasks) in a local\n" +
			"document store with a per-plan audit trail, and reports progress metrics.",
		Version: Version,
		// Do not print usage on errors returned by subcommands.
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.started = true
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: $(CWD)/"+paths.DefaultDataDirName+")")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	root.PersistentFlags().StringVar(&a.flags.user, "user", "", "user recorded in audit entries (default: config user, then $USER)")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newImportCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newStatusCmd(a),
		newDeleteCmd(a),
		newHistoryCmd(a),
		newTaskCmd(a),
		newNotesCmd(a),
		newMetricsCmd(a),
	)
	return root, a
}

// Run executes the command line args and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root, a := newRoot()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	a.close()
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintf(stderr, "planstore: %s\n", err)
	return exitCode(err, a.started)
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	os.Exit(Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// setup loads configuration and builds the logger. The store is opened
// lazily by the commands that need it.
func (a *app) setup(cmd *cobra.Command) error {
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return err
	}
	logger, err := newLogger(v.GetString(cfgKeyLogLevel), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.configDir = configDir
	a.config = v
	a.logger = logger
	a.logger.Debug("configuration loaded", zap.String("config_dir", configDir))
	return nil
}

// storeConfig returns the store configuration from flags and config.yaml.
func (a *app) storeConfig() (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(a.flags.dataDir, a.config.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	return types.Config{
		Backend:     a.config.GetString(cfgKeyBackend),
		DataDir:     dataDir,
		LockTimeout: a.config.GetDuration(cfgKeyLockTimeout),
	}, nil
}

// repository opens the configured store on first use.
func (a *app) repository() (*repository.Repository, error) {
	if a.repo != nil {
		return a.repo, nil
	}
	cfg, err := a.storeConfig()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(cfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("open %s store in %s: %w", cfg.Backend, cfg.DataDir, err)
	}
	workflow, err := parseWorkflow(a.config.GetString(cfgKeyWorkflow))
	if err != nil {
		st.Close()
		return nil, err
	}
	a.store = st
	a.repo = repository.New(st,
		repository.WithLogger(a.logger),
		repository.WithTaskWorkflow(workflow))
	return a.repo, nil
}

// user returns the name recorded in audit entries.
func (a *app) user() string {
	if a.flags.user != "" {
		return a.flags.user
	}
	if a.config != nil {
		if u := a.config.GetString(cfgKeyUser); u != "" {
			return u
		}
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return repository.DefaultUser
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("closing plan store", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

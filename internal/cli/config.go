package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/planstore/internal/paths"
	"github.com/mesh-intelligence/planstore/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	// Config keys in config.yaml.
	cfgKeyBackend     = "backend"
	cfgKeyDataDir     = "data_dir"
	cfgKeyLockTimeout = "lock_timeout"
	cfgKeyUser        = "user"
	cfgKeyLogLevel    = "log_level"
	cfgKeyWorkflow    = "workflow"

	defaultBackend  = types.BackendJSON
	defaultLogLevel = "warn"
	defaultWorkflow = "permissive"

	envPrefix = "PLANSTORE"
)

// configFile is the structure written to config.yaml on first run.
type configFile struct {
	Backend     string `yaml:"backend"`
	DataDir     string `yaml:"data_dir,omitempty"`
	LockTimeout string `yaml:"lock_timeout"`
	LogLevel    string `yaml:"log_level"`
	Workflow    string `yaml:"workflow"`
	User        string `yaml:"user,omitempty"`
}

func defaultConfigFile() configFile {
	return configFile{
		Backend:     defaultBackend,
		LockTimeout: types.DefaultLockTimeout.String(),
		LogLevel:    defaultLogLevel,
		Workflow:    defaultWorkflow,
	}
}

// loadConfig reads config.yaml from configDir using Viper, creating the
// directory and a default file on first run. PLANSTORE_BACKEND,
// PLANSTORE_LOCK_TIMEOUT, PLANSTORE_USER, PLANSTORE_LOG_LEVEL and
// PLANSTORE_WORKFLOW override the file.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := writeConfigIfMissing(paths.ConfigFile(configDir), defaultConfigFile()); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyBackend, defaultBackend)
	v.SetDefault(cfgKeyLockTimeout, types.DefaultLockTimeout)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetDefault(cfgKeyWorkflow, defaultWorkflow)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	// PLANSTORE_DATA_DIR ranks below config.yaml; paths.ResolveDataDir reads it.
	v.SetEnvPrefix(envPrefix)
	for _, key := range []string{cfgKeyBackend, cfgKeyLockTimeout, cfgKeyUser, cfgKeyLogLevel, cfgKeyWorkflow} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// writeConfigIfMissing creates path with cfg if the file does not exist.
// An existing file is left alone.
func writeConfigIfMissing(path string, cfg configFile) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	header := "# planstore configuration\n"
	return os.WriteFile(path, append([]byte(header), data...), 0o644)
}

// setConfigValue rewrites one key of the config file at path, keeping the
// others.
func setConfigValue(path, key, value string) error {
	doc := map[string]any{}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	}
	doc[key] = value

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}

func parseWorkflow(name string) (types.TaskWorkflow, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "permissive":
		return types.PermissiveWorkflow{}, nil
	case "standard":
		return types.StandardWorkflow{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown workflow %q (want permissive or standard)", types.ErrInvalidData, name)
	}
}

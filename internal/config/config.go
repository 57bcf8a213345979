// Package config loads autovideo configuration from flags, environment,
// and an optional config file.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type Config struct {
	DataDir       string              `mapstructure:"data_dir"`
	Detect        DetectConfig        `mapstructure:"detect"`
	Providers     ProvidersConfig     `mapstructure:"providers"`
	Journal       JournalConfig       `mapstructure:"journal"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// DetectConfig tunes the selection pass.
type DetectConfig struct {
	// FilterCaps is a capability filter expression; empty keeps the
	// built-in raw-video filter, "ANY" disables filtering.
	FilterCaps string `mapstructure:"filter_caps"`
	// Constraint is an optional rule expression narrowing the candidate
	// list, e.g. `rank >= 128 || name == "testsrc"`.
	Constraint string `mapstructure:"constraint"`
}

// ProvidersConfig carries per-provider configuration maps keyed by
// provider name.
type ProvidersConfig map[string]map[string]string

type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	MetricsAddr    string `mapstructure:"metrics_addr"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPProtocol   string `mapstructure:"otlp_protocol"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".autovideo"
	}
	return filepath.Join(home, ".autovideo")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())

	v.SetDefault("detect.filter_caps", "")
	v.SetDefault("detect.constraint", "")

	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.path", filepath.Join(DefaultDataDir(), "journal.db"))

	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "text")
	v.SetDefault("observability.metrics_addr", ":9091")
	v.SetDefault("observability.otlp_endpoint", "")
	v.SetDefault("observability.otlp_protocol", "http")
	v.SetDefault("observability.service_name", "autovideo")
	v.SetDefault("observability.service_version", "dev")
}

// BindRootFlags binds cobra flags to viper for the root command.
func BindRootFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.PersistentFlags()
	f.String("data-dir", "", "data directory (default ~/.autovideo)")
	f.String("config", "", "config file path")
	f.String("log-level", "", "log level (debug, info, warn, error)")
	f.String("log-format", "", "log format (json, text, console)")
	f.String("filter-caps", "", "capability filter expression (ANY disables filtering)")
	f.String("constraint", "", "candidate constraint expression")

	_ = v.BindPFlag("data_dir", f.Lookup("data-dir"))
	_ = v.BindPFlag("observability.log_level", f.Lookup("log-level"))
	_ = v.BindPFlag("observability.log_format", f.Lookup("log-format"))
	_ = v.BindPFlag("detect.filter_caps", f.Lookup("filter-caps"))
	_ = v.BindPFlag("detect.constraint", f.Lookup("constraint"))
}

// Load reads config from flags, env, and file, returning the merged Config.
func Load(v *viper.Viper, configFile string) (Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("AUTOVIDEO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("autovideo")
		v.SetConfigType("hcl")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.autovideo")
		v.AddConfigPath("/etc/autovideo")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configFile != "" {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/visiona/autovideo/internal/caps"
	appconfig "github.com/visiona/autovideo/internal/config"
	"github.com/visiona/autovideo/internal/observability"
	"github.com/visiona/autovideo/internal/rules"

	// Registered source providers.
	_ "github.com/visiona/autovideo/internal/provider/archive"
	_ "github.com/visiona/autovideo/internal/provider/fake"
	_ "github.com/visiona/autovideo/internal/provider/file"
	_ "github.com/visiona/autovideo/internal/provider/redisstream"
	_ "github.com/visiona/autovideo/internal/provider/remote"
	_ "github.com/visiona/autovideo/internal/provider/rtsp"
	_ "github.com/visiona/autovideo/internal/provider/s3"
	_ "github.com/visiona/autovideo/internal/provider/testpattern"
	_ "github.com/visiona/autovideo/internal/provider/v4l2"
)

func main() {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "autovideo",
		Short: "Automatic video source detection",
	}
	appconfig.BindRootFlags(rootCmd, v)

	rootCmd.AddCommand(newListCmd(v))
	rootCmd.AddCommand(newDetectCmd(v))
	rootCmd.AddCommand(newCaptureCmd(v))
	rootCmd.AddCommand(newJournalCmd(v))
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges flags, env, and the config file.
func loadConfig(cmd *cobra.Command, v *viper.Viper) (appconfig.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	return appconfig.Load(v, configFile)
}

// setupLogging installs the process logger from config.
func setupLogging(cfg appconfig.Config) {
	observability.SetupLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, os.Stderr)
}

// detectFilter parses the configured capability filter. Empty keeps the
// built-in raw-video default; "ANY" disables filtering.
func detectFilter(cfg appconfig.Config) (*caps.Caps, error) {
	switch cfg.Detect.FilterCaps {
	case "":
		return caps.DefaultRaw(), nil
	case "ANY":
		return nil, nil
	default:
		c, err := caps.Parse(cfg.Detect.FilterCaps)
		if err != nil {
			return nil, fmt.Errorf("invalid filter caps %q: %w", cfg.Detect.FilterCaps, err)
		}
		return c, nil
	}
}

// detectConstraint compiles the configured candidate rule, nil when unset.
func detectConstraint(cfg appconfig.Config) (*rules.Constraint, error) {
	if cfg.Detect.Constraint == "" {
		return nil, nil
	}
	c, err := rules.Compile(cfg.Detect.Constraint)
	if err != nil {
		return nil, fmt.Errorf("invalid constraint %q: %w", cfg.Detect.Constraint, err)
	}
	return c, nil
}

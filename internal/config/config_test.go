package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.DataDir == "" {
		t.Error("data dir not defaulted")
	}
	if cfg.Detect.FilterCaps != "" || cfg.Detect.Constraint != "" {
		t.Errorf("detect defaults = %+v", cfg.Detect)
	}
	if cfg.Journal.Enabled {
		t.Error("journal enabled by default")
	}
	if cfg.Journal.Path == "" {
		t.Error("journal path not defaulted")
	}
	if cfg.Observability.LogLevel != "info" || cfg.Observability.LogFormat != "text" {
		t.Errorf("observability defaults = %+v", cfg.Observability)
	}
	if cfg.Observability.ServiceName != "autovideo" {
		t.Errorf("service name = %q", cfg.Observability.ServiceName)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AUTOVIDEO_OBSERVABILITY_LOG_LEVEL", "debug")
	t.Setenv("AUTOVIDEO_DETECT_CONSTRAINT", `rank >= 128`)

	cfg, err := Load(viper.New(), "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Observability.LogLevel)
	}
	if cfg.Detect.Constraint != `rank >= 128` {
		t.Errorf("constraint = %q", cfg.Detect.Constraint)
	}
}

func TestExplicitMissingConfigFileFails(t *testing.T) {
	if _, err := Load(viper.New(), "/nonexistent/autovideo.hcl"); err == nil {
		t.Error("expected error for explicit missing config file")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func newFlags() *pflag.FlagSet {
	f := pflag.NewFlagSet("callflow", pflag.ContinueOnError)
	f.Int("port", 8080, "")
	f.Bool("web", false, "")
	f.Int("max-ticks", 1000, "")
	f.Float64("charge", -400, "")
	f.Bool("summaries", false, "")
	return f
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Port)
	}
	if cfg.Layout.LinkDistance != 100 || cfg.Layout.Charge != -400 {
		t.Errorf("Unexpected layout defaults: %+v", cfg.Layout)
	}
	if cfg.Layout.Width != 600 || cfg.Layout.Height != 400 {
		t.Errorf("Expected 600x400 canvas, got %gx%g", cfg.Layout.Width, cfg.Layout.Height)
	}
	if cfg.Summaries.Model != "gpt-4o-mini" {
		t.Errorf("Expected default model gpt-4o-mini, got %s", cfg.Summaries.Model)
	}
}

func TestLoadPriority(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	toml := "port = 7000\n[layout]\ncharge = -100.0\nlink_distance = 50.0\n"
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CALLFLOW_PORT", "7500")
	t.Setenv("CALLFLOW_LAYOUT__THETA", "0.5")

	f := newFlags()
	if err := f.Parse([]string{"--charge=-250", "--max-ticks=42", "--summaries"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(f)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Env beats file
	if cfg.Port != 7500 {
		t.Errorf("Expected port 7500 from env, got %d", cfg.Port)
	}
	// File beats defaults
	if cfg.Layout.LinkDistance != 50 {
		t.Errorf("Expected link distance 50 from file, got %g", cfg.Layout.LinkDistance)
	}
	// Flags beat file
	if cfg.Layout.Charge != -250 {
		t.Errorf("Expected charge -250 from flag, got %g", cfg.Layout.Charge)
	}
	if cfg.Layout.Theta != 0.5 {
		t.Errorf("Expected theta 0.5 from env, got %g", cfg.Layout.Theta)
	}
	if cfg.MaxTicks != 42 {
		t.Errorf("Expected max ticks 42 from flag, got %d", cfg.MaxTicks)
	}
	if !cfg.Summaries.Enabled {
		t.Error("Expected summaries enabled from flag")
	}
}

func TestLoadUnsetFlagsKeepLowerLayers(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CALLFLOW_PORT", "9090")

	f := newFlags()
	if err := f.Parse(nil); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(f)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Unset --port flag should not override env, got %d", cfg.Port)
	}
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	cfg.Layout.AlphaMin = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for alpha_min 0")
	}

	cfg.Layout.AlphaMin = 0.001
	cfg.Layout.ZoomMax = 0.01
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for inverted zoom extent")
	}
}

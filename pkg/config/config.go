package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// FileName is the optional config file looked up in the working directory
const FileName = "callflow.toml"

// Config holds all configuration for the application
type Config struct {
	Source      string `koanf:"source"`
	Entry       string `koanf:"entry"`
	Output      string `koanf:"output"`
	SVG         string `koanf:"svg"`
	MaxTicks    int    `koanf:"max_ticks"`
	WebMode     bool   `koanf:"web"`
	Port        int    `koanf:"port"`
	Watch       bool   `koanf:"watch"`
	OpenBrowser bool   `koanf:"open"`
	TickHz      int    `koanf:"tick_hz"`
	Verbosity   string `koanf:"verbosity"`
	VerboseCnt  int    `koanf:"verbose"`
	JSONLogs    bool   `koanf:"json_logs"`

	Layout    LayoutConfig    `koanf:"layout"`
	Summaries SummariesConfig `koanf:"summaries"`
}

// LayoutConfig mirrors layout.Params so the engine can be tuned without a rebuild
type LayoutConfig struct {
	Width          float64 `koanf:"width"`
	Height         float64 `koanf:"height"`
	LinkDistance   float64 `koanf:"link_distance"`
	Charge         float64 `koanf:"charge"`
	Theta          float64 `koanf:"theta"`
	AlphaMin       float64 `koanf:"alpha_min"`
	AlphaDecay     float64 `koanf:"alpha_decay"` // 0 derives the decay from alpha_min
	VelocityDecay  float64 `koanf:"velocity_decay"`
	ReheatAlpha    float64 `koanf:"reheat_alpha"`
	ExactThreshold int     `koanf:"exact_threshold"`
	ZoomMin        float64 `koanf:"zoom_min"`
	ZoomMax        float64 `koanf:"zoom_max"`
	Seed           uint64  `koanf:"seed"`
}

// SummariesConfig controls the optional function summarizer
type SummariesConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Model       string `koanf:"model"`
	Concurrency int    `koanf:"concurrency"`
	APIKey      string `koanf:"-"`
}

// Load loads configuration from defaults, config file, .env, environment variables, and flags.
// Priority: Flags > Env > .env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]interface{}{
		"source":                 ".",
		"entry":                  "main",
		"output":                 "codeflow.md",
		"svg":                    "",
		"max_ticks":              1000,
		"web":                    false,
		"port":                   8080,
		"watch":                  false,
		"open":                   true,
		"tick_hz":                60,
		"verbosity":              "",
		"verbose":                0,
		"json_logs":              false,
		"layout.width":           600.0,
		"layout.height":          400.0,
		"layout.link_distance":   100.0,
		"layout.charge":          -400.0,
		"layout.theta":           0.9,
		"layout.alpha_min":       0.001,
		"layout.alpha_decay":     0.0,
		"layout.velocity_decay":  0.4,
		"layout.reheat_alpha":    0.3,
		"layout.exact_threshold": 64,
		"layout.zoom_min":        0.1,
		"layout.zoom_max":        8.0,
		"layout.seed":            1,
		"summaries.enabled":      false,
		"summaries.model":        "gpt-4o-mini",
		"summaries.concurrency":  4,
	}
	if err := k.Load(makeMapProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config File (optional) - callflow.toml
	// We ignore errors here as the file might not exist
	_ = k.Load(file.Provider(FileName), toml.Parser())

	// 3. .env (optional) only fills variables not already set in the environment
	_ = godotenv.Load()

	// 4. Environment Variables
	// Prefix: CALLFLOW_ (e.g., CALLFLOW_PORT=9090, CALLFLOW_LAYOUT__CHARGE=-200)
	// A double underscore separates nesting levels so keys may keep single underscores.
	if err := k.Load(env.Provider("CALLFLOW_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, "CALLFLOW_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 5. Flags
	if f != nil {
		if err := k.Load(posflag.ProviderWithFlag(f, ".", k, flagKey(f)), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// Unmarshal into struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// The key is a secret shared with other tools, so it keeps its conventional name
	cfg.Summaries.APIKey = os.Getenv("OPENAI_API_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the layout engine or server cannot work with
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.TickHz <= 0 {
		return fmt.Errorf("tick_hz must be positive, got %d", c.TickHz)
	}
	if c.Layout.Width <= 0 || c.Layout.Height <= 0 {
		return fmt.Errorf("layout size must be positive, got %gx%g", c.Layout.Width, c.Layout.Height)
	}
	if c.Layout.AlphaMin <= 0 || c.Layout.AlphaMin >= 1 {
		return fmt.Errorf("layout.alpha_min must be in (0, 1), got %g", c.Layout.AlphaMin)
	}
	if c.Layout.VelocityDecay < 0 || c.Layout.VelocityDecay > 1 {
		return fmt.Errorf("layout.velocity_decay must be in [0, 1], got %g", c.Layout.VelocityDecay)
	}
	if c.Layout.ZoomMin <= 0 || c.Layout.ZoomMax < c.Layout.ZoomMin {
		return fmt.Errorf("invalid zoom extent [%g, %g]", c.Layout.ZoomMin, c.Layout.ZoomMax)
	}
	return nil
}

// flagAliases maps flag names onto nested config keys
var flagAliases = map[string]string{
	"width":         "layout.width",
	"height":        "layout.height",
	"link-distance": "layout.link_distance",
	"charge":        "layout.charge",
	"theta":         "layout.theta",
	"seed":          "layout.seed",
	"summaries":     "summaries.enabled",
	"model":         "summaries.model",
}

// flagKey turns a dashed flag name into its koanf key
func flagKey(fs *pflag.FlagSet) func(f *pflag.Flag) (string, interface{}) {
	return func(f *pflag.Flag) (string, interface{}) {
		key, ok := flagAliases[f.Name]
		if !ok {
			key = strings.ReplaceAll(f.Name, "-", "_")
		}
		return key, posflag.FlagVal(fs, f)
	}
}

// mapProvider serves dotted default keys as a nested map
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return maps.Unflatten(p.m, "."), nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}

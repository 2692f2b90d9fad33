// Package config loads the optional launch configuration file.
//
// The launcher works with zero configuration (every field has a default
// reproducing the historical launch scripts), but a berth.jsonc or
// berth.yaml in the working directory can override any of them. JSONC
// (JSON with comments) is supported via github.com/tidwall/jsonc, which
// strips comments before parsing with the standard encoding/json library;
// YAML is parsed with gopkg.in/yaml.v3.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/mmr-tortoise/berth/internal/model"
)

// Default values reproducing the historical launcher behavior.
const (
	// DefaultAppFile is the served application's entry file.
	DefaultAppFile = "app.py"

	// DefaultInterpreter runs the entry file.
	DefaultInterpreter = "python3"

	// DefaultBasePort is the first candidate port, Streamlit's default.
	DefaultBasePort = 8501

	// DefaultMaxAttempts bounds the free-port scan.
	DefaultMaxAttempts = 10

	// DefaultLogFile receives a copy of all child process output.
	DefaultLogFile = "streamlit.log"
)

// configNames are the recognized config file names, in locate order.
var configNames = []string{"berth.jsonc", "berth.json", "berth.yaml", "berth.yml"}

// Config is the resolved launch configuration.
type Config struct {
	// AppFile is the served application's entry file.
	AppFile string

	// Interpreter is the runtime that executes AppFile.
	Interpreter string

	// BasePort is the first port the allocator tries.
	BasePort int

	// MaxAttempts is the number of consecutive ports the allocator scans.
	MaxAttempts int

	// SweepPorts is the fixed candidate list cleared during the Cleaning
	// phase, independent of the port finally allocated.
	SweepPorts []int

	// Patterns are command-line patterns for the best-effort broad kill.
	Patterns []string

	// LogFile is the fixed-name file duplicating child output.
	LogFile string

	// Server option toggles passed through to the served process.
	Headless             bool
	AutoReload           bool
	EnableCORS           bool
	EnableXSRFProtection bool
	DisableTelemetry     bool

	// Watch restarts the child when AppFile changes on disk.
	Watch bool

	// Docker enables stopping containers that publish candidate ports.
	Docker bool
}

// Default returns the configuration reproducing the launch scripts:
// app.py via python3 on 8501, a ten-port sweep, headless with auto-reload,
// CORS and XSRF protection off, telemetry opted out.
func Default() Config {
	cfg := Config{
		AppFile:          DefaultAppFile,
		Interpreter:      DefaultInterpreter,
		BasePort:         DefaultBasePort,
		MaxAttempts:      DefaultMaxAttempts,
		LogFile:          DefaultLogFile,
		Headless:         true,
		AutoReload:       true,
		DisableTelemetry: true,
		Docker:           true,
	}
	cfg.SweepPorts = defaultSweep(cfg.BasePort, cfg.MaxAttempts)
	return cfg
}

// defaultSweep is the fixed ascending candidate list: the scan range itself.
func defaultSweep(basePort, count int) []int {
	ports := make([]int, count)
	for i := range ports {
		ports[i] = basePort + i
	}
	return ports
}

// DefaultPatterns derives the broad-kill patterns for a given interpreter
// and entry file: the served-framework name, and the "interpreter running
// the entry file" shape.
func DefaultPatterns(interpreter, appFile string) []string {
	return []string{
		"streamlit run",
		fmt.Sprintf("%s.*%s", filepath.Base(interpreter), appFile),
	}
}

// rawConfig mirrors the file format. Fields are pointers so that an absent
// key is distinguishable from an explicit zero value: only keys present in
// the file override defaults.
type rawConfig struct {
	AppFile              *string  `json:"appFile,omitempty" yaml:"appFile"`
	Interpreter          *string  `json:"interpreter,omitempty" yaml:"interpreter"`
	BasePort             *int     `json:"basePort,omitempty" yaml:"basePort"`
	MaxAttempts          *int     `json:"maxAttempts,omitempty" yaml:"maxAttempts"`
	SweepPorts           []int    `json:"sweepPorts,omitempty" yaml:"sweepPorts"`
	Patterns             []string `json:"patterns,omitempty" yaml:"patterns"`
	LogFile              *string  `json:"logFile,omitempty" yaml:"logFile"`
	Headless             *bool    `json:"headless,omitempty" yaml:"headless"`
	AutoReload           *bool    `json:"autoReload,omitempty" yaml:"autoReload"`
	EnableCORS           *bool    `json:"enableCors,omitempty" yaml:"enableCors"`
	EnableXSRFProtection *bool    `json:"enableXsrfProtection,omitempty" yaml:"enableXsrfProtection"`
	DisableTelemetry     *bool    `json:"disableTelemetry,omitempty" yaml:"disableTelemetry"`
	Watch                *bool    `json:"watch,omitempty" yaml:"watch"`
	Docker               *bool    `json:"docker,omitempty" yaml:"docker"`
}

// Locate searches dir for a config file, trying the recognized names in
// order. Returns the path and true when one exists.
func Locate(dir string) (string, bool) {
	for _, name := range configNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// Load reads a config file and overlays it on the defaults. The format is
// chosen by extension: .yaml/.yml parse as YAML, everything else as JSONC.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	var raw rawConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("parsing YAML config %s: %w", path, err)
		}
	default:
		// jsonc.ToJSON strips comments and trailing commas, leaving plain
		// JSON for the standard decoder.
		if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
			return Config{}, fmt.Errorf("parsing JSONC config %s: %w", path, err)
		}
	}

	cfg := Default()
	cfg.apply(raw)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// apply overlays the raw file values onto the config. Only keys present in
// the file (non-nil pointers, non-empty slices) take effect.
func (c *Config) apply(raw rawConfig) {
	if raw.AppFile != nil {
		c.AppFile = *raw.AppFile
	}
	if raw.Interpreter != nil {
		c.Interpreter = *raw.Interpreter
	}
	if raw.BasePort != nil {
		c.BasePort = *raw.BasePort
		// The sweep list follows the base port unless explicitly set.
		c.SweepPorts = defaultSweep(c.BasePort, c.MaxAttempts)
	}
	if raw.MaxAttempts != nil {
		c.MaxAttempts = *raw.MaxAttempts
		c.SweepPorts = defaultSweep(c.BasePort, c.MaxAttempts)
	}
	if len(raw.SweepPorts) > 0 {
		c.SweepPorts = raw.SweepPorts
	}
	if len(raw.Patterns) > 0 {
		c.Patterns = raw.Patterns
	}
	if raw.LogFile != nil {
		c.LogFile = *raw.LogFile
	}
	if raw.Headless != nil {
		c.Headless = *raw.Headless
	}
	if raw.AutoReload != nil {
		c.AutoReload = *raw.AutoReload
	}
	if raw.EnableCORS != nil {
		c.EnableCORS = *raw.EnableCORS
	}
	if raw.EnableXSRFProtection != nil {
		c.EnableXSRFProtection = *raw.EnableXSRFProtection
	}
	if raw.DisableTelemetry != nil {
		c.DisableTelemetry = *raw.DisableTelemetry
	}
	if raw.Watch != nil {
		c.Watch = *raw.Watch
	}
	if raw.Docker != nil {
		c.Docker = *raw.Docker
	}
}

// EffectivePatterns returns the configured broad-kill patterns, or the
// derived defaults when none were configured.
func (c *Config) EffectivePatterns() []string {
	if len(c.Patterns) > 0 {
		return c.Patterns
	}
	return DefaultPatterns(c.Interpreter, c.AppFile)
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if c.AppFile == "" {
		return fmt.Errorf("appFile must not be empty")
	}
	if c.Interpreter == "" {
		return fmt.Errorf("interpreter must not be empty")
	}
	if err := model.ValidatePort(c.BasePort); err != nil {
		return fmt.Errorf("basePort: %w", err)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("maxAttempts must be at least 1, got %d", c.MaxAttempts)
	}
	for _, p := range c.SweepPorts {
		if err := model.ValidatePort(p); err != nil {
			return fmt.Errorf("sweepPorts: %w", err)
		}
	}
	if c.LogFile == "" {
		return fmt.Errorf("logFile must not be empty")
	}
	return nil
}

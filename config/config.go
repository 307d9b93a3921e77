// Package config carries the tunable settings for the server, the
// editor process and the bridge. Defaults work out of the box; a YAML
// file overrides individual keys.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nvimbridge/nvim-ide-mcp/poll"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "500ms" or "1m30s".
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the root configuration.
type Config struct {
	// Workspace is the directory all paths are resolved against.
	// Defaults to the current directory.
	Workspace string `yaml:"workspace"`
	Editor    Editor `yaml:"editor"`
	Bridge    Bridge `yaml:"bridge"`
	Poll      Poll   `yaml:"poll"`
	Log       Log    `yaml:"log"`
}

// Editor configures the headless editor process.
type Editor struct {
	Bin            string   `yaml:"bin"`
	InitFile       string   `yaml:"init_file"`
	ExtraArgs      []string `yaml:"extra_args"`
	SocketDir      string   `yaml:"socket_dir"`
	StartupTimeout Duration `yaml:"startup_timeout"`
	ReadyTimeout   Duration `yaml:"ready_timeout"`
}

// Bridge configures the RPC connection to the editor.
type Bridge struct {
	ConnectTimeout Duration `yaml:"connect_timeout"`
	RequestTimeout Duration `yaml:"request_timeout"`
	WriteTimeout   Duration `yaml:"write_timeout"`
	OutgoingBuffer int      `yaml:"outgoing_buffer"`
}

// Poll configures backoff for waits that have no push notification,
// such as language server readiness.
type Poll struct {
	InitialInterval Duration `yaml:"initial_interval"`
	MaxInterval     Duration `yaml:"max_interval"`
	Multiplier      float64  `yaml:"multiplier"`
	Deadline        Duration `yaml:"deadline"`
}

// Options converts the section into poll.Options for a named wait.
func (p Poll) Options(what string) poll.Options {
	return poll.Options{
		Initial:    time.Duration(p.InitialInterval),
		Max:        time.Duration(p.MaxInterval),
		Multiplier: p.Multiplier,
		Deadline:   time.Duration(p.Deadline),
		What:       what,
	}
}

// Log configures the file logger.
type Log struct {
	Level string `yaml:"level"`
	// File overrides the default log location under the user's home.
	File string `yaml:"file"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Workspace: ".",
		Editor: Editor{
			Bin:            "nvim",
			StartupTimeout: Duration(10 * time.Second),
			ReadyTimeout:   Duration(5 * time.Second),
		},
		Bridge: Bridge{
			ConnectTimeout: Duration(10 * time.Second),
			RequestTimeout: Duration(30 * time.Second),
			WriteTimeout:   Duration(10 * time.Second),
			OutgoingBuffer: 256,
		},
		Poll: Poll{
			InitialInterval: Duration(500 * time.Millisecond),
			MaxInterval:     Duration(2 * time.Second),
			Multiplier:      2,
			Deadline:        Duration(30 * time.Second),
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads a YAML file over the defaults. Keys absent from the file
// keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings the runtime cannot work with.
func (c *Config) Validate() error {
	if c.Editor.Bin == "" {
		return fmt.Errorf("editor.bin must not be empty")
	}
	for name, d := range map[string]Duration{
		"editor.startup_timeout": c.Editor.StartupTimeout,
		"editor.ready_timeout":   c.Editor.ReadyTimeout,
		"bridge.connect_timeout": c.Bridge.ConnectTimeout,
		"bridge.request_timeout": c.Bridge.RequestTimeout,
		"bridge.write_timeout":   c.Bridge.WriteTimeout,
		"poll.initial_interval":  c.Poll.InitialInterval,
		"poll.deadline":          c.Poll.Deadline,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.Poll.Multiplier < 1 {
		return fmt.Errorf("poll.multiplier must be >= 1, got %v", c.Poll.Multiplier)
	}
	return nil
}

// Package config loads the bridge's YAML configuration, filling in the
// documented default for every field so a missing or empty file is a
// fully functional configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	AdminWxid   string            `yaml:"admin_wxid"`
	Permissions PermissionsConfig `yaml:"permissions"`
	Claude      ClaudeConfig      `yaml:"claude"`
	Docker      DockerConfig      `yaml:"docker"`
	Session     SessionConfig     `yaml:"session"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit"`
	Security    SecurityConfig    `yaml:"security"`
	Logging     LoggingConfig     `yaml:"logging"`
	Telegram    TelegramConfig    `yaml:"telegram"`
}

type PermissionsConfig struct {
	DefaultLevel        string `yaml:"default_level"`
	NotifyUnauthorized  bool   `yaml:"notify_unauthorized"`
	UnauthorizedMessage string `yaml:"unauthorized_message"`
}

type ClaudeConfig struct {
	CLIPath string `yaml:"cli_path"`
	Timeout int    `yaml:"timeout"`
}

type DockerConfig struct {
	Image           string        `yaml:"image"`
	ContainerPrefix string        `yaml:"container_prefix"`
	DataDir         string        `yaml:"data_dir"`
	Limits          LimitsConfig  `yaml:"limits"`
	Network         NetworkConfig `yaml:"network"`
}

type LimitsConfig struct {
	Memory      string  `yaml:"memory"`
	AdminMemory string  `yaml:"admin_memory"`
	CPUs        float64 `yaml:"cpus"`
	AdminCPUs   float64 `yaml:"admin_cpus"`
	Pids        int64   `yaml:"pids"`
	TmpSize     string  `yaml:"tmp_size"`
}

type NetworkConfig struct {
	Admin   string `yaml:"admin"`
	Trusted string `yaml:"trusted"`
	Normal  string `yaml:"normal"`
}

type SessionConfig struct {
	ExpireMinutes int `yaml:"expire_minutes"`
	MaxHistory    int `yaml:"max_history"`
}

type RateLimitConfig struct {
	MaxPerMinute int `yaml:"max_per_minute"`
	MaxPerDay    int `yaml:"max_per_day"`
}

type SecurityConfig struct {
	BlockedPatterns []string `yaml:"blocked_patterns"`
}

type LoggingConfig struct {
	Level             string `yaml:"level"`
	File              string `yaml:"file"`
	LogMessageContent bool   `yaml:"log_message_content"`
}

type TelegramConfig struct {
	Token string `yaml:"token"`
}

// Default returns a Config populated entirely with the documented
// defaults. Callers overlay a file's contents on top of this, so a
// missing file or a file that sets only a handful of keys still
// produces a complete configuration.
func Default() *Config {
	return &Config{
		AdminWxid: "",
		Permissions: PermissionsConfig{
			DefaultLevel:        "normal",
			NotifyUnauthorized:  true,
			UnauthorizedMessage: "You are not authorized to use this bot.",
		},
		Claude: ClaudeConfig{
			CLIPath: "claude",
			Timeout: 120,
		},
		Docker: DockerConfig{
			Image:           "claude-sandbox:latest",
			ContainerPrefix: "claude-friend-",
			DataDir:         "~/claude-bridge-data",
			Limits: LimitsConfig{
				Memory:      "512m",
				AdminMemory: "2g",
				CPUs:        1,
				AdminCPUs:   2,
				Pids:        100,
				TmpSize:     "100m",
			},
			Network: NetworkConfig{
				Admin:   "bridge",
				Trusted: "claude-limited",
				Normal:  "none",
			},
		},
		Session: SessionConfig{
			ExpireMinutes: 60,
			MaxHistory:    50,
		},
		RateLimit: RateLimitConfig{
			MaxPerMinute: 10,
			MaxPerDay:    200,
		},
		Security: SecurityConfig{
			BlockedPatterns: nil,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path and overlays it onto Default(). A
// non-existent path is not an error: it yields the default config,
// matching the teacher's own "file doesn't exist -> defaults" Load().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// ResolveDataDir expands a leading "~" to the process owner's home
// directory, as the data_dir key's documentation promises.
func ResolveDataDir(dir string) (string, error) {
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if dir == "~" {
			return home, nil
		}
		return filepath.Join(home, dir[2:]), nil
	}
	return dir, nil
}

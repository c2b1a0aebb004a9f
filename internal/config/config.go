// Package config loads and validates daemon configuration. Policy strings
// ("50 MB", "30 days", "12:00") are parsed exactly once here; the rest of
// the system only ever sees the parsed forms.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/hansrobothans/logfan"
	"github.com/hansrobothans/logfan/internal/sink"
	"github.com/hansrobothans/logfan/internal/sink/file"
)

// Config is the daemon configuration as written, before validation. Viper
// fills it from file, environment (LOGFAN_ prefix) and defaults.
type Config struct {
	Socket     string        `mapstructure:"socket"`
	Buffer     int           `mapstructure:"buffer"`
	StatusAddr string        `mapstructure:"status_addr"`
	Quiet      bool          `mapstructure:"quiet"`
	Console    ConsoleConfig `mapstructure:"console"`
	Files      []FileConfig  `mapstructure:"files"`
}

type ConsoleConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Level   string `mapstructure:"level"`
	Color   string `mapstructure:"color"`
}

type FileConfig struct {
	Path     string `mapstructure:"path"`
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
	Rotate   string `mapstructure:"rotate"`
	Keep     string `mapstructure:"keep"`
	Compress string `mapstructure:"compress"`
}

// Load reads configuration from the given file, or when path is empty,
// from logfan.{json,yaml,toml} in the working directory or the user config
// dir. A missing file is fine with an explicit path it is not.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LOGFAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("socket", logfan.DefaultSocketPath())
	v.SetDefault("buffer", sink.DefaultRingCapacity)
	v.SetDefault("status_addr", "")
	v.SetDefault("quiet", false)
	v.SetDefault("console.enabled", true)
	v.SetDefault("console.level", "INFO")
	v.SetDefault("console.color", "auto")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else {
		v.SetConfigName("logfan")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "logfan"))
		}
		if err := v.ReadInConfig(); err != nil {
			var configFileNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFound) {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// Settings is the validated, parsed form of Config.
type Settings struct {
	Socket     string
	Buffer     int
	StatusAddr string
	Quiet      bool
	Console    *ConsoleSettings // nil when the console sink is disabled
	Files      []FileSettings
}

type ConsoleSettings struct {
	Level logfan.Level
	Color string
}

type FileSettings struct {
	File  file.Config
	Level logfan.Level
}

// Parse validates the raw config and converts every policy string to its
// parsed form. Two file sinks on the same path are rejected here, before
// anything is opened.
func (c *Config) Parse() (*Settings, error) {
	s := &Settings{
		Socket:     c.Socket,
		Buffer:     c.Buffer,
		StatusAddr: c.StatusAddr,
		Quiet:      c.Quiet,
	}
	if s.Socket == "" {
		s.Socket = logfan.DefaultSocketPath()
	}
	if s.Buffer <= 0 {
		s.Buffer = sink.DefaultRingCapacity
	}

	if c.Console.Enabled {
		level := logfan.LevelInfo
		if c.Console.Level != "" {
			var err error
			level, err = logfan.ParseLevel(c.Console.Level)
			if err != nil {
				return nil, &logfan.ConfigError{Field: "console.level", Reason: err.Error()}
			}
		}
		s.Console = &ConsoleSettings{Level: level, Color: c.Console.Color}
	}

	paths := make(map[string]int, len(c.Files))
	for i, fc := range c.Files {
		field := fmt.Sprintf("files[%d]", i)
		if fc.Path == "" {
			return nil, &logfan.ConfigError{Field: field + ".path", Reason: "must not be empty"}
		}
		abs, err := filepath.Abs(fc.Path)
		if err != nil {
			return nil, &logfan.ConfigError{Field: field + ".path", Reason: err.Error()}
		}
		if prev, dup := paths[abs]; dup {
			return nil, &logfan.ConfigError{
				Field:  field + ".path",
				Reason: fmt.Sprintf("%s already used by files[%d]", fc.Path, prev),
			}
		}
		paths[abs] = i

		level := logfan.LevelTrace
		if fc.Level != "" {
			level, err = logfan.ParseLevel(fc.Level)
			if err != nil {
				return nil, &logfan.ConfigError{Field: field + ".level", Reason: err.Error()}
			}
		}
		switch fc.Encoding {
		case "", "text", "json":
		default:
			return nil, &logfan.ConfigError{Field: field + ".encoding", Reason: fmt.Sprintf("unknown encoding %q", fc.Encoding)}
		}
		rot, err := ParseRotation(fc.Rotate)
		if err != nil {
			return nil, &logfan.ConfigError{Field: field + ".rotate", Reason: err.Error()}
		}
		keep, err := ParseRetention(fc.Keep)
		if err != nil {
			return nil, &logfan.ConfigError{Field: field + ".keep", Reason: err.Error()}
		}
		comp, err := ParseCompression(fc.Compress)
		if err != nil {
			return nil, &logfan.ConfigError{Field: field + ".compress", Reason: err.Error()}
		}
		s.Files = append(s.Files, FileSettings{
			File: file.Config{
				Path:        fc.Path,
				Encoding:    fc.Encoding,
				Rotation:    rot,
				Retention:   keep,
				Compression: comp,
			},
			Level: level,
		})
	}
	return s, nil
}

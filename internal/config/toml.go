// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Study  StudyConfig  `toml:"study"`
	Server ServerConfig `toml:"server"`
}

// StudyConfig maps study session settings. Nil fields were not set.
type StudyConfig struct {
	Server       *string  `toml:"server"`
	Box          *int64   `toml:"box"`
	StackSize    *int     `toml:"stack-size"`
	MaxInFlight  *int     `toml:"max-in-flight"`
	LIFO         *bool    `toml:"lifo"`
	ShowStack    *bool    `toml:"show-stack"`
	FlipKeys     []string `toml:"flip-keys"`
	CorrectKeys  []string `toml:"correct-keys"`
	WrongKeys    []string `toml:"wrong-keys"`
	GradeRetries *int     `toml:"grade-retries"`
	Timeout      *string  `toml:"timeout"`
}

// ServerConfig maps card server settings.
type ServerConfig struct {
	Addr *string `toml:"addr"`
	DB   *string `toml:"db"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}

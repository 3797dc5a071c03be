// Package config loads pipeline settings through Viper.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

const (
	DefaultMaxBrickSize = 256
	DefaultBrickOverlap = 4
)

// Settings holds the tunables of the conversion pipeline.
type Settings struct {
	MaxBrickSize uint64 `mapstructure:"max_brick_size"`
	BrickOverlap uint64 `mapstructure:"brick_overlap"`
	TempDir      string `mapstructure:"temp_dir"`
}

// Load reads settings from the given config file, or returns defaults when
// path is empty.
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetDefault("max_brick_size", DefaultMaxBrickSize)
	v.SetDefault("brick_overlap", DefaultBrickOverlap)
	v.SetDefault("temp_dir", os.TempDir())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Default returns the built-in settings.
func Default() *Settings {
	return &Settings{
		MaxBrickSize: DefaultMaxBrickSize,
		BrickOverlap: DefaultBrickOverlap,
		TempDir:      os.TempDir(),
	}
}

// Validate enforces the brick geometry invariant.
func (s *Settings) Validate() error {
	if s.MaxBrickSize <= s.BrickOverlap {
		return fmt.Errorf("max brick size %d must exceed brick overlap %d",
			s.MaxBrickSize, s.BrickOverlap)
	}
	return nil
}

// SetMaxBrickSize updates the brick size, rejecting values that would not
// leave room for the overlap.
func (s *Settings) SetMaxBrickSize(size uint64) bool {
	if size > s.BrickOverlap {
		s.MaxBrickSize = size
		return true
	}
	return false
}

// SetBrickOverlap updates the overlap, rejecting values at or above the
// brick size.
func (s *Settings) SetBrickOverlap(overlap uint64) bool {
	if s.MaxBrickSize > overlap {
		s.BrickOverlap = overlap
		return true
	}
	return false
}

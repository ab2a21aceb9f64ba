package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tracker tuning
// parameters. Fields are pointers so a partial JSON file only overrides
// what it names; the Get* methods supply fallback defaults.
type TuningConfig struct {
	// Association params
	BlobMoveThreshold *float64 `json:"blob_move_threshold,omitempty"` // Gating radius as a multiple of blob diameter
	VerboseAssign     *bool    `json:"verbose_assign,omitempty"`      // Trace every association decision

	// Beacon lifecycle params
	MaxBeacons    *int `json:"max_beacons,omitempty"`
	MaxMisses     *int `json:"max_misses,omitempty"`
	HitsToConfirm *int `json:"hits_to_confirm,omitempty"`

	// Update validation params
	MaxPositionJumpPx *float64 `json:"max_position_jump_px,omitempty"`
	SmoothingAlpha    *float64 `json:"smoothing_alpha,omitempty"`

	// History limits
	MaxHistoryLength *int `json:"max_history_length,omitempty"`

	// Persistence params
	FlushInterval *string `json:"flush_interval,omitempty"` // duration string like "60s"
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must
// have a .json extension and stay under the max file size. Fields
// omitted from the JSON retain their defaults, so partial configs are
// safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath, searching the current directory and common parent
// directories. Panics if the file cannot be loaded; intended for test
// setup and binaries that have already validated config availability.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/vbtrack/monitor/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.BlobMoveThreshold != nil && *c.BlobMoveThreshold <= 0 {
		return fmt.Errorf("blob_move_threshold must be positive, got %f", *c.BlobMoveThreshold)
	}
	if c.SmoothingAlpha != nil {
		if *c.SmoothingAlpha <= 0 || *c.SmoothingAlpha > 1 {
			return fmt.Errorf("smoothing_alpha must be in (0, 1], got %f", *c.SmoothingAlpha)
		}
	}
	if c.MaxPositionJumpPx != nil && *c.MaxPositionJumpPx <= 0 {
		return fmt.Errorf("max_position_jump_px must be positive, got %f", *c.MaxPositionJumpPx)
	}
	if c.MaxBeacons != nil && *c.MaxBeacons < 1 {
		return fmt.Errorf("max_beacons must be >= 1, got %d", *c.MaxBeacons)
	}
	if c.MaxMisses != nil && *c.MaxMisses < 1 {
		return fmt.Errorf("max_misses must be >= 1, got %d", *c.MaxMisses)
	}
	if c.HitsToConfirm != nil && *c.HitsToConfirm < 1 {
		return fmt.Errorf("hits_to_confirm must be >= 1, got %d", *c.HitsToConfirm)
	}
	if c.MaxHistoryLength != nil && *c.MaxHistoryLength < 1 {
		return fmt.Errorf("max_history_length must be >= 1, got %d", *c.MaxHistoryLength)
	}
	if c.FlushInterval != nil && *c.FlushInterval != "" {
		if _, err := time.ParseDuration(*c.FlushInterval); err != nil {
			return fmt.Errorf("invalid flush_interval '%s': %w", *c.FlushInterval, err)
		}
	}
	return nil
}

// GetBlobMoveThreshold returns the blob_move_threshold value or the default.
func (c *TuningConfig) GetBlobMoveThreshold() float64 {
	if c.BlobMoveThreshold == nil {
		return 4.0
	}
	return *c.BlobMoveThreshold
}

// GetVerboseAssign returns the verbose_assign value or the default.
func (c *TuningConfig) GetVerboseAssign() bool {
	if c.VerboseAssign == nil {
		return false
	}
	return *c.VerboseAssign
}

// GetMaxBeacons returns the max_beacons value or the default.
func (c *TuningConfig) GetMaxBeacons() int {
	if c.MaxBeacons == nil {
		return 64
	}
	return *c.MaxBeacons
}

// GetMaxMisses returns the max_misses value or the default.
func (c *TuningConfig) GetMaxMisses() int {
	if c.MaxMisses == nil {
		return 3
	}
	return *c.MaxMisses
}

// GetHitsToConfirm returns the hits_to_confirm value or the default.
func (c *TuningConfig) GetHitsToConfirm() int {
	if c.HitsToConfirm == nil {
		return 3
	}
	return *c.HitsToConfirm
}

// GetMaxPositionJumpPx returns the max_position_jump_px value or the default.
func (c *TuningConfig) GetMaxPositionJumpPx() float64 {
	if c.MaxPositionJumpPx == nil {
		return 40.0
	}
	return *c.MaxPositionJumpPx
}

// GetSmoothingAlpha returns the smoothing_alpha value or the default.
func (c *TuningConfig) GetSmoothingAlpha() float64 {
	if c.SmoothingAlpha == nil {
		return 1.0
	}
	return *c.SmoothingAlpha
}

// GetMaxHistoryLength returns the max_history_length value or the default.
func (c *TuningConfig) GetMaxHistoryLength() int {
	if c.MaxHistoryLength == nil {
		return 100
	}
	return *c.MaxHistoryLength
}

// GetFlushInterval parses and returns the FlushInterval as a time.Duration.
func (c *TuningConfig) GetFlushInterval() time.Duration {
	if c.FlushInterval == nil || *c.FlushInterval == "" {
		return 60 * time.Second
	}
	d, err := time.ParseDuration(*c.FlushInterval)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

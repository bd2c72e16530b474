// Package config provides configuration loading and management for nii2img.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the conversion configuration loaded from YAML.
// Command-line flags override whatever a file provides.
type Config struct {
	// Input data locations
	Input struct {
		// X lists the input channel folders (one folder per channel)
		X []string `yaml:"x"`

		// Y lists the target ground-truth channel folders
		Y []string `yaml:"y"`
	} `yaml:"input"`

	// Output parameters
	Output struct {
		// Folder is the root output folder for the generated dataset
		Folder string `yaml:"folder"`

		// ImSize forces samples to [W, H]; empty uses the first volume's size
		ImSize []int `yaml:"imsize"`

		// Force enables overwrite protection for pre-existing output files
		Force bool `yaml:"force"`

		// Previews additionally writes Gray16 preview images
		Previews bool `yaml:"previews"`
	} `yaml:"output"`

	// Sampling parameters
	Sampling struct {
		// Axes lists the volume axes (0, 1, 2) to sample slices along
		Axes []int `yaml:"axes"`

		// XSlices and YSlices are the adjacent-slice counts (odd, <= 5)
		XSlices int `yaml:"xslices"`
		YSlices int `yaml:"yslices"`

		// Shuffle randomizes subject order
		Shuffle bool `yaml:"shuffle"`

		// TestFraction and ValFraction are integer percentages of
		// subjects held out for testing and validation
		TestFraction int `yaml:"testFraction"`
		ValFraction  int `yaml:"valFraction"`
	} `yaml:"sampling"`

	// Augmentation parameters
	Augmentation struct {
		// Factor is the number of samples generated per slice
		Factor int `yaml:"factor"`

		// Mode is the boundary extension: mirror, nearest, reflect or wrap
		Mode string `yaml:"mode"`

		// Seed fixes the random generator for reproducible runs
		Seed int64 `yaml:"seed"`

		// AddNoise is the Gaussian noise sigma; zero disables noise
		AddNoise float64 `yaml:"addNoise"`

		// HFlips and VFlips enable random flips per axis
		HFlips bool `yaml:"hflips"`
		VFlips bool `yaml:"vflips"`

		// Rotations, Shears, Scalings, Translations are the maximum
		// magnitudes of the random affine components
		Rotations    float64 `yaml:"rotations"`
		Shears       float64 `yaml:"shears"`
		Scalings     float64 `yaml:"scalings"`
		Translations float64 `yaml:"translations"`
	} `yaml:"augmentation"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Sampling.Axes = []int{2}
	cfg.Sampling.XSlices = 1
	cfg.Sampling.YSlices = 1

	cfg.Augmentation.Factor = 5
	cfg.Augmentation.Mode = "reflect"
	cfg.Augmentation.Seed = 813

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

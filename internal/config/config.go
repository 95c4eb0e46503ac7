package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

const (
	defaultConfigPath = "~/.config/skyproc/config.json"
	defaultParallel   = 4
)

// Config holds user-editable settings for the pipeline.
type Config struct {
	Processing Processing      `json:"processing"`
	Logging    Logging         `json:"logging"`
	Paths      Paths           `json:"paths"`
	Convolve   ConvolveConfig  `json:"convolve"`
	Reproject  ReprojectConfig `json:"reproject"`
	Preview    PreviewConfig   `json:"preview"`
}

// Processing captures execution preferences.
type Processing struct {
	ParallelJobs int    `json:"parallel_jobs"`
	TempDir      string `json:"temp_dir"`
}

// Logging controls logging verbosity and destinations.
type Logging struct {
	Level      string `json:"level"`       // debug, info, warn, error
	Format     string `json:"format"`      // text, json
	FileOutput bool   `json:"file_output"` // Enable file logging
	LogDir     string `json:"log_dir"`     // Directory for log files
	MaxSize    int    `json:"max_size"`    // Max size in MB before rotation
	MaxBackups int    `json:"max_backups"` // Number of backup files to keep
	MaxAge     int    `json:"max_age"`     // Days to keep log files
}

// Paths configures default input/output locations.
type Paths struct {
	DefaultInput  string   `json:"default_input"`
	DefaultOutput string   `json:"default_output"`
	DatabasePath  string   `json:"database_path"`
	WatchDirs     []string `json:"watch_dirs"`
}

// ConvolveConfig sets smoothing defaults.
type ConvolveConfig struct {
	// KernelMethod is how NaN samples enter the convolution:
	// "zerofill" or "interpolate".
	KernelMethod string `json:"kernel_method"`
}

// ReprojectConfig configures the Montage-backed frame rotations.
type ReprojectConfig struct {
	// CanvasNX/CanvasNY size the synthetic Galactic target grid.
	CanvasNX int    `json:"canvas_nx"`
	CanvasNY int    `json:"canvas_ny"`
	WorkDir  string `json:"work_dir"`

	// Binary names, overridable for non-standard Montage installs.
	MProject     string `json:"mproject"`
	MProjectCube string `json:"mprojectcube"`
	MGetHdr      string `json:"mgethdr"`
}

// PreviewConfig controls PNG quicklook rendering.
type PreviewConfig struct {
	MaxDim int `json:"max_dim"`
	// QuantLow/QuantHigh are the grey stretch quantiles in [0, 1].
	QuantLow  float64 `json:"quant_low"`
	QuantHigh float64 `json:"quant_high"`
}

// Load reads configuration from disk, falling back to sensible defaults.
func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := os.Getenv("SKYPROC_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	expanded, err := expandUser(configPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(expanded)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Processing: Processing{
			ParallelJobs: defaultParallel,
			TempDir:      os.TempDir(),
		},
		Logging: Logging{
			Level:      "info",
			Format:     "text",
			FileOutput: true,
			LogDir:     "./logs",
			MaxSize:    100, // 100MB
			MaxBackups: 5,
			MaxAge:     30, // 30 days
		},
		Paths: Paths{
			DefaultInput:  ".",
			DefaultOutput: "./output",
			DatabasePath:  filepath.Join(os.TempDir(), "skyproc.db"),
		},
		Convolve: ConvolveConfig{
			KernelMethod: "interpolate",
		},
		Reproject: ReprojectConfig{
			CanvasNX:     6000,
			CanvasNY:     6000,
			WorkDir:      filepath.Join(os.TempDir(), "skyproc-reproject"),
			MProject:     "mProject",
			MProjectCube: "mProjectCube",
			MGetHdr:      "mGetHdr",
		},
		Preview: PreviewConfig{
			MaxDim:    1024,
			QuantLow:  0.01,
			QuantHigh: 0.99,
		},
	}
}

func expandUser(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	if path == "~" {
		return home, nil
	}

	return filepath.Join(home, path[2:]), nil
}

// Package config holds the tunables for the adaptive cardinality predictor.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Mode selects how aggressively the predictor inserts itself into planning.
type Mode string

const (
	ModeIntelligent Mode = "intelligent"
	ModeForced      Mode = "forced"
	ModeControlled  Mode = "controlled"
	ModeLearn       Mode = "learn"
	ModeFrozen      Mode = "frozen"
	ModeDisabled    Mode = "disabled"
)

// Config is the top-level predictor configuration.
type Config struct {
	Mode      Mode            `json:"mode"`
	Store     StoreConfig     `json:"store"`
	ML        MLConfig        `json:"ml"`
	Tuning    TuningConfig    `json:"tuning"`
	Snapshot  SnapshotConfig  `json:"snapshot"`
	Log       LogConfig       `json:"log"`
}

// StoreConfig bounds the four shared hash tables and the heap behind them.
type StoreConfig struct {
	FSMaxItems       int `json:"fs_max_items"`
	FSSMaxItems      int `json:"fss_max_items"`
	QueryTextMaxSize int `json:"querytext_max_size"`
	DSMSizeMaxMB     int `json:"dsm_size_max_mb"`
}

// MLConfig drives the kNN regressor and the prediction pipeline's
// cross-sub-space fallback.
type MLConfig struct {
	K                       int     `json:"k"`
	PredictWithFewNeighbors bool    `json:"predict_with_few_neighbors"`
	WideSearch              bool    `json:"wide_search"`
	JoinThreshold           int     `json:"join_threshold"`
	LogSelFloor             float64 `json:"log_sel_floor"`
}

// TuningConfig drives the auto-tuner (§4.H).
type TuningConfig struct {
	WindowSize             int           `json:"window_size"`
	ConvergenceError        float64       `json:"convergence_error"`
	InfiniteLoopWindow      int           `json:"infinite_loop_window"`
	MaxIterations           int           `json:"max_iterations"`
	TimeoutInflationFactor  float64       `json:"timeout_inflation_factor"`
	LearnOnTimeout          bool          `json:"learn_on_timeout"`
	LearnStatementTimeout   time.Duration `json:"learn_statement_timeout"`
	StatementTimeout        time.Duration `json:"statement_timeout"`
}

// SnapshotConfig governs where and how the store persists itself.
type SnapshotConfig struct {
	Dir     string `json:"dir"`
	Backend string `json:"backend"` // "file" or "badger"
}

// LogConfig controls the predictor's own diagnostic logging.
type LogConfig struct {
	Debug bool `json:"debug"`
}

// DefaultConfig returns the out-of-the-box tunables (aqo_k=3,
// log_sel_floor=-30, a 20-sample tuning window, ...). The matrix size K=30
// and the learning rate are constants of package knn, not Config fields.
func DefaultConfig() *Config {
	return &Config{
		Mode: ModeIntelligent,
		Store: StoreConfig{
			FSMaxItems:       10000,
			FSSMaxItems:      100000,
			QueryTextMaxSize: 4096,
			DSMSizeMaxMB:     100,
		},
		ML: MLConfig{
			K:                       3,
			PredictWithFewNeighbors: false,
			WideSearch:              false,
			JoinThreshold:           0,
			LogSelFloor:             -30,
		},
		Tuning: TuningConfig{
			WindowSize:             20,
			ConvergenceError:       0.01,
			InfiniteLoopWindow:     50,
			MaxIterations:          100,
			TimeoutInflationFactor: 10,
			LearnOnTimeout:         true,
			LearnStatementTimeout:  0,
			StatementTimeout:       0,
		},
		Snapshot: SnapshotConfig{
			Dir:     "aqo_data",
			Backend: "file",
		},
		Log: LogConfig{
			Debug: false,
		},
	}
}

// LoadConfig reads configuration from a JSON file, falling back to defaults
// for any field the file doesn't set.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadConfigOrDefault tries a few conventional locations before giving up
// and returning defaults.
func LoadConfigOrDefault() *Config {
	if envPath := os.Getenv("AQO_CONFIG"); envPath != "" {
		if cfg, err := LoadConfig(envPath); err == nil {
			return cfg
		}
	}

	possiblePaths := []string{
		"aqo.json",
		"./config/aqo.json",
		"/etc/aqo/aqo.json",
	}
	for _, path := range possiblePaths {
		if absPath, err := filepath.Abs(path); err == nil {
			if cfg, err := LoadConfig(absPath); err == nil {
				return cfg
			}
		}
	}

	return DefaultConfig()
}

func validateConfig(cfg *Config) error {
	switch cfg.Mode {
	case ModeIntelligent, ModeForced, ModeControlled, ModeLearn, ModeFrozen, ModeDisabled:
	default:
		return fmt.Errorf("invalid mode: %q", cfg.Mode)
	}

	if cfg.Store.FSMaxItems < 1 {
		return fmt.Errorf("store.fs_max_items must be > 0")
	}
	if cfg.Store.FSSMaxItems < 1 {
		return fmt.Errorf("store.fss_max_items must be > 0")
	}
	if cfg.ML.K < 1 {
		return fmt.Errorf("ml.k must be > 0")
	}
	if cfg.Tuning.WindowSize < 1 {
		return fmt.Errorf("tuning.window_size must be > 0")
	}
	if cfg.Tuning.MaxIterations < 1 {
		return fmt.Errorf("tuning.max_iterations must be > 0")
	}
	switch cfg.Snapshot.Backend {
	case "file", "badger":
	default:
		return fmt.Errorf("invalid snapshot backend: %q", cfg.Snapshot.Backend)
	}

	return nil
}

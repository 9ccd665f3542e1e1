// Package config loads lazygrid settings from JSONC files and command line
// overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Alp4ka/lazypager"
	"github.com/samber/lo"
	"github.com/tailscale/hujson"
)

// FileName is the config file picked up from the working directory when no
// explicit path is given.
const FileName = ".lazygrid.json"

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

var (
	ErrFileNotFound   = errors.New("config file not found")
	ErrFileRead       = errors.New("cannot read config file")
	ErrInvalid        = errors.New("invalid config")
	ErrUnknownDriver  = errors.New("unknown driver")
	ErrDSNEmpty       = errors.New("dsn cannot be empty")
	ErrTableEmpty     = errors.New("table cannot be empty")
	ErrKeyEmpty       = errors.New("key_column cannot be empty")
	ErrPageSizeBounds = errors.New("max_page_size out of bounds")
	ErrMinFilterLen   = errors.New("min_filter_length cannot be negative")
)

// Config holds everything lazygrid needs to page through one table.
type Config struct {
	Driver          string                  `json:"driver"`
	DSN             string                  `json:"dsn"`
	Table           string                  `json:"table"`
	KeyColumn       string                  `json:"key_column"`
	SearchColumns   []string                `json:"search_columns"`
	Columns         lazypager.ColumnMapping `json:"columns"`
	MinFilterLength int                     `json:"min_filter_length"`
	MaxPageSize     int                     `json:"max_page_size"`
	Combine         string                  `json:"combine"`

	// Source is the config file that was loaded, empty if none.
	Source string `json:"-"`
}

// Default returns the configuration used before any file or flag is applied.
func Default() Config {
	return Config{
		Driver:          DriverSQLite,
		KeyColumn:       "id",
		MinFilterLength: lazypager.DefaultMinFilterLength,
		MaxPageSize:     lazypager.MaxPageSize,
		Combine:         lazypager.CombineAll.String(),
	}
}

// Keys is the set of config keys explicitly given by a source. Zero values
// only override when their key is present.
type Keys map[string]bool

// LoadInput holds the inputs for Load.
type LoadInput struct {
	WorkDir    string // directory searched for FileName; os.Getwd() if empty
	ConfigPath string // -c/--config flag value, must exist when set
	Overrides  Config // values from command line flags
	Changed    Keys   // config keys set on the command line
}

// Load builds the configuration with the following precedence (highest wins):
// 1. Defaults
// 2. FileName in the working directory, or the explicit ConfigPath
// 3. Command line overrides.
func Load(input LoadInput) (Config, error) {
	workDir := input.WorkDir
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := Default()

	fileCfg, keys, path, err := loadFile(workDir, input.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	cfg = Merge(cfg, fileCfg, keys)
	cfg.Source = path
	cfg = Merge(cfg, input.Overrides, input.Changed)

	err = cfg.Validate()
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadFile(workDir, configPath string) (Config, Keys, string, error) {
	path := configPath
	mustExist := path != ""

	if mustExist {
		if !filepath.IsAbs(path) {
			path = filepath.Join(workDir, path)
		}

		_, statErr := os.Stat(path)
		if statErr != nil {
			return Config{}, nil, "", fmt.Errorf("%w: %s", ErrFileNotFound, configPath)
		}
	} else {
		path = filepath.Join(workDir, FileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, nil, "", nil
		}

		return Config{}, nil, "", fmt.Errorf("%w: %s", ErrFileRead, path)
	}

	cfg, keys, err := Parse(data)
	if err != nil {
		return Config{}, nil, "", fmt.Errorf("%w %s: %w", ErrInvalid, path, err)
	}

	return cfg, keys, path, nil
}

// Parse decodes a JSONC document and reports which keys it sets.
func Parse(data []byte) (Config, Keys, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, nil, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config

	err = json.Unmarshal(standardized, &cfg)
	if err != nil {
		return Config{}, nil, fmt.Errorf("invalid JSON: %w", err)
	}

	var raw map[string]json.RawMessage

	err = json.Unmarshal(standardized, &raw)
	if err != nil {
		return Config{}, nil, fmt.Errorf("invalid JSON object: %w", err)
	}

	keys := make(Keys, len(raw))
	for key := range raw {
		keys[key] = true
	}

	return cfg, keys, nil
}

// Merge applies the keys of overlay onto base.
func Merge(base, overlay Config, keys Keys) Config {
	if keys["driver"] {
		base.Driver = overlay.Driver
	}

	if keys["dsn"] {
		base.DSN = overlay.DSN
	}

	if keys["table"] {
		base.Table = overlay.Table
	}

	if keys["key_column"] {
		base.KeyColumn = overlay.KeyColumn
	}

	if keys["search_columns"] {
		base.SearchColumns = overlay.SearchColumns
	}

	if keys["columns"] {
		base.Columns = overlay.Columns
	}

	if keys["min_filter_length"] {
		base.MinFilterLength = overlay.MinFilterLength
	}

	if keys["max_page_size"] {
		base.MaxPageSize = overlay.MaxPageSize
	}

	if keys["combine"] {
		base.Combine = overlay.Combine
	}

	return base
}

// Validate checks the values that cannot be caught later by the database.
func (c Config) Validate() error {
	var errs []error

	if !lo.Contains([]string{DriverSQLite, DriverMySQL, DriverPostgres}, c.Driver) {
		errs = append(errs, fmt.Errorf("%w '%s'", ErrUnknownDriver, c.Driver))
	}

	if strings.TrimSpace(c.DSN) == "" {
		errs = append(errs, ErrDSNEmpty)
	}

	if strings.TrimSpace(c.Table) == "" {
		errs = append(errs, ErrTableEmpty)
	}

	if strings.TrimSpace(c.KeyColumn) == "" {
		errs = append(errs, ErrKeyEmpty)
	}

	if c.MinFilterLength < 0 {
		errs = append(errs, ErrMinFilterLen)
	}

	if c.MaxPageSize <= 0 || c.MaxPageSize > lazypager.MaxPageSize {
		errs = append(errs, fmt.Errorf("%w: %d not in (0, %d]", ErrPageSizeBounds, c.MaxPageSize, lazypager.MaxPageSize))
	}

	_, err := lazypager.ParseFilterCombination(c.Combine)
	if err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}

	return nil
}

// FilterCombination returns the parsed combine key. Call Validate first.
func (c Config) FilterCombination() lazypager.FilterCombination {
	combination, _ := lazypager.ParseFilterCombination(c.Combine)

	return combination
}

// SortableColumns returns the aliases accepted by --sort: every configured
// alias plus the key and search columns under their own names.
func (c Config) SortableColumns() lazypager.ColumnMapping {
	ret := make(lazypager.ColumnMapping, len(c.Columns)+len(c.SearchColumns)+1)
	for _, column := range append([]string{c.KeyColumn}, c.SearchColumns...) {
		ret[column] = column
	}

	for alias, column := range c.Columns {
		ret[alias] = column
	}

	return ret
}

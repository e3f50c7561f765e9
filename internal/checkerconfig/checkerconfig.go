// Package checkerconfig loads the checker's process-wide configuration from
// defaults, config files, and CLI flag overrides, in that precedence order.
package checkerconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"

	"github.com/calvinalkan/pmemcheck/internal/engine"
)

// ConfigFileName is the default project config file name.
const ConfigFileName = ".pmemcheck.jsonc"

// file is the on-disk shape of a config file: every field optional, so a
// file that only overrides one knob doesn't have to restate the rest.
type file struct {
	MultStores   *bool   `json:"mult_stores,omitempty"`
	Indiff       *uint64 `json:"indiff,omitempty"`
	LogStores    *bool   `json:"log_stores,omitempty"`
	PrintSummary *bool   `json:"print_summary,omitempty"`
	FlushCheck   *bool   `json:"flush_check,omitempty"`
	FlushAlign   *uint64 `json:"flush_align,omitempty"`
}

// Sources tracks which config files were actually loaded, for diagnostics.
type Sources struct {
	Global  string
	Project string
}

// Config is the resolved, process-wide configuration: the engine's
// [engine.GlobalConfig] plus the paths it was assembled from.
type Config struct {
	Global engine.GlobalConfig

	EffectiveCwd string
	Sources      Sources
}

// Overrides are CLI flag values; a nil pointer means "flag not passed",
// distinct from the flag's default.
type Overrides struct {
	MultStores   *bool
	Indiff       *uint64
	LogStores    *bool
	PrintSummary *bool
	FlushCheck   *bool
	FlushAlign   *uint64
}

// LoadInput holds every input to [Load].
type LoadInput struct {
	// WorkDirOverride is the -C/--cwd flag value; if empty, os.Getwd() is used.
	WorkDirOverride string
	// ConfigPath is the -c/--config flag value; if non-empty, must exist.
	ConfigPath string
	// Env is the process environment, as a map so tests can inject one.
	Env map[string]string
	// CLI carries explicit command-line overrides, applied last.
	CLI Overrides
}

// Load resolves a [Config] with precedence (highest wins): defaults, global
// config file ($XDG_CONFIG_HOME/pmemcheck/config.jsonc or
// ~/.config/pmemcheck/config.jsonc), project config file (.pmemcheck.jsonc
// in the working directory, or an explicit --config path), then CLI flags.
func Load(input LoadInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := Config{Global: engine.DefaultGlobalConfig(), EffectiveCwd: workDir}

	globalFile, globalPath, err := loadGlobalFile(input.Env)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Global = globalPath
	applyFile(&cfg.Global, globalFile)

	projectFile, projectPath, err := loadProjectFile(workDir, input.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Project = projectPath
	applyFile(&cfg.Global, projectFile)

	applyOverrides(&cfg.Global, input.CLI)

	return cfg, nil
}

func getGlobalConfigPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "pmemcheck", "config.jsonc")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "pmemcheck", "config.jsonc")
	}

	return ""
}

func loadGlobalFile(env map[string]string) (*file, string, error) {
	path := getGlobalConfigPath(env)
	if path == "" {
		return nil, "", nil
	}

	f, loaded, err := readFile(path, false)
	if err != nil {
		return nil, "", err
	}

	if !loaded {
		return nil, "", nil
	}

	return f, path, nil
}

func loadProjectFile(workDir, explicitPath string) (*file, string, error) {
	path := explicitPath
	mustExist := explicitPath != ""

	if path == "" {
		path = filepath.Join(workDir, ConfigFileName)
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}

	f, loaded, err := readFile(path, mustExist)
	if err != nil {
		return nil, "", err
	}

	if !loaded {
		return nil, "", nil
	}

	return f, path, nil
}

func readFile(path string, mustExist bool) (*file, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("reading config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, false, fmt.Errorf("invalid JSONC in %s: %w", path, err)
	}

	var f file

	if err := json.Unmarshal(standardized, &f); err != nil {
		return nil, false, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &f, true, nil
}

func applyFile(c *engine.GlobalConfig, f *file) {
	if f == nil {
		return
	}

	if f.MultStores != nil {
		c.TrackMultipleStores = *f.MultStores
	}

	if f.Indiff != nil {
		c.StoreSBIndiff = *f.Indiff
	}

	if f.LogStores != nil {
		c.LogStores = *f.LogStores
	}

	if f.PrintSummary != nil {
		c.PrintSummary = *f.PrintSummary
	}

	if f.FlushCheck != nil {
		c.CheckFlush = *f.FlushCheck
	}

	if f.FlushAlign != nil && *f.FlushAlign > 0 {
		c.FlushAlign = *f.FlushAlign
	}
}

func applyOverrides(c *engine.GlobalConfig, o Overrides) {
	applyFile(c, &file{
		MultStores:   o.MultStores,
		Indiff:       o.Indiff,
		LogStores:    o.LogStores,
		PrintSummary: o.PrintSummary,
		FlushCheck:   o.FlushCheck,
		FlushAlign:   o.FlushAlign,
	})
}

package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/seantiz/topoctl/internal/logic"
)

// EngineDefaults addresses procedures on the logic engine.
type EngineDefaults struct {
	Module        string        `yaml:"module"`
	Version       string        `yaml:"version"`
	Mode          string        `yaml:"mode"`
	Timeout       time.Duration `yaml:"timeout"`
	ProbeCacheTTL time.Duration `yaml:"probe_cache_ttl"`
}

// DefaultEngine returns the built-in engine defaults.
func DefaultEngine() EngineDefaults {
	return EngineDefaults{
		Module:        "generic-resource-api",
		Mode:          logic.ModeSync,
		Timeout:       60 * time.Second,
		ProbeCacheTTL: 30 * time.Second,
	}
}

// LoadEngineDefaults reads engine defaults from the YAML file at path.
// Fields missing from the file keep their defaults. A missing or
// malformed file is logged and the defaults are returned.
func LoadEngineDefaults(path string, logger *slog.Logger) EngineDefaults {
	d := DefaultEngine()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("engine config not found, using defaults", "path", path)
		return d
	}
	if err != nil {
		logger.Error("reading engine config, using defaults", "path", path, "error", err)
		return d
	}

	loaded := d
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		logger.Error("parsing engine config, using defaults", "path", path, "error", err)
		return d
	}
	logger.Info("loaded engine config", "path", path, "module", loaded.Module, "mode", loaded.Mode)
	return loaded
}

// Options converts d to logic client options.
func (d EngineDefaults) Options() logic.Options {
	return logic.Options{
		Module:        d.Module,
		Version:       d.Version,
		Mode:          d.Mode,
		Timeout:       d.Timeout,
		ProbeCacheTTL: d.ProbeCacheTTL,
	}
}

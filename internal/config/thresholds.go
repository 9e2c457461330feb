package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// LoadThresholds reads a standalone thresholds file and overlays it on
// the defaults. Lets an operator pin comparison tolerances per
// deployment without touching the main config.
func LoadThresholds(path string) (ValidationConfig, error) {
	cfg := DefaultValidation()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, eris.Wrapf(err, "config: read thresholds %s", path)
	}

	// The YAML has a top-level "validation" key.
	var wrapper struct {
		Validation ValidationConfig `yaml:"validation"`
	}
	wrapper.Validation = cfg
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return cfg, eris.Wrap(err, "config: parse thresholds")
	}

	cfg = wrapper.Validation
	switch cfg.StatusOnCritical {
	case "needs_review", "rejected":
	default:
		return cfg, eris.Errorf("config: status_on_critical must be needs_review or rejected, got %q", cfg.StatusOnCritical)
	}
	return cfg, nil
}

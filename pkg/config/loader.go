package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML settings file from path, expands environment variables,
// decodes it into a Settings record, applies defaults for any unset field,
// and validates the result.
//
// Steps mirror the teacher's layered Initialize() flow: read → expand env →
// decode → defaults → validate → return ready-to-use config.
func Load(path string) (*Settings, error) {
	log := slog.With("config_path", path)

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{File: path, Err: ErrConfigNotFound}
		}
		return nil, &LoadError{File: path, Err: err}
	}

	expanded := ExpandEnv(raw)

	var s Settings
	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, &LoadError{File: path, Err: fmt.Errorf("%w: %v", ErrInvalidYAML, err)}
	}

	ApplyDefaults(&s)

	if err := NewValidator(&s).ValidateAll(); err != nil {
		return nil, &LoadError{File: path, Err: err}
	}

	log.Info("configuration loaded",
		"market", s.Market,
		"max_total_keywords", s.MaxTotalKeywords,
		"team_members", len(s.TeamMembers))

	return &s, nil
}

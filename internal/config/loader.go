package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// envExpr matches ${VAR} and ${VAR:-default} placeholders.
var envExpr = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Load reads the YAML configuration at path. Placeholders of the form
// ${VAR} and ${VAR:-default} are expanded from the environment before
// parsing, and omitted fields receive defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("config: expanding variables in %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg = cfg.withDefaults()
	return &cfg, nil
}

// expandEnv substitutes environment placeholders. A placeholder with
// neither an environment value nor a default is an error; all such
// names are reported together so a broken deployment surfaces every
// missing variable at once.
func expandEnv(raw []byte) ([]byte, error) {
	var missing []string

	out := envExpr.ReplaceAllFunc(raw, func(match []byte) []byte {
		groups := envExpr.FindSubmatch(match)
		name := string(groups[1])

		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}
		// A participating empty default ("${VAR:-}") is non-nil.
		if groups[2] != nil {
			return groups[2]
		}

		missing = append(missing, name)
		return match
	})

	if len(missing) > 0 {
		return nil, fmt.Errorf("unresolved variable(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}

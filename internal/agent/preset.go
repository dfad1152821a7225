package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/agentgate-oss/agentgate/internal/schema"
)

// LoadPresetFile reads a preset YAML file and returns the normalized
// definition. Schema well-formedness is enforced here, at load time.
func LoadPresetFile(path string, validator *schema.Validator) (*Definition, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read preset file: %w", err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse preset %s: %w", filepath.Base(path), err)
	}
	if raw == nil {
		return nil, fmt.Errorf("preset %s must deserialize to a mapping", filepath.Base(path))
	}

	def, err := NormalizeSpec(raw, validator)
	if err != nil {
		return nil, fmt.Errorf("invalid preset %s: %w", filepath.Base(path), err)
	}
	return def, nil
}

// LoadPreset loads the preset with the given id from dir.
func LoadPreset(dir, id string, validator *schema.Validator) (*Definition, error) {
	return LoadPresetFile(filepath.Join(dir, id+".yaml"), validator)
}

// ListPresetFiles returns the preset YAML paths in dir, sorted by name.
// A missing directory yields an empty list.
func ListPresetFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read presets directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

package installer

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/fernvc/wcedit/editor"
)

// loadPropMap reads a working or pristine property list. A missing
// file is an empty property list, not an error — a file with no
// custom properties has none yet.
func loadPropMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("installer: reading %s: %w", path, err)
	}
	var m map[string]string
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("installer: parsing %s: %w", path, err)
	}
	if m == nil {
		m = map[string]string{}
	}
	return m, nil
}

func writePropMap(path string, m map[string]string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("installer: encoding %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("installer: writing %s: %w", path, err)
	}
	return nil
}

func cloneMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// diffPropMaps computes a diff of changes turning old into target,
// used when the installer receives a definitive (full) property list
// instead of an incremental diff.
func diffPropMaps(old, target map[string]string) []editor.PropChange {
	var changes []editor.PropChange
	for name, v := range target {
		if oldV, ok := old[name]; !ok || oldV != v {
			value := v
			changes = append(changes, editor.PropChange{Name: name, Value: &value})
		}
	}
	for name := range old {
		if _, ok := target[name]; !ok {
			changes = append(changes, editor.PropChange{Name: name, Value: nil})
		}
	}
	return changes
}

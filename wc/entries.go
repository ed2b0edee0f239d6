package wc

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// entriesFile is the on-disk shape of the admin area's "entries" file:
// a map keyed by basename (ThisDir for the directory's own record), so
// that adding, removing or looking up one entry never requires
// rewriting unrelated ones' positions.
type entriesFile map[string]*Entry

func loadEntries(path string) (map[string]*Entry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]*Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("wc: reading %s: %w", path, err)
	}
	var raw entriesFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("wc: parsing %s: %w", path, err)
	}
	entries := make(map[string]*Entry, len(raw))
	for name, e := range raw {
		if e == nil {
			e = &Entry{}
		}
		e.Name = name
		entries[name] = e
	}
	return entries, nil
}

func saveEntries(path string, entries map[string]*Entry) error {
	raw := make(entriesFile, len(entries))
	for name, e := range entries {
		raw[name] = e
	}
	data, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("wc: encoding entries: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("wc: writing %s: %w", path, err)
	}
	return nil
}

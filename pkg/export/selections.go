package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Selection holds the curator-picked candidate ids for one section, read
// back from a selected-ids file.
type Selection struct {
	Section string
	IDs     []string
}

// ReadSelections loads every .json file in dir as a flat array of
// candidate ids, taking the section name from the upper-cased file stem.
// A missing directory yields no selections. A file that cannot be read or
// parsed is reported through warn and skipped, never aborting the pass.
func ReadSelections(dir string, warn func(path string, err error)) ([]Selection, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Strings(paths)
	var selections []Selection
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if warn != nil {
				warn(path, err)
			}
			continue
		}
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			if warn != nil {
				warn(path, err)
			}
			continue
		}
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		selections = append(selections, Selection{Section: strings.ToUpper(stem), IDs: ids})
	}
	return selections, nil
}

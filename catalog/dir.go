package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/liamcoop/csvetl/rules"
)

// LoadDir adds or updates one active document per *.yaml or *.yml file in dir.
// The file name without extension is the document name. It returns the number of documents loaded.
func (cat *Catalog) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read rule set directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		data, err := os.ReadFile(filepath.Join(dir, file)) //nolint:gosec // dir is provided by caller
		if err != nil {
			return 0, fmt.Errorf("failed to read %s: %w", file, err)
		}
		defs, err := rules.ParseDefinitions(data)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", file, err)
		}

		doc := &Document{
			Name:   strings.TrimSuffix(file, filepath.Ext(file)),
			Rules:  defs,
			Active: true,
		}
		err = cat.Add(doc)
		if errors.Is(err, ErrExists) {
			err = cat.Update(doc)
		}
		if err != nil {
			return 0, fmt.Errorf("%s: %w", file, err)
		}
	}

	return len(files), nil
}

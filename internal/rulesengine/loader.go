package rulesengine

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mcarvalho21/nova-sub000/internal/domain/ruledom"
)

// LoadFile parses a single YAML or JSON rule file.
func LoadFile(path string, contents []byte) ([]ruledom.Rule, error) {
	var file ruledom.RuleFile

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(contents, &file); err != nil {
			return nil, fmt.Errorf("parse rule file %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(contents, &file); err != nil {
			return nil, fmt.Errorf("parse rule file %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unrecognized rule file extension: %s", path)
	}

	return file.Rules, nil
}

// LoadDirectory loads every .yaml/.yml/.json file under dir, concatenating
// in deterministic sorted-filename order per §4.4.
func LoadDirectory(dirFS fs.FS, dir string) ([]ruledom.Rule, error) {
	entries, err := fs.ReadDir(dirFS, dir)
	if err != nil {
		return nil, fmt.Errorf("read rules directory %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" || ext == ".json" {
			names = append(names, e.Name())
		}
	}

	sort.Strings(names)

	var all []ruledom.Rule

	for _, name := range names {
		path := filepath.Join(dir, name)

		contents, err := fs.ReadFile(dirFS, path)
		if err != nil {
			return nil, fmt.Errorf("read rule file %s: %w", path, err)
		}

		rules, err := LoadFile(path, contents)
		if err != nil {
			return nil, err
		}

		all = append(all, rules...)
	}

	return all, nil
}

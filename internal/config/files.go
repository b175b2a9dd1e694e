package config

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// DesignExt is the extension every design file carries.
const DesignExt = ".json"

// ResolveInputs walks rootPath and returns the sorted design files matched by
// an input pattern and by no exclude pattern. Patterns use '/' separators
// and are relative to rootPath; '*' stays within one directory and '**'
// crosses directories. Hidden directories, such as the snapshot dir, are
// not entered. Patterns that fail to compile are ignored.
func (c *Config) ResolveInputs(rootPath string) ([]string, error) {
	include := compilePatterns(c.Inputs.Files)
	exclude := compilePatterns(c.Inputs.Exclude)

	var result []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != rootPath && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), DesignExt) {
			return nil
		}
		rel, err := filepath.Rel(rootPath, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if matchAny(include, rel) && !matchAny(exclude, rel) {
			result = append(result, filepath.Clean(path))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(result)
	return result, nil
}

func compilePatterns(patterns []string) []glob.Glob {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(filepath.ToSlash(p), '/')
		if err != nil {
			continue
		}
		out = append(out, g)
	}
	return out
}

func matchAny(globs []glob.Glob, rel string) bool {
	for _, g := range globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

package oml

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
)

var (
	patternMu    sync.Mutex
	patternCache = map[string]*regexp.Regexp{}
)

func compilePattern(pattern string) (*regexp.Regexp, error) {
	patternMu.Lock()
	defer patternMu.Unlock()
	if re, ok := patternCache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile filename pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("filename pattern %q needs a node capture group", pattern)
	}
	patternCache[pattern] = re
	return re, nil
}

// ValidatePattern checks that pattern compiles and captures a node id.
func ValidatePattern(pattern string) error {
	_, err := compilePattern(pattern)
	return err
}

// ParseFilename extracts the node id (first group) and optional label
// (second group) from the base name of path.
func ParseFilename(path, pattern string) (Metadata, error) {
	re, err := compilePattern(pattern)
	if err != nil {
		return Metadata{}, err
	}
	name := filepath.Base(path)
	m := re.FindStringSubmatch(name)
	if m == nil || m[1] == "" {
		return Metadata{}, fmt.Errorf("%w: %s", ErrFilenameMetadata, name)
	}
	node, err := strconv.Atoi(m[1])
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %s: node %q", ErrFilenameMetadata, name, m[1])
	}
	meta := Metadata{Node: node}
	if len(m) > 2 {
		meta.Label = m[2]
	}
	return meta, nil
}

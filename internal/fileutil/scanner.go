package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// EventLogSuffix ends the name of event logs written by the parser.
const EventLogSuffix = "_event_log.csv"

// TraceExtensions lists the extensions of raw trace dumps.
var TraceExtensions = []string{".csv", ".jsonl", ".ndjson", ".json"}

// ScanOptions configures the directory scanning behavior
type ScanOptions struct {
	// Pattern is a regex matched against the file stem (name without extension)
	Pattern string
	// Extensions is a list of file extensions to include (e.g., ".csv", ".jsonl")
	Extensions []string
	// Suffix requires the full file name to end with it (e.g., "_event_log.csv")
	Suffix string
	// Exclude drops files whose name ends with any of these suffixes
	Exclude []string
	// Recursive enables recursive directory scanning
	Recursive bool
	// MaxDepth limits recursion depth (0 = unlimited, 1 = current dir only)
	MaxDepth int
}

// ScanResult contains the results of a directory scan
type ScanResult struct {
	// Files contains the absolute paths of all matched files
	Files []string
	// Errors contains any errors encountered during scanning
	Errors []error
}

type matcher struct {
	pattern *regexp.Regexp
	exts    map[string]bool
	suffix  string
	exclude []string
}

func newMatcher(opts ScanOptions) (*matcher, error) {
	m := &matcher{suffix: opts.Suffix, exclude: opts.Exclude, exts: make(map[string]bool)}
	if opts.Pattern != "" {
		re, err := regexp.Compile(opts.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
		m.pattern = re
	}
	for _, ext := range opts.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		m.exts[strings.ToLower(ext)] = true
	}
	return m, nil
}

func (m *matcher) match(name string) bool {
	if len(m.exts) > 0 && !m.exts[strings.ToLower(filepath.Ext(name))] {
		return false
	}
	if m.suffix != "" && !strings.HasSuffix(name, m.suffix) {
		return false
	}
	for _, ex := range m.exclude {
		if strings.HasSuffix(name, ex) {
			return false
		}
	}
	if m.pattern != nil && !m.pattern.MatchString(Stem(name)) {
		return false
	}
	return true
}

// ScanDirectory scans a directory for files matching the provided options
func ScanDirectory(dir string, opts ScanOptions) (*ScanResult, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to access directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	m, err := newMatcher(opts)
	if err != nil {
		return nil, err
	}

	result := &ScanResult{
		Files:  make([]string, 0),
		Errors: make([]error, 0),
	}

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("error accessing %s: %w", path, err))
			return nil // Continue walking
		}
		if path == dir {
			return nil
		}

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") || !opts.Recursive {
				return filepath.SkipDir
			}
			if opts.MaxDepth > 0 {
				relPath, _ := filepath.Rel(dir, path)
				depth := strings.Count(relPath, string(filepath.Separator)) + 1
				if depth >= opts.MaxDepth {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if !m.match(d.Name()) {
			return nil
		}

		absPath, err := filepath.Abs(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("failed to resolve path %s: %w", path, err))
			return nil
		}
		result.Files = append(result.Files, absPath)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	sort.Strings(result.Files)
	return result, nil
}

// Collect resolves path to input files. A regular file is returned as is,
// whatever its name; a directory is scanned with opts.
func Collect(path string, opts ScanOptions) (*ScanResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to access input: %w", err)
	}
	if info.IsDir() {
		return ScanDirectory(path, opts)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}
	return &ScanResult{Files: []string{absPath}, Errors: []error{}}, nil
}

// FindEventLogs returns the event logs at path. In a directory, files ending
// in EventLogSuffix are preferred; without any, every .csv file is taken.
func FindEventLogs(path string, recursive bool) ([]string, error) {
	res, err := Collect(path, ScanOptions{Suffix: EventLogSuffix, Recursive: recursive})
	if err != nil {
		return nil, err
	}
	if len(res.Files) > 0 {
		return res.Files, nil
	}

	res, err = Collect(path, ScanOptions{Extensions: []string{".csv"}, Recursive: recursive})
	if err != nil {
		return nil, err
	}
	return res.Files, nil
}

// FindTraceFiles returns the raw trace dumps at path, skipping files the
// parser itself wrote (event logs and lookup tables).
func FindTraceFiles(path string, recursive bool) ([]string, error) {
	res, err := Collect(path, ScanOptions{
		Extensions: TraceExtensions,
		Exclude:    []string{EventLogSuffix, "_address_lookup.csv", "_transaction_lookup.csv"},
		Recursive:  recursive,
	})
	if err != nil {
		return nil, err
	}
	return res.Files, nil
}

// Stem returns the base name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

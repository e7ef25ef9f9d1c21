package crawler

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"reqdoc/internal/profile"
)

// HeaderLines bounds how far into a file the framework markers are searched.
const HeaderLines = 50

// Crawler finds the test files of one language below a repository root.
type Crawler struct {
	profile profile.Profile
	ignored []string
	exclude []string
}

// NewCrawler creates a crawler for p. exclude holds doublestar globs matched
// against root-relative, slash-separated paths.
func NewCrawler(p profile.Profile, exclude []string) (*Crawler, error) {
	for _, pattern := range exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	return &Crawler{
		profile: p,
		ignored: []string{".git", "node_modules", "__pycache__", ".venv", "venv", "build", "dist", "target"},
		exclude: exclude,
	}, nil
}

// FindTestFiles walks root in lexical order and returns every test file.
func (c *Crawler) FindTestFiles(root string) ([]string, error) {
	var files []string
	err := c.ScanProject(root, func(path string) {
		files = append(files, path)
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// ScanProject walks root and calls onFile for each detected test file.
// Unreadable entries below root are skipped.
func (c *Crawler) ScanProject(root string, onFile func(path string)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			for _, ign := range c.ignored {
				if d.Name() == ign {
					return filepath.SkipDir
				}
			}
			if c.excluded(root, path) {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.HasSuffix(d.Name(), c.profile.Extension) || c.excluded(root, path) {
			return nil
		}
		if c.IsTestFile(path) {
			onFile(path)
		}
		return nil
	})
}

// IsTestFile reports whether one of the first HeaderLines lines of path
// carries a test-framework marker. Unreadable files are not test files.
func (c *Crawler) IsTestFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for n := 0; n < HeaderLines && scanner.Scan(); n++ {
		if c.profile.IsTestLine(scanner.Text()) {
			return true
		}
	}
	return false
}

func (c *Crawler) excluded(root, path string) bool {
	if len(c.exclude) == 0 {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range c.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

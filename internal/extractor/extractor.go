package extractor

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"reqdoc/internal/diag"
	"reqdoc/internal/profile"
)

// Extractor reads test files and hands their contents to a language strategy.
type Extractor struct {
	strategy Strategy
}

// NewExtractor picks the strategy for mode ("" means regex).
func NewExtractor(p profile.Profile, mode string, d *diag.Collector) (*Extractor, error) {
	var s Strategy
	switch mode {
	case "", ModeRegex:
		s = &LineScanner{Profile: p, Diag: d}
	case ModeSyntax:
		if !p.Syntax {
			return nil, fmt.Errorf("parser %q is not available for %s", mode, p.Name)
		}
		s = &GoSyntaxExtractor{Profile: p, Diag: d}
	default:
		return nil, fmt.Errorf("unknown parser %q", mode)
	}
	return &Extractor{strategy: s}, nil
}

// ExtractFromFile parses a single test file.
func (e *Extractor) ExtractFromFile(path string) ([]*Requirement, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return e.strategy.Extract(path, source)
}

// LineScanner is the regex strategy: one forward pass over the lines of a
// file, keeping the requirement that is currently open.
type LineScanner struct {
	Profile profile.Profile
	Diag    *diag.Collector
}

func (s *LineScanner) Extract(path string, source []byte) ([]*Requirement, error) {
	lines, err := splitLines(source)
	if err != nil {
		return nil, fmt.Errorf("failed to split %s: %w", path, err)
	}
	return s.ExtractLines(path, lines), nil
}

// ExtractLines never fails: lines that cannot be attached are reported and dropped.
func (s *LineScanner) ExtractLines(path string, lines []string) []*Requirement {
	var (
		requirements []*Requirement
		current      *Requirement
		// current was opened by an annotation that precedes its declaration
		annotated bool
	)
	open := func(line int, text string, annotation bool) {
		if current != nil {
			requirements = append(requirements, current)
		}
		current = NewRequirement(path, line, text)
		annotated = annotation
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if m, ok := s.Profile.MatchRequirement(lines, i); ok {
			// A marker spread over two lines right below an annotation
			// (e.g. @DisplayName above @Test) belongs to the same test.
			if m.Span > 1 && annotated && current != nil && current.Line == i {
				continue
			}
			open(i+1, m.Text, m.Annotation)
			continue
		}

		if la := s.Profile.Lookahead; la != nil && containsMarker(line, la.Marker) {
			if text, ok := lookahead(lines, i, la); ok {
				open(i+1, text, false)
			}
			continue
		}

		if m := s.Profile.Step.FindStringSubmatch(line); m != nil {
			if current == nil {
				s.orphan(diag.StepWithoutRequirement, "test step found without a requirement", path, i+1, line)
			} else {
				current.Steps = append(current.Steps, m[1])
			}
			continue
		}

		if m := s.Profile.Verification.FindStringSubmatch(line); m != nil {
			if current == nil {
				s.orphan(diag.VerificationWithoutRequirement, "test verification found without a requirement", path, i+1, line)
			} else {
				current.Verifications = append(current.Verifications, m[1])
			}
			continue
		}
	}
	if current != nil {
		requirements = append(requirements, current)
	}
	return requirements
}

func (s *LineScanner) orphan(code, msg, path string, line int, text string) {
	s.Diag.Report(diag.Diagnostic{
		Code:    code,
		Stage:   "extract",
		Message: fmt.Sprintf("%s %s: %d - %q", msg, filepath.Base(path), line, text),
		File:    path,
		Line:    line,
	})
}

func containsMarker(line, marker string) bool {
	return marker != "" && strings.Contains(line, marker)
}

// lookahead scans up to la.Window lines after i for a title-only line.
func lookahead(lines []string, i int, la *profile.Lookahead) (string, bool) {
	for j := 1; j <= la.Window && i+j < len(lines); j++ {
		if m := la.Pattern.FindStringSubmatch(lines[i+j]); m != nil {
			return m[1], true
		}
	}
	return "", false
}

func splitLines(source []byte) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(source))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

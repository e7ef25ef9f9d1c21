// Package profile holds the per-language conventions used to find test files
// and to pull requirements, steps and verifications out of them.
package profile

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var ErrUnsupportedLanguage = errors.New("unsupported language")

// Language names accepted in configuration (case-insensitive).
const (
	Golang     = "golang"
	Swift      = "swift"
	Python     = "python"
	JavaScript = "javascript"
	TypeScript = "typescript"
	Java       = "java"
	CSharp     = "csharp"
	Dart       = "dart"
)

// RequirementPattern opens a requirement when it matches. Group selects the
// capture holding the requirement text. Lines > 1 matches against that many
// consecutive lines joined with "\n". Annotation marks patterns that only
// name a test (e.g. @DisplayName) and are followed by its declaration.
type RequirementPattern struct {
	Pattern    *regexp.Regexp
	Group      int
	Lines      int
	Annotation bool
}

// Match is a requirement pattern hit.
type Match struct {
	Text       string
	Span       int
	Annotation bool
}

// Lookahead handles conventions where the requirement text sits on a line
// after the marker, e.g. Dart's blocTest<...>( followed by a quoted title.
type Lookahead struct {
	Marker  string
	Window  int
	Pattern *regexp.Regexp
}

// Profile is immutable once built.
type Profile struct {
	Name         string
	Extension    string
	Requirements []RequirementPattern
	Step         *regexp.Regexp
	Verification *regexp.Regexp
	Detect       []*regexp.Regexp
	Lookahead    *Lookahead
	// Syntax reports whether a syntax-tree extractor exists for the language.
	Syntax bool
}

// Lookup returns the profile registered for name.
func Lookup(name string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case Golang:
		return golangProfile, nil
	case Swift:
		return swiftProfile, nil
	case Python:
		return pythonProfile, nil
	case JavaScript:
		return javascriptProfile, nil
	case TypeScript:
		return typescriptProfile, nil
	case Java:
		return javaProfile, nil
	case CSharp:
		return csharpProfile, nil
	case Dart:
		return dartProfile, nil
	}
	return Profile{}, fmt.Errorf("%w: %s. Supported languages: %s", ErrUnsupportedLanguage, name, strings.Join(Names(), ", "))
}

// Names lists the supported languages in sorted order.
func Names() []string {
	names := []string{Golang, Swift, Python, JavaScript, TypeScript, Java, CSharp, Dart}
	sort.Strings(names)
	return names
}

// MatchRequirement tries every requirement pattern against lines[i:] and
// returns the first one that matches.
func (p Profile) MatchRequirement(lines []string, i int) (Match, bool) {
	for _, rp := range p.Requirements {
		n := rp.Lines
		if n < 1 {
			n = 1
		}
		if i+n > len(lines) {
			continue
		}
		window := strings.Join(lines[i:i+n], "\n")
		m := rp.Pattern.FindStringSubmatch(window)
		if m == nil || rp.Group >= len(m) {
			continue
		}
		return Match{Text: m[rp.Group], Span: n, Annotation: rp.Annotation}, true
	}
	return Match{}, false
}

// IsTestLine reports whether line carries one of the test-framework markers.
func (p Profile) IsTestLine(line string) bool {
	for _, re := range p.Detect {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

var (
	slashStep = regexp.MustCompile(`^\s*//\s*(S\d+:\s*.+)`)
	slashVer  = regexp.MustCompile(`^\s*//\s*(V\d+:\s*.+)`)
	// Go and Swift only count indented comments, i.e. ones inside a function body.
	indentedSlashStep = regexp.MustCompile(`^\s+//\s*(S\d+:\s*.+)`)
	indentedSlashVer  = regexp.MustCompile(`^\s+//\s*(V\d+:\s*.+)`)
)

func single(expr string, group int) RequirementPattern {
	return RequirementPattern{Pattern: regexp.MustCompile(expr), Group: group, Lines: 1}
}

func annotation(expr string, group int) RequirementPattern {
	return RequirementPattern{Pattern: regexp.MustCompile(expr), Group: group, Lines: 1, Annotation: true}
}

func double(expr string, group int) RequirementPattern {
	return RequirementPattern{Pattern: regexp.MustCompile(expr), Group: group, Lines: 2}
}

func patterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}

var golangProfile = Profile{
	Name:      Golang,
	Extension: ".go",
	Requirements: []RequirementPattern{
		single(`^func\s+Test_*(.+)\(t\s+\*testing.T\)`, 1),
	},
	Step:         indentedSlashStep,
	Verification: indentedSlashVer,
	Detect: patterns(
		`^\s*import\s+"testing"`,
		`^\s*import\s+\(\s*.*"testing".*\)`,
		`^\s*"testing"`,
	),
	Syntax: true,
}

var swiftProfile = Profile{
	Name:      Swift,
	Extension: ".swift",
	Requirements: []RequirementPattern{
		single(`^\s+func\s+test_*(.+)\(\).+\{`, 1),
	},
	Step:         indentedSlashStep,
	Verification: indentedSlashVer,
	Detect: patterns(
		`^\s*import\s+XCTest`,
		`^\s*@testable\s+import`,
		`class\s+\w+.*:\s*XCTestCase`,
	),
}

var pythonProfile = Profile{
	Name:      Python,
	Extension: ".py",
	Requirements: []RequirementPattern{
		single(`^\s*def\s+test_*(.+)\(`, 1),
		single(`^\s*def\s+test(.+)\(`, 1),
	},
	Step:         regexp.MustCompile(`^\s*#\s*(S\d+:\s*.+)`),
	Verification: regexp.MustCompile(`^\s*#\s*(V\d+:\s*.+)`),
	Detect: patterns(
		`^\s*import\s+unittest`,
		`^\s*from\s+unittest`,
		`^\s*import\s+pytest`,
		`^\s*from\s+pytest`,
		`class\s+\w+.*\(.*unittest\.TestCase.*\)`,
	),
}

var javascriptProfile = Profile{
	Name:      JavaScript,
	Extension: ".js",
	Requirements: []RequirementPattern{
		single(`^\s*(it|test)\(\s*['"](.+?)['"]`, 2),
		single(`^\s*(it|test)\s*\(\s*['"](.+?)['"]`, 2),
	},
	Step:         slashStep,
	Verification: slashVer,
	Detect: patterns(
		`^\s*(import|require).*['"]jest['"]`,
		`^\s*(import|require).*['"]mocha['"]`,
		`^\s*(import|require).*['"]chai['"]`,
		`^\s*describe\s*\(`,
		`^\s*(it|test)\s*\(`,
	),
}

var typescriptProfile = Profile{
	Name:      TypeScript,
	Extension: ".ts",
	Requirements: []RequirementPattern{
		single(`^\s*(it|test)\(\s*['"](.+?)['"]`, 2),
		single(`^\s*(it|test)\s*\(\s*['"](.+?)['"]`, 2),
	},
	Step:         slashStep,
	Verification: slashVer,
	Detect: patterns(
		`^\s*import.*['"]jest['"]`,
		`^\s*import.*['"]mocha['"]`,
		`^\s*import.*['"]chai['"]`,
		`^\s*describe\s*\(`,
		`^\s*(it|test)\s*\(`,
	),
}

var javaProfile = Profile{
	Name:      Java,
	Extension: ".java",
	Requirements: []RequirementPattern{
		annotation(`^\s*@DisplayName\(\s*['"](.+?)['"]\s*\)\s*`, 1),
		double(`^\s*@Test\s*\n\s*public\s+void\s+(.+?)\(`, 1),
		single(`^\s*void\s+test_*(.+?)\(`, 1),
	},
	Step:         slashStep,
	Verification: slashVer,
	Detect: patterns(
		`^\s*import\s+org\.junit`,
		`^\s*import\s+org\.testng`,
		`^\s*@Test`,
		`^\s*@BeforeEach`,
		`^\s*@AfterEach`,
	),
}

var csharpProfile = Profile{
	Name:      CSharp,
	Extension: ".cs",
	Requirements: []RequirementPattern{
		double(`^\s*\[Test\]\s*\n\s*public\s+void\s+Test(.+?)\(`, 1),
		single(`^\s*\[Test\]\s*public\s+void\s+Test(.+?)\(`, 1),
		double(`^\s*\[TestMethod\]\s*\n\s*public\s+void\s+(.+?)\(`, 1),
		double(`^\s*\[Fact\]\s*\n\s*public\s+void\s+(.+?)\(`, 1),
	},
	Step:         slashStep,
	Verification: slashVer,
	Detect: patterns(
		`^\s*using\s+NUnit\.Framework`,
		`^\s*using\s+Microsoft\.VisualStudio\.TestTools`,
		`^\s*using\s+Xunit`,
		`^\s*\[Test\]`,
		`^\s*\[TestMethod\]`,
		`^\s*\[Fact\]`,
	),
}

var dartProfile = Profile{
	Name:      Dart,
	Extension: ".dart",
	Requirements: []RequirementPattern{
		single(`^\s*test\(\s*['"](.+?)['"]`, 1),
		single(`^\s*testWidgets\(\s*['"](.+?)['"]`, 1),
		single(`^\s*blocTest<.+?>\s*\(\s*['"](.+?)['"]`, 1),
	},
	Step:         slashStep,
	Verification: slashVer,
	Detect: patterns(
		`^\s*import\s+['"]package:test/test\.dart['"]`,
		`^\s*import\s+['"]package:flutter_test/flutter_test\.dart['"]`,
		`^\s*import\s+['"]package:mockito/mockito\.dart['"]`,
		`^\s*import\s+['"]package:bloc_test/bloc_test\.dart['"]`,
		`^\s*test\s*\(`,
		`^\s*group\s*\(`,
		`^\s*testWidgets\s*\(`,
		`^\s*blocTest\s*<`,
	),
	Lookahead: &Lookahead{
		Marker:  "blocTest<",
		Window:  3,
		Pattern: regexp.MustCompile(`^\s*['"](.+?)['"],?\s*$`),
	},
}

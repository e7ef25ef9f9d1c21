package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"reqdoc/internal/diag"
	"reqdoc/internal/profile"
)

// GoSyntaxExtractor reads Go test files through a syntax tree instead of line
// regexes. Annotations only attach to the test function whose body holds them.
type GoSyntaxExtractor struct {
	Profile profile.Profile
	Diag    *diag.Collector
}

const (
	goTestQuery = `
		(function_declaration
			name: (identifier) @name
			parameters: (parameter_list) @params
			body: (block) @body) @func
	`
	goCommentQuery = `(comment) @comment`
)

var (
	goTestName   = regexp.MustCompile(`^Test_*(.+)$`)
	goTestParams = regexp.MustCompile(`^\(\s*\w+\s+\*testing\.T\s*\)$`)
	goStep       = regexp.MustCompile(`^//\s*(S\d+:\s*.+)`)
	goVerify     = regexp.MustCompile(`^//\s*(V\d+:\s*.+)`)
)

type goTestFunc struct {
	start, end uint32
	req        *Requirement
}

func (g *GoSyntaxExtractor) Extract(path string, source []byte) ([]*Requirement, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", path, err)
	}
	defer tree.Close()
	root := tree.RootNode()

	tests, err := g.testFunctions(root, source, path)
	if err != nil {
		return nil, err
	}
	if err := g.attachAnnotations(root, source, path, tests); err != nil {
		return nil, err
	}

	requirements := make([]*Requirement, 0, len(tests))
	for _, t := range tests {
		requirements = append(requirements, t.req)
	}
	return requirements, nil
}

func (g *GoSyntaxExtractor) testFunctions(root *sitter.Node, source []byte, path string) ([]*goTestFunc, error) {
	query, err := sitter.NewQuery([]byte(goTestQuery), golang.GetLanguage())
	if err != nil {
		return nil, fmt.Errorf("failed to create query: %w", err)
	}
	defer query.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, root)

	var tests []*goTestFunc
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		var fn, name, params, body *sitter.Node
		for _, c := range m.Captures {
			switch query.CaptureNameForId(c.Index) {
			case "func":
				fn = c.Node
			case "name":
				name = c.Node
			case "params":
				params = c.Node
			case "body":
				body = c.Node
			}
		}
		if fn == nil || name == nil || params == nil || body == nil {
			continue
		}
		nm := goTestName.FindStringSubmatch(name.Content(source))
		if nm == nil || !goTestParams.MatchString(params.Content(source)) {
			continue
		}
		tests = append(tests, &goTestFunc{
			start: body.StartByte(),
			end:   body.EndByte(),
			req:   NewRequirement(path, int(fn.StartPoint().Row)+1, nm[1]),
		})
	}
	return tests, nil
}

func (g *GoSyntaxExtractor) attachAnnotations(root *sitter.Node, source []byte, path string, tests []*goTestFunc) error {
	query, err := sitter.NewQuery([]byte(goCommentQuery), golang.GetLanguage())
	if err != nil {
		return fmt.Errorf("failed to create query: %w", err)
	}
	defer query.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, root)

	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range m.Captures {
			text := c.Node.Content(source)
			line := int(c.Node.StartPoint().Row) + 1
			owner := enclosingTest(tests, c.Node.StartByte())

			if sm := goStep.FindStringSubmatch(text); sm != nil {
				if owner == nil {
					g.orphan(diag.StepWithoutRequirement, "test step found outside a test function", path, line, text)
					continue
				}
				owner.req.Steps = append(owner.req.Steps, sm[1])
				continue
			}
			if vm := goVerify.FindStringSubmatch(text); vm != nil {
				if owner == nil {
					g.orphan(diag.VerificationWithoutRequirement, "test verification found outside a test function", path, line, text)
					continue
				}
				owner.req.Verifications = append(owner.req.Verifications, vm[1])
			}
		}
	}
	return nil
}

func (g *GoSyntaxExtractor) orphan(code, msg, path string, line int, text string) {
	g.Diag.Report(diag.Diagnostic{
		Code:    code,
		Stage:   "extract",
		Message: fmt.Sprintf("%s %s: %d - %q", msg, filepath.Base(path), line, text),
		File:    path,
		Line:    line,
	})
}

func enclosingTest(tests []*goTestFunc, offset uint32) *goTestFunc {
	for _, t := range tests {
		if offset >= t.start && offset < t.end {
			return t
		}
	}
	return nil
}

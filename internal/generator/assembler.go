package generator

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"reqdoc/internal/config"
	"reqdoc/internal/diag"
	"reqdoc/internal/section"
)

// Builtin selects the embedded default template instead of a file.
const Builtin = "builtin"

// OutputsDir is created beside the requirements template when no output
// directory is configured.
const OutputsDir = "Outputs"

//go:embed templates/*.tmpl
var builtinTemplates embed.FS

var funcs = template.FuncMap{
	"join": strings.Join,
	"cell": cell,
}

// cell makes s safe inside a Markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", "<br>")
}

type Options struct {
	Debug     bool
	OutputDir string // overrides <dir(template)>/Outputs
}

// Result lists what one group's generation wrote.
type Result struct {
	RequirementsPath string
	VerificationPath string
	Requirements     int
	Sections         int
}

// Generator renders the requirements and verification documents of a group.
type Generator struct {
	logger *zap.Logger
	diag   *diag.Collector
	opts   Options
}

func NewGenerator(logger *zap.Logger, d *diag.Collector, opts Options) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{logger: logger, diag: d, opts: opts}
}

// Generate numbers the requirements of sections and writes both documents.
func (g *Generator) Generate(group config.Group, sections []*section.Section) (*Result, error) {
	Number(sections)

	res := &Result{Requirements: section.Count(sections)}

	reqDoc := g.RequirementsDocument(group.Tag, sections)
	res.Sections = len(reqDoc.Sections)
	path, err := g.write(group.ReqTemplatePath, "requirements.md.tmpl", group.ReqOutputName, reqDoc)
	if err != nil {
		return nil, fmt.Errorf("requirements document: %w", err)
	}
	g.logger.Info("Saved requirements document", zap.String("path", path))
	res.RequirementsPath = path

	verDoc := g.VerificationDocument(group.Tag, sections)
	path, err = g.write(group.VerTemplatePath, "verification.md.tmpl", group.VerOutputName, verDoc)
	if err != nil {
		return nil, fmt.Errorf("verification document: %w", err)
	}
	g.logger.Info("Saved verification document", zap.String("path", path))
	res.VerificationPath = path

	return res, nil
}

// Number assigns DO numbers to the requirements of rendered sections, in
// order, starting at 1.
func Number(sections []*section.Section) {
	n := 0
	for _, s := range sections {
		if !s.Rendered() {
			continue
		}
		for _, r := range s.Requirements {
			n++
			r.Number = n
		}
	}
}

func (g *Generator) RequirementsDocument(tag string, sections []*section.Section) Document {
	doc := Document{Tag: tag, Debug: g.opts.Debug}
	for _, s := range sections {
		if !s.Rendered() {
			continue
		}
		view := SectionView{Name: s.Name}
		for _, r := range s.Requirements {
			view.Requirements = append(view.Requirements, RequirementRow{
				Number:   r.Number,
				Text:     r.Text,
				Location: r.Location(),
			})
		}
		doc.Sections = append(doc.Sections, view)
	}
	return doc
}

// VerificationDocument builds the protocol tables. VER numbers count the
// sections actually rendered; row numbers run across all of them. Empty
// sections are reported and skipped.
func (g *Generator) VerificationDocument(tag string, sections []*section.Section) Document {
	doc := Document{Tag: tag, Debug: g.opts.Debug}
	ver, row := 1, 1
	for _, s := range sections {
		if s.Name == section.Ignore {
			continue
		}
		if len(s.Requirements) == 0 {
			g.diag.Report(diag.Diagnostic{
				Code:    diag.EmptySection,
				Stage:   "generate",
				Message: fmt.Sprintf("No requirements in section '%s' for tag '%s'. Skipping section.", s.Name, tag),
			})
			continue
		}
		view := SectionView{Name: s.Name, Number: ver}
		for _, r := range s.Requirements {
			view.Requirements = append(view.Requirements, RequirementRow{
				Number:        r.Number,
				Row:           row,
				Text:          r.Text,
				Steps:         r.Steps,
				Verifications: r.Verifications,
				Location:      r.Location(),
			})
			row++
		}
		doc.Sections = append(doc.Sections, view)
		ver++
	}
	return doc
}

// LoadTemplate parses the template at path, or the embedded template
// builtinName when path is Builtin.
func LoadTemplate(path, builtinName string) (*template.Template, error) {
	var (
		data []byte
		err  error
	)
	if path == Builtin {
		data, err = builtinTemplates.ReadFile("templates/" + builtinName)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return template.New(filepath.Base(path)).Funcs(funcs).Parse(string(data))
}

// Render executes tmpl with doc.
func Render(w io.Writer, tmpl *template.Template, doc Document) error {
	return tmpl.Execute(w, doc)
}

// OutputPath resolves where a document rendered from templatePath is saved.
func (g *Generator) OutputPath(templatePath, outputName string) string {
	if g.opts.OutputDir != "" {
		return filepath.Join(g.opts.OutputDir, outputName)
	}
	dir := "."
	if templatePath != Builtin {
		dir = filepath.Dir(templatePath)
	}
	return filepath.Join(dir, OutputsDir, outputName)
}

func (g *Generator) write(templatePath, builtinName, outputName string, doc Document) (string, error) {
	tmpl, err := LoadTemplate(templatePath, builtinName)
	if err != nil {
		return "", fmt.Errorf("load template %s: %w", templatePath, err)
	}
	var buf bytes.Buffer
	if err := Render(&buf, tmpl, doc); err != nil {
		return "", fmt.Errorf("render %s: %w", templatePath, err)
	}

	path := g.OutputPath(templatePath, outputName)
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", err
		}
		g.logger.Info("Created output directory", zap.String("dir", dir))
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// Package section buckets extracted requirements into the document sections
// configured for a group.
package section

import (
	"fmt"
	"strings"

	"reqdoc/internal/config"
	"reqdoc/internal/diag"
	"reqdoc/internal/extractor"
)

const (
	Ignore        = "Ignore"
	Miscellaneous = "Miscellaneous"
)

// Section is a named bucket of requirements. A non-empty PathKey restricts
// the section to requirements whose file path contains it.
type Section struct {
	Name         string
	Filenames    map[string]struct{}
	PathKey      string
	Requirements []*extractor.Requirement
}

func New(name, pathKey string, filenames []string) *Section {
	s := &Section{Name: name, PathKey: pathKey, Filenames: make(map[string]struct{}, len(filenames))}
	for _, f := range filenames {
		s.Filenames[f] = struct{}{}
	}
	return s
}

func (s *Section) Has(filename string) bool {
	_, ok := s.Filenames[filename]
	return ok
}

// Rendered reports whether the section appears in generated documents.
func (s *Section) Rendered() bool {
	return s.Name != Ignore && len(s.Requirements) > 0
}

// FromConfig builds the configured sections followed by Ignore (only when
// the group has an ignore list) and Miscellaneous.
func FromConfig(g config.Group) []*Section {
	out := make([]*Section, 0, len(g.Sections)+2)
	for _, sc := range g.Sections {
		out = append(out, New(sc.DisplayName, sc.PathKey, sc.Filenames))
	}
	if len(g.Ignore) > 0 {
		out = append(out, New(Ignore, "", g.Ignore))
	}
	return append(out, New(Miscellaneous, "", nil))
}

// Classify returns the first section that lists the requirement's filename,
// or the Miscellaneous section. Sections whose PathKey is not part of the
// requirement's path are never candidates.
func Classify(req *extractor.Requirement, sections []*Section) *Section {
	var misc *Section
	for _, s := range sections {
		if s.PathKey != "" && !strings.Contains(req.File, s.PathKey) {
			continue
		}
		if s.Has(req.Filename) {
			return s
		}
		if misc == nil && s.Name == Miscellaneous {
			misc = s
		}
	}
	return misc
}

// Assign appends each requirement to its section, keeping input order.
// Requirements with no matching section are returned.
func Assign(reqs []*extractor.Requirement, sections []*Section) []*extractor.Requirement {
	var unassigned []*extractor.Requirement
	for _, r := range reqs {
		s := Classify(r, sections)
		if s == nil {
			unassigned = append(unassigned, r)
			continue
		}
		s.Requirements = append(s.Requirements, r)
	}
	return unassigned
}

// Finalize returns copies of sections in which every requirement without
// verifications is dropped, with one diagnostic each, and the verifications
// of the rest are ordered by tag number. Ignore is copied as is.
func Finalize(sections []*Section, d *diag.Collector) []*Section {
	out := make([]*Section, 0, len(sections))
	for _, s := range sections {
		cp := *s
		if s.Name == Ignore {
			out = append(out, &cp)
			continue
		}
		cp.Requirements = make([]*extractor.Requirement, 0, len(s.Requirements))
		for _, r := range s.Requirements {
			if len(r.Verifications) == 0 {
				d.Report(diag.Diagnostic{
					Code:    diag.MissingVerifications,
					Stage:   "section",
					Message: fmt.Sprintf("No verifications in '%s' - '%s'", r.Location(), r.OriginalText),
					File:    r.Filename,
					Line:    r.Line,
				})
				continue
			}
			r.SortVerifications()
			cp.Requirements = append(cp.Requirements, r)
		}
		out = append(out, &cp)
	}
	return out
}

// Count returns the number of requirements across rendered sections.
func Count(sections []*Section) int {
	n := 0
	for _, s := range sections {
		if s.Rendered() {
			n += len(s.Requirements)
		}
	}
	return n
}

package generator

// DocSection is one heading-delimited part of a generated Markdown document.
type DocSection struct {
	ID      string // sha256 of filename and title
	Title   string
	Level   int // 1 for #, 2 for ##, 0 before the first heading
	Content string
}

// RequirementRow is a requirement as it appears in both documents.
type RequirementRow struct {
	Number        int // DO number
	Row           int // verification table row, global across sections
	Text          string
	Steps         []string
	Verifications []string
	Location      string
}

type SectionView struct {
	Name         string
	Number       int // VER number
	Requirements []RequirementRow
}

// Document is the value templates are executed with.
type Document struct {
	Tag      string
	Debug    bool
	Sections []SectionView
}

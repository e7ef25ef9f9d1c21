package generator

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// SplitDocument cuts a generated Markdown document into heading-delimited
// sections. Text before the first heading becomes a level 0 section.
func SplitDocument(filename, content string) []DocSection {
	var sections []DocSection
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	title, level := "", 0
	var buf strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		if lvl, heading, ok := parseHeading(line); ok {
			if strings.TrimSpace(buf.String()) != "" {
				sections = append(sections, newDocSection(filename, title, level, buf.String()))
			}
			title, level = heading, lvl
			buf.Reset()
		}
		buf.WriteString(line + "\n")
	}
	if strings.TrimSpace(buf.String()) != "" {
		sections = append(sections, newDocSection(filename, title, level, buf.String()))
	}
	return sections
}

// FindSection returns the sections whose title contains query, case
// insensitively, including their nested sections.
func FindSection(sections []DocSection, query string) string {
	query = strings.ToLower(strings.TrimSpace(query))
	var out strings.Builder
	depth := 0
	for _, s := range sections {
		if depth > 0 && s.Level > depth {
			out.WriteString(s.Content)
			continue
		}
		depth = 0
		if s.Level > 0 && strings.Contains(strings.ToLower(s.Title), query) {
			depth = s.Level
			out.WriteString(s.Content)
		}
	}
	return out.String()
}

func parseHeading(line string) (int, string, bool) {
	trimmed := strings.TrimSpace(line)
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || len(trimmed) <= level || trimmed[level] != ' ' {
		return 0, "", false
	}
	title := strings.TrimSpace(trimmed[level:])
	return level, strings.ReplaceAll(title, "**", ""), true
}

func newDocSection(filename, title string, level int, content string) DocSection {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s:%s", filename, title)))
	return DocSection{
		ID:      hex.EncodeToString(hash[:]),
		Title:   title,
		Level:   level,
		Content: content,
	}
}

// Package cvtext reads a CV and reduces it to the sections that describe a
// research background.
package cvtext

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// MaxChars bounds the text Sections returns.
const MaxChars = 3000

// maxSectionLines bounds a section that is not followed by another header.
const maxSectionLines = 100

// Read returns the text of a .txt or .md CV.
func Read(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt", ".md", ".markdown":
	default:
		return "", eris.Errorf("cvtext: unsupported CV format %q (use .txt or .md)", ext)
	}
	b, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return "", eris.Wrap(err, "cvtext: read cv")
	}
	if !utf8.Valid(b) {
		return "", eris.Errorf("cvtext: %s is not UTF-8 text", path)
	}
	return strings.TrimPrefix(string(b), "\ufeff"), nil
}

// section kinds in the order headers are matched; a header naming both
// research and projects counts as research.
var sectionKeys = []struct {
	name  string
	terms []string
}{
	{"education", []string{"education", "academic background", "qualification", "degree", "field of study", "教育背景", "学历"}},
	{"research", []string{"research", "研究经历", "研究兴趣", "研究方向", "科研经历"}},
	{"publications", []string{"publication", "papers", "journal articles", "conference", "patents", "论文", "发表"}},
	{"skills", []string{"skills", "competencies", "programming", "technologies", "技能"}},
	{"projects", []string{"projects", "project experience", "项目"}},
}

type header struct {
	kind string // empty for a header of an unwanted section
	line int
}

// Sections extracts the education, research, publications, skills and
// projects blocks of a CV, each labelled, capped at MaxChars. Text without
// recognisable headers is returned as is, capped the same way.
func Sections(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	headers := findHeaders(lines)
	var blocks []string
	for i, h := range headers {
		if h.kind == "" {
			continue
		}
		end := min(h.line+maxSectionLines, len(lines))
		if i+1 < len(headers) {
			end = min(end, headers[i+1].line)
		}
		body := strings.TrimSpace(strings.Join(lines[h.line:end], "\n"))
		if body != "" {
			blocks = append(blocks, "["+strings.ToUpper(h.kind)+"]\n"+body)
		}
	}

	out := strings.Join(blocks, "\n\n")
	if out == "" {
		out = strings.TrimSpace(text)
	}
	return capRunes(out, MaxChars)
}

func findHeaders(lines []string) []header {
	var out []header
	for i, raw := range lines {
		line := strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), "#*:_"))
		if line == "" || utf8.RuneCountInString(line) > 60 {
			continue
		}
		if kind := sectionKind(line); kind != "" {
			out = append(out, header{kind: kind, line: i})
			continue
		}
		if isAllCaps(line) {
			out = append(out, header{line: i})
		}
	}
	return out
}

func sectionKind(line string) string {
	lower := strings.ToLower(line)
	for _, s := range sectionKeys {
		for _, t := range s.terms {
			if strings.Contains(lower, t) {
				return s.name
			}
		}
	}
	return ""
}

func isAllCaps(line string) bool {
	letters := 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters > 3
}

func capRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

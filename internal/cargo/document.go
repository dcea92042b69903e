package cargo

import (
	"regexp"
	"strings"
)

// section is one TOML table of a manifest kept as raw lines, so that edits
// leave comments and formatting of untouched lines alone.
type section struct {
	header string // raw header line, empty for the preamble
	key    []string
	array  bool
	body   []string
}

type document struct {
	sections []*section
	trailing bool
}

func parseDocument(src []byte) *document {
	text := string(src)
	doc := &document{trailing: strings.HasSuffix(text, "\n")}
	text = strings.TrimSuffix(text, "\n")

	cur := &section{}
	doc.sections = append(doc.sections, cur)
	if text == "" {
		return doc
	}

	depth := 0
	for _, line := range strings.Split(text, "\n") {
		if depth == 0 {
			if key, array, ok := parseHeader(line); ok {
				cur = &section{header: line, key: key, array: array}
				doc.sections = append(doc.sections, cur)
				continue
			}
		}
		cur.body = append(cur.body, line)
		depth += bracketDelta(line)
		if depth < 0 {
			depth = 0
		}
	}
	return doc
}

func (d *document) bytes() []byte {
	var lines []string
	for _, s := range d.sections {
		if s.header != "" {
			lines = append(lines, s.header)
		}
		lines = append(lines, s.body...)
	}
	out := strings.Join(lines, "\n")
	if d.trailing {
		out += "\n"
	}
	return []byte(out)
}

func (d *document) find(key ...string) *section {
	for _, s := range d.sections {
		if !s.array && keyEqual(s.key, key) {
			return s
		}
	}
	return nil
}

func keyEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func parseHeader(line string) ([]string, bool, bool) {
	t := strings.TrimSpace(stripComment(line))
	switch {
	case strings.HasPrefix(t, "[[") && strings.HasSuffix(t, "]]"):
		return splitKey(t[2 : len(t)-2]), true, true
	case strings.HasPrefix(t, "[") && strings.HasSuffix(t, "]"):
		return splitKey(t[1 : len(t)-1]), false, true
	}
	return nil, false, false
}

// scan calls fn for every byte of line outside string literals, stopping at
// a comment.
func scan(line string, fn func(i int, c byte)) {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote == '"' && c == '\\':
			i++
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '#':
			return
		default:
			fn(i, c)
		}
	}
}

func stripComment(line string) string {
	end := len(line)
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		if quote == '"' && c == '\\' {
			i++
			continue
		}
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		if c == '"' || c == '\'' {
			quote = c
			continue
		}
		if c == '#' {
			end = i
			break
		}
	}
	return line[:end]
}

func bracketDelta(line string) int {
	delta := 0
	scan(line, func(_ int, c byte) {
		switch c {
		case '[':
			delta++
		case ']':
			delta--
		}
	})
	return delta
}

// splitKey splits a dotted TOML key, unquoting each part.
func splitKey(s string) []string {
	var parts []string
	var b strings.Builder
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			} else {
				b.WriteByte(c)
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '.':
			parts = append(parts, strings.TrimSpace(b.String()))
			b.Reset()
		case c == ' ' || c == '\t':
		default:
			b.WriteByte(c)
		}
	}
	return append(parts, strings.TrimSpace(b.String()))
}

// keyValue splits a `key = value` line. ok is false for blank lines,
// comments and array continuation lines.
func keyValue(line string) (key []string, value string, ok bool) {
	eq := -1
	scan(line, func(i int, c byte) {
		if eq < 0 && c == '=' {
			eq = i
		}
	})
	if eq <= 0 {
		return nil, "", false
	}
	k := strings.TrimSpace(line[:eq])
	if k == "" || strings.ContainsAny(k[:1], "[{,") {
		return nil, "", false
	}
	return splitKey(k), strings.TrimSpace(line[eq+1:]), true
}

var quoted = `("(?:[^"\\]|\\.)*"|'[^']*')`

// setValue replaces the first string literal after the `=` of line.
func setValue(line, value string) string {
	eq := strings.Index(line, "=")
	if eq < 0 {
		return line
	}
	re := regexp.MustCompile(quoted)
	loc := re.FindStringIndex(line[eq:])
	if loc == nil {
		return line
	}
	return line[:eq+loc[0]] + `"` + value + `"` + line[eq+loc[1]:]
}

func fieldPattern(field string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[{,\s])` + regexp.QuoteMeta(field) + `\s*=\s*` + quoted)
}

// inlineField returns the string value of field inside an inline table.
func inlineField(line, field string) (string, bool) {
	m := fieldPattern(field).FindStringSubmatch(stripComment(line))
	if m == nil {
		return "", false
	}
	return strings.Trim(m[1], `"'`), true
}

func setInlineField(line, field, value string) string {
	loc := fieldPattern(field).FindStringSubmatchIndex(line)
	if loc == nil {
		return line
	}
	return line[:loc[2]] + `"` + value + `"` + line[loc[3]:]
}

func insertInlineField(line, field, value string) string {
	eq := strings.Index(line, "=")
	if eq < 0 {
		return line
	}
	brace := strings.Index(line[eq:], "{")
	if brace < 0 {
		return line
	}
	at := eq + brace + 1
	return line[:at] + " " + field + ` = "` + value + `",` + line[at:]
}

func inlineTrue(line, field string) bool {
	re := regexp.MustCompile(`(?:^|[{,\s])` + regexp.QuoteMeta(field) + `\s*=\s*true\b`)
	return re.MatchString(stripComment(line))
}

package cargo

import (
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// feature is one `name = [...]` entry of the [features] table.
type feature struct {
	start, end int
	name       string
	keyText    string
	indent     string
	values     []string
}

func parseFeatures(s *section) []feature {
	var out []feature
	for i := 0; i < len(s.body); {
		line := s.body[i]
		k, _, ok := keyValue(line)
		if !ok || len(k) != 1 {
			i++
			continue
		}
		end := i
		depth := bracketDelta(line)
		for depth > 0 && end+1 < len(s.body) {
			end++
			depth += bracketDelta(s.body[end])
		}

		eq := strings.Index(line, "=")
		text := strings.Join(append([]string{line[eq+1:]}, s.body[i+1:end+1]...), "\n")
		var doc struct {
			V []string `toml:"v"`
		}
		if err := toml.Unmarshal([]byte("v = "+strings.TrimSpace(text)), &doc); err == nil {
			out = append(out, feature{
				start:   i,
				end:     end,
				name:    k[0],
				keyText: strings.TrimSpace(line[:eq]),
				indent:  line[:len(line)-len(strings.TrimLeft(line, " \t"))],
				values:  doc.V,
			})
		}
		i = end + 1
	}
	return out
}

// editFeatures rewrites the [features] table. fn returns drop to remove an
// entry, or the values the entry should keep.
func (d *document) editFeatures(fn func(f feature) (keep []string, drop bool)) {
	s := d.find("features")
	if s == nil {
		return
	}
	var body []string
	next := 0
	for _, f := range parseFeatures(s) {
		body = append(body, s.body[next:f.start]...)
		next = f.end + 1

		keep, drop := fn(f)
		switch {
		case drop:
		case equalValues(keep, f.values):
			body = append(body, s.body[f.start:f.end+1]...)
		default:
			body = append(body, f.indent+f.keyText+" = "+formatArray(keep))
		}
	}
	s.body = append(body, s.body[next:]...)
}

func equalValues(a, b []string) bool {
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

func formatArray(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = strconv.Quote(v)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// featureDep returns the dependency a feature value enables and whether the
// reference is weak (`dep?/feature`).
func featureDep(value string) (dep string, weak bool) {
	if rest, ok := strings.CutPrefix(value, "dep:"); ok {
		return rest, false
	}
	if i := strings.Index(value, "/"); i > 0 {
		name := value[:i]
		if n, ok := strings.CutSuffix(name, "?"); ok {
			return n, true
		}
		return name, false
	}
	return value, false
}

func filter(values []string, keep func(string) bool) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

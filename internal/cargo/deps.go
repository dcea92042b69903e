package cargo

import "strings"

var depKinds = map[string]bool{
	"dependencies":       false,
	"build-dependencies": false,
	"dev-dependencies":   true,
}

// depTable classifies a table key. For `[dependencies]` style tables name
// is empty; for `[dependencies.foo]` it is the dependency key.
func depTable(key []string) (dev bool, name string, ok bool) {
	switch {
	case len(key) >= 1 && key[0] == "workspace":
		if len(key) >= 2 && key[1] == "dependencies" {
			return false, strings.Join(key[2:], "."), len(key) <= 3
		}
	case len(key) >= 1 && key[0] == "target":
		if len(key) >= 3 {
			if d, known := depKinds[key[2]]; known && len(key) <= 4 {
				return d, strings.Join(key[3:], "."), true
			}
		}
	default:
		if len(key) >= 1 {
			if d, known := depKinds[key[0]]; known && len(key) <= 2 {
				return d, strings.Join(key[1:], "."), true
			}
		}
	}
	return false, "", false
}

// declaration is one dependency declared in a manifest.
type declaration struct {
	key       string
	pkg       string
	dev       bool
	workspace bool
	sec       *section
	line      int // -1 when sec is the dependency's own table
}

// declarations lists every dependency declaration of the document.
func (d *document) declarations() []declaration {
	var out []declaration
	for _, s := range d.sections {
		if s.array {
			continue
		}
		dev, name, ok := depTable(s.key)
		if !ok {
			continue
		}
		if name != "" {
			decl := declaration{key: name, pkg: name, dev: dev, sec: s, line: -1}
			for _, line := range s.body {
				k, v, ok := keyValue(line)
				if !ok || len(k) != 1 {
					continue
				}
				switch k[0] {
				case "package":
					decl.pkg = strings.Trim(v, `"'`)
				case "workspace":
					decl.workspace = strings.HasPrefix(v, "true")
				}
			}
			out = append(out, decl)
			continue
		}

		renames := map[string]string{}
		for _, line := range s.body {
			if k, v, ok := keyValue(line); ok && len(k) == 2 && k[1] == "package" {
				renames[k[0]] = strings.Trim(stripComment(v), `"' `)
			}
		}
		seen := map[string]bool{}
		for i, line := range s.body {
			k, _, ok := keyValue(line)
			if !ok {
				continue
			}
			if len(k) == 2 && seen[k[0]] {
				continue
			}
			decl := declaration{key: k[0], pkg: k[0], dev: dev, sec: s, line: i}
			if p, ok := inlineField(line, "package"); ok {
				decl.pkg = p
			} else if p, ok := renames[k[0]]; ok {
				decl.pkg = p
			}
			decl.workspace = inlineTrue(line, "workspace") || (len(k) == 2 && k[1] == "workspace")
			seen[k[0]] = true
			out = append(out, decl)
		}
	}
	return out
}

// devOnly returns the dependency keys declared only as dev-dependencies.
func (d *document) devOnly() map[string]bool {
	dev := map[string]bool{}
	normal := map[string]bool{}
	for _, decl := range d.declarations() {
		if decl.dev {
			dev[decl.key] = true
		} else {
			normal[decl.key] = true
		}
	}
	for k := range normal {
		delete(dev, k)
	}
	return dev
}

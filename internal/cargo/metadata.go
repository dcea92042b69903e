package cargo

import (
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"github.com/conneroisu/cascade/internal/types"
)

// Metadata holds the `[package]` fields the registry looks at on upload.
type Metadata struct {
	Description string
	License     string
	LicenseFile string
	// Readme is the configured readme path relative to the package, or "".
	Readme string
}

// ReadMetadata reads the upload metadata of pkg. Fields inherited with
// `field.workspace = true` count as set.
func ReadMetadata(fs afero.Fs, pkg types.Package) (Metadata, error) {
	data, err := afero.ReadFile(fs, pkg.ManifestPath)
	if err != nil {
		return Metadata{}, err
	}
	var m struct {
		Package struct {
			Description any `toml:"description"`
			License     any `toml:"license"`
			LicenseFile any `toml:"license-file"`
			Readme      any `toml:"readme"`
		} `toml:"package"`
	}
	if err := toml.Unmarshal(data, &m); err != nil {
		return Metadata{}, err
	}
	md := Metadata{
		Description: metadataField(m.Package.Description),
		License:     metadataField(m.Package.License),
		LicenseFile: metadataField(m.Package.LicenseFile),
	}
	switch r := m.Package.Readme.(type) {
	case string:
		md.Readme = r
	case bool:
		// `readme = false` disables the readme, `true` means README.md.
		if r {
			md.Readme = "README.md"
		}
	default:
		md.Readme = metadataField(r)
	}
	return md, nil
}

// MissingReadme reports whether md names a readme file that does not exist.
func (md Metadata) MissingReadme(fs afero.Fs, pkg types.Package) bool {
	if md.Readme == "" || md.Readme == inheritedField {
		return false
	}
	ok, _ := afero.Exists(fs, filepath.Join(filepath.Dir(pkg.ManifestPath), md.Readme))
	return !ok
}

const inheritedField = "<workspace>"

func metadataField(v any) string {
	switch f := v.(type) {
	case string:
		return f
	case map[string]any:
		if w, _ := f["workspace"].(bool); w {
			return inheritedField
		}
	}
	return ""
}

// Package planstore reads and writes the plan file.
package planstore

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"github.com/conneroisu/cascade/internal/errors"
	"github.com/conneroisu/cascade/internal/types"
)

// DefaultFile is the plan file name relative to the workspace root.
const DefaultFile = "Plan.toml"

const header = "# Release plan generated by cascade.\n" +
	"# Edit freely; `cascade plan` keeps existing entries unless run with --new.\n\n"

// Store persists plans on a filesystem.
type Store struct {
	fs   afero.Fs
	path string
}

// New creates a store for the plan at path.
func New(fs afero.Fs, path string) *Store {
	if path == "" {
		path = DefaultFile
	}
	return &Store{fs: fs, path: path}
}

// Path returns the plan file location.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether a plan file is present.
func (s *Store) Exists() (bool, error) {
	return afero.Exists(s.fs, s.path)
}

// Load reads the plan. A missing file yields an error matching
// errors.ErrPlanNotFound; a file that does not decode, or carries unknown
// keys, is reported as malformed.
func (s *Store) Load() (*types.Plan, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.ErrPlanNotFound(s.path)
		}
		return nil, errors.WrapIO(err, errors.ErrCodePlanMalformed, "reading plan").WithFile(s.path)
	}
	return Decode(data, s.path)
}

// LoadOrEmpty returns nil when no plan exists yet.
func (s *Store) LoadOrEmpty() (*types.Plan, error) {
	p, err := s.Load()
	if err != nil && errors.HasCode(err, errors.ErrCodePlanNotFound) {
		return nil, nil
	}
	return p, err
}

// Save writes the plan atomically by renaming a temporary file into place.
func (s *Store) Save(p *types.Plan) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return errors.WrapIO(err, errors.ErrCodeInternalError, "creating plan directory").WithFile(dir)
		}
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return errors.WrapIO(err, errors.ErrCodeInternalError, "writing plan").WithFile(tmp)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return errors.WrapIO(err, errors.ErrCodeInternalError, "replacing plan").WithFile(s.path)
	}
	return nil
}

// Encode renders p. Field order follows the struct definitions and entries
// keep plan order, so encoding the same plan always yields the same bytes.
func Encode(p *types.Plan) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(header)

	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(false)
	if err := enc.Encode(p); err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInternalError, "encoding plan", err)
	}
	return buf.Bytes(), nil
}

// Decode parses plan bytes. path is only used in error messages.
func Decode(data []byte, path string) (*types.Plan, error) {
	var p types.Plan
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, errors.NewIOError(errors.ErrCodePlanMalformed, "malformed plan", err).
			WithFile(path).
			WithContext("detail", describe(err))
	}

	for _, e := range p.Entries {
		if strings.TrimSpace(e.Name) == "" {
			return nil, errors.NewIOError(errors.ErrCodePlanMalformed, "plan entry without a name", nil).WithFile(path)
		}
	}
	return &p, nil
}

func describe(err error) string {
	var derr *toml.DecodeError
	if stderrors.As(err, &derr) {
		row, col := derr.Position()
		return fmt.Sprintf("%s at %d:%d", derr.String(), row, col)
	}
	var serr *toml.StrictMissingError
	if stderrors.As(err, &serr) {
		return serr.String()
	}
	return err.Error()
}

package plan

import (
	"github.com/conneroisu/cascade/internal/errors"
	"github.com/conneroisu/cascade/internal/types"
)

// PatchBump moves each named entry one patch release past its planned
// version. It is used after a partial publish to re-release packages whose
// planned version already went out. Only entries that are being published
// can be patch bumped.
func PatchBump(p *types.Plan, names []string) error {
	index := make(map[string]int, len(p.Entries))
	for i, e := range p.Entries {
		index[e.Name] = i
	}

	for _, name := range names {
		i, ok := index[name]
		if !ok {
			return errors.ErrUnknownPackage(name)
		}
		entry := &p.Entries[i]
		if !entry.Publish {
			return errors.NewValidationError(errors.ErrCodeInvalidVersion,
				"package is not being published, plan it first").WithPackage(name)
		}

		to, err := parseVersion(entry.To)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeValidation, errors.ErrCodeInvalidVersion,
				"reading planned version").WithPackage(name)
		}
		next := Bump(release(to), types.BumpPatch)

		entry.From = entry.To
		entry.To = next.String()
		entry.Bump = types.BumpPatch
		entry.Reason = types.ReasonBumped
	}
	return nil
}

// Package profile manages the named profiles kept in the synced tier, the
// per-session profile selection and the optional lock gate.
package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/entrhq/autofill/pkg/logging"
	"github.com/entrhq/autofill/pkg/storage"
	"github.com/entrhq/autofill/pkg/types"
	"github.com/samber/lo"
)

// ProfilesKey is the synced-tier key holding the profile map.
const ProfilesKey = "profiles"

// Directory provides CRUD over the profile map. The whole map is stored as
// one synced item, so every write is checked against the per-item ceiling
// before it is issued.
type Directory struct {
	tier         storage.Tier
	maxItemBytes int64
	log          *logging.Logger

	mu sync.Mutex
}

// NewDirectory creates a Directory over tier. maxItemBytes of zero disables
// the pre-flight size check.
func NewDirectory(tier storage.Tier, maxItemBytes int64, log *logging.Logger) *Directory {
	return &Directory{
		tier:         tier,
		maxItemBytes: maxItemBytes,
		log:          log,
	}
}

// Initialize writes the profile map with the default profile if it is
// missing. Idempotent.
func (d *Directory) Initialize(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	profiles, ok, err := storage.GetJSON[types.Profiles](ctx, d.tier, ProfilesKey)
	if err != nil {
		return types.StorageUnavailable("profile.initialize", err, "failed to read profiles")
	}
	if ok && profiles[types.DefaultProfile] != nil {
		return nil
	}
	if profiles == nil {
		profiles = types.Profiles{}
	}
	profiles[types.DefaultProfile] = types.NewProfile(types.DefaultProfile)
	return d.saveLocked(ctx, "profile.initialize", profiles)
}

// List returns profile names with the default profile first and the rest
// sorted.
func (d *Directory) List(ctx context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	profiles, err := d.loadLocked(ctx, "profile.list")
	if err != nil {
		return nil, err
	}
	names := lo.Without(lo.Keys(map[string]*types.Profile(profiles)), types.DefaultProfile)
	sort.Strings(names)
	return append([]string{types.DefaultProfile}, names...), nil
}

// Exists reports whether name is a stored profile.
func (d *Directory) Exists(ctx context.Context, name string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	profiles, err := d.loadLocked(ctx, "profile.exists")
	if err != nil {
		return false, err
	}
	_, ok := profiles[name]
	return ok, nil
}

// Get returns a copy of the named profile.
func (d *Directory) Get(ctx context.Context, name string) (*types.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	profiles, err := d.loadLocked(ctx, "profile.get")
	if err != nil {
		return nil, err
	}
	p, ok := profiles[name]
	if !ok {
		return nil, types.NotFound("profile.get", "profile %q not found", name)
	}
	return p.Clone(), nil
}

// Create adds an empty profile.
func (d *Directory) Create(ctx context.Context, name string) (*types.Profile, error) {
	const op = "profile.create"
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, types.Validation(op, "profile name is required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	profiles, err := d.loadLocked(ctx, op)
	if err != nil {
		return nil, err
	}
	if _, ok := profiles[name]; ok {
		return nil, types.AlreadyExists(op, "profile %q already exists", name)
	}
	p := types.NewProfile(name)
	profiles[name] = p
	if err := d.saveLocked(ctx, op, profiles); err != nil {
		return nil, err
	}
	d.log.Infof("created profile %q", name)
	return p.Clone(), nil
}

// Delete removes a profile. The default profile is protected. Attached files
// are not touched; callers remove them first.
func (d *Directory) Delete(ctx context.Context, name string) error {
	const op = "profile.delete"
	if name == types.DefaultProfile {
		return types.Protected(op, "the %q profile cannot be deleted", name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	profiles, err := d.loadLocked(ctx, op)
	if err != nil {
		return err
	}
	if _, ok := profiles[name]; !ok {
		return types.NotFound(op, "profile %q not found", name)
	}
	delete(profiles, name)
	if err := d.saveLocked(ctx, op, profiles); err != nil {
		return err
	}
	d.log.Infof("deleted profile %q", name)
	return nil
}

// SetFields replaces the field list of a profile. Fields with an empty label
// are dropped.
func (d *Directory) SetFields(ctx context.Context, name string, fields []types.Field) (*types.Profile, error) {
	return d.update(ctx, "profile.set_fields", name, func(p *types.Profile) error {
		p.Fields = types.CleanFields(fields)
		return nil
	})
}

// SetField sets one field, replacing the first field with the same label
// (compared case-insensitively) or appending a new one.
func (d *Directory) SetField(ctx context.Context, name string, field types.Field) (*types.Profile, error) {
	const op = "profile.set_field"
	cleaned := types.CleanFields([]types.Field{field})
	if len(cleaned) == 0 {
		return nil, types.Validation(op, "field label is required")
	}
	field = cleaned[0]
	return d.update(ctx, op, name, func(p *types.Profile) error {
		_, idx, found := lo.FindIndexOf(p.Fields, func(f types.Field) bool {
			return strings.EqualFold(f.Label, field.Label)
		})
		if found {
			p.Fields[idx] = field
		} else {
			p.Fields = append(p.Fields, field)
		}
		return nil
	})
}

// RemoveField drops every field whose label equals label, ignoring case.
func (d *Directory) RemoveField(ctx context.Context, name, label string) (*types.Profile, error) {
	return d.update(ctx, "profile.remove_field", name, func(p *types.Profile) error {
		p.Fields = lo.Reject(p.Fields, func(f types.Field, _ int) bool {
			return strings.EqualFold(f.Label, strings.TrimSpace(label))
		})
		return nil
	})
}

// AttachFile adds a file reference to a profile. Attaching the same ID twice
// is a no-op.
func (d *Directory) AttachFile(ctx context.Context, name string, ref types.FileRef) error {
	_, err := d.update(ctx, "profile.attach_file", name, func(p *types.Profile) error {
		if lo.ContainsBy(p.Files, func(f types.FileRef) bool { return f.ID == ref.ID }) {
			return nil
		}
		p.Files = append(p.Files, ref)
		return nil
	})
	return err
}

// DetachFile removes a file reference from a profile. A missing reference is
// not an error.
func (d *Directory) DetachFile(ctx context.Context, name, id string) error {
	_, err := d.update(ctx, "profile.detach_file", name, func(p *types.Profile) error {
		p.Files = lo.Reject(p.Files, func(f types.FileRef, _ int) bool { return f.ID == id })
		return nil
	})
	return err
}

// Export returns the profile map as a JSON document.
func (d *Directory) Export(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	profiles, err := d.loadLocked(ctx, "profile.export")
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return nil, types.StorageUnavailable("profile.export", err, "failed to encode profiles")
	}
	return data, nil
}

// Import replaces the whole profile map with data. Nothing is merged. The
// default profile is added when data lacks it.
func (d *Directory) Import(ctx context.Context, data []byte) (types.Profiles, error) {
	const op = "profile.import"
	profiles, err := DecodeProfiles(data)
	if err != nil {
		return nil, types.Validation(op, "invalid profile data: %v", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.saveLocked(ctx, op, profiles); err != nil {
		return nil, err
	}
	d.log.Infof("imported %d profiles", len(profiles))
	return profiles, nil
}

// DecodeProfiles parses an exported profile map and restores its invariants:
// names come from the keys, lists are non-nil, fields with empty labels are
// dropped and the default profile exists.
func DecodeProfiles(data []byte) (types.Profiles, error) {
	var profiles types.Profiles
	if err := json.Unmarshal(bytes.TrimSpace(data), &profiles); err != nil {
		return nil, err
	}
	if profiles == nil {
		profiles = types.Profiles{}
	}
	profiles.Normalize()
	for _, p := range profiles {
		p.Fields = types.CleanFields(p.Fields)
	}
	if _, ok := profiles[types.DefaultProfile]; !ok {
		profiles[types.DefaultProfile] = types.NewProfile(types.DefaultProfile)
	}
	return profiles, nil
}

func (d *Directory) update(ctx context.Context, op, name string, mutate func(*types.Profile) error) (*types.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	profiles, err := d.loadLocked(ctx, op)
	if err != nil {
		return nil, err
	}
	p, ok := profiles[name]
	if !ok {
		return nil, types.NotFound(op, "profile %q not found", name)
	}
	if err := mutate(p); err != nil {
		return nil, err
	}
	if err := d.saveLocked(ctx, op, profiles); err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// loadLocked reads the profile map. A missing map or a map without the
// default profile reads as if the default profile were present.
func (d *Directory) loadLocked(ctx context.Context, op string) (types.Profiles, error) {
	profiles, _, err := storage.GetJSON[types.Profiles](ctx, d.tier, ProfilesKey)
	if err != nil {
		return nil, types.StorageUnavailable(op, err, "failed to read profiles")
	}
	if profiles == nil {
		profiles = types.Profiles{}
	}
	profiles.Normalize()
	if _, ok := profiles[types.DefaultProfile]; !ok {
		profiles[types.DefaultProfile] = types.NewProfile(types.DefaultProfile)
	}
	return profiles, nil
}

func (d *Directory) saveLocked(ctx context.Context, op string, profiles types.Profiles) error {
	if d.maxItemBytes > 0 {
		size, err := storage.ItemSize(ProfilesKey, profiles)
		if err != nil {
			return types.StorageUnavailable(op, err, "failed to measure profiles")
		}
		if size > d.maxItemBytes {
			return types.StorageUnavailable(op, storage.ErrQuotaExceeded,
				"profile data would be %d bytes, sync storage allows %d per item", size, d.maxItemBytes)
		}
	}
	if err := d.tier.Set(ctx, map[string]any{ProfilesKey: profiles}); err != nil {
		return types.StorageUnavailable(op, err, "failed to save profiles")
	}
	return nil
}

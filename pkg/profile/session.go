package profile

import (
	"context"

	"github.com/entrhq/autofill/pkg/types"
)

// Session tracks the profile selected by one caller. A new session starts
// on the default profile; nothing about the selection is persisted.
type Session struct {
	dir     *Directory
	current string
}

// NewSession returns a session on the default profile.
func NewSession(dir *Directory) *Session {
	return &Session{dir: dir, current: types.DefaultProfile}
}

// Current returns the selected profile name.
func (s *Session) Current() string {
	return s.current
}

// Select switches to name, which must exist.
func (s *Session) Select(ctx context.Context, name string) error {
	ok, err := s.dir.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return types.NotFound("profile.select", "profile %q not found", name)
	}
	s.current = name
	return nil
}

// Profile loads the selected profile. When it has been deleted since it was
// selected, the session falls back to the default profile.
func (s *Session) Profile(ctx context.Context) (*types.Profile, error) {
	p, err := s.dir.Get(ctx, s.current)
	if err == nil {
		return p, nil
	}
	if types.KindOf(err) != types.KindNotFound || s.current == types.DefaultProfile {
		return nil, err
	}
	s.current = types.DefaultProfile
	return s.dir.Get(ctx, s.current)
}

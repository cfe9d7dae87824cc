package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/entrhq/autofill/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession(t *testing.T) {
	ctx := context.Background()
	dir, _ := newTestDirectory(t, 0)
	_, err := dir.Create(ctx, "work")
	require.NoError(t, err)

	s := NewSession(dir)
	assert.Equal(t, types.DefaultProfile, s.Current())

	err = s.Select(ctx, "ghost")
	assert.True(t, errors.Is(err, types.ErrNotFound))
	assert.Equal(t, types.DefaultProfile, s.Current())

	require.NoError(t, s.Select(ctx, "work"))
	p, err := s.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "work", p.Name)

	// Sessions are independent of each other.
	assert.Equal(t, types.DefaultProfile, NewSession(dir).Current())

	require.NoError(t, dir.Delete(ctx, "work"))
	p, err = s.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultProfile, p.Name)
	assert.Equal(t, types.DefaultProfile, s.Current())
}

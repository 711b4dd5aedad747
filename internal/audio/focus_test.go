package audio

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yok-tottii/EzCall/internal/route"
)

func TestFocusExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "focus.lock")
	first := NewFocus(path)
	second := NewFocus(path)

	var changes []route.FocusChange
	require.NoError(t, first.Request(func(c route.FocusChange) { changes = append(changes, c) }))
	assert.True(t, first.Held())
	assert.Equal(t, []route.FocusChange{route.FocusGainTransient}, changes)

	assert.ErrorIs(t, second.Request(nil), ErrFocusHeld)
	assert.False(t, second.Held())

	// Requesting again while held keeps the lock and does not re-notify.
	require.NoError(t, first.Request(nil))
	assert.Len(t, changes, 1)

	require.NoError(t, first.Abandon())
	assert.False(t, first.Held())
	require.NoError(t, second.Request(nil))
	assert.True(t, second.Held())
	require.NoError(t, second.Abandon())
}

func TestFocusAbandonWithoutRequest(t *testing.T) {
	f := NewFocus(filepath.Join(t.TempDir(), "focus.lock"))
	assert.NoError(t, f.Abandon())
	assert.Equal(t, filepath.Base(f.Path()), "focus.lock")
}

func TestDefaultFocusPath(t *testing.T) {
	assert.Equal(t, "audio-focus.lock", filepath.Base(DefaultFocusPath()))
}

package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-forum/internal/models"
)

func TestFileStore_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "session")
	s := NewFileStore(path)

	tok, err := s.Load()
	require.NoError(t, err)
	require.Empty(t, tok)

	require.NoError(t, s.Save(&models.Session{RefreshToken: "rt-1"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	tok, err = s.Load()
	require.NoError(t, err)
	require.Equal(t, "rt-1", tok)

	// Выход из сессии удаляет файл.
	require.NoError(t, s.Save(nil))
	_, err = os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, s.Clear())
}

func TestFileStore_Disabled(t *testing.T) {
	t.Parallel()

	s := NewFileStore("")
	require.NoError(t, s.Save(&models.Session{RefreshToken: "rt"}))

	tok, err := s.Load()
	require.NoError(t, err)
	require.Empty(t, tok)
}

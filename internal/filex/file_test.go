package filex

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) func() {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	return func() { _ = os.Chdir(old) }
}

func TestEnsureDataDir_CreatesDirectoryInCWD(t *testing.T) {
	tmp := t.TempDir()
	defer chdir(t, tmp)()

	got, err := EnsureDataDir(".gophguard")
	require.NoError(t, err)

	// TempDir may sit behind a symlink (macOS /var).
	wd, err := os.Getwd()
	require.NoError(t, err)
	want := filepath.Join(wd, ".gophguard")
	require.Equal(t, want, got)

	fi, err := os.Stat(want)
	require.NoError(t, err)
	require.True(t, fi.IsDir(), "should create a directory")

	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0o700), fi.Mode().Perm()&0o700)
		require.Zero(t, fi.Mode().Perm()&0o077, "group and other get nothing")
	}
}

func TestEnsureDataDir_Absolute(t *testing.T) {
	want := filepath.Join(t.TempDir(), "a", "b")
	got, err := EnsureDataDir(want)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestEnsureDataDir_Idempotent(t *testing.T) {
	tmp := t.TempDir()
	defer chdir(t, tmp)()

	first, err := EnsureDataDir("state")
	require.NoError(t, err)

	second, err := EnsureDataDir("state")
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestEnsureDataDir_FailsIfFileWithSameNameExists(t *testing.T) {
	tmp := t.TempDir()
	defer chdir(t, tmp)()

	require.NoError(t, os.WriteFile("state", []byte("x"), 0o600))

	_, err := EnsureDataDir("state")
	require.Error(t, err, "should fail when a file exists with the same name")
}

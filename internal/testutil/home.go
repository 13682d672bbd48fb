// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

//go:embed all:home
var homeFS embed.FS

// NewHome copies the sample engine home into a fresh temporary directory and
// returns its path. The home holds a MANIFEST that includes one manifest of
// every supported format:
//
//	MANIFEST       list: rpl/num.rpl, rpl/net.yaml, rpl/word.cue
//	rpl/num.rpl    num.int, num.frac, num.decimal (alias num.sign)
//	rpl/net.yaml   net.ipv4, net.port (alias net.octet)
//	rpl/word.cue   word.alpha, word.upper (alias word.sp)
func NewHome(t testing.TB) string {
	t.Helper()
	dir := t.TempDir()

	sub, err := fs.Sub(homeFS, "home")
	require.NoError(t, err)

	err = fs.WalkDir(sub, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		target := filepath.Join(dir, filepath.FromSlash(path))
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := fs.ReadFile(sub, path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
	require.NoError(t, err, "copy sample home")
	return dir
}

// NewEmptyHome returns a temporary home with an empty runtime directory.
func NewEmptyHome(t testing.TB) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "rpl"), 0o755))
	return dir
}

// WriteFile writes content to name below dir, creating parent directories,
// and returns the full path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

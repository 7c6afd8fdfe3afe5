package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func collect(t *testing.T, l *Locator, root string) []string {
	t.Helper()
	var got []string
	err := l.Walk(context.Background(), root, func(path string) error {
		rel, err := filepath.Rel(root, path)
		require.NoError(t, err)
		got = append(got, filepath.ToSlash(rel))
		return nil
	})
	require.NoError(t, err)
	return got
}

func TestWalkFiltersBySuffix(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "__generated__", "AQuery.graphql.ts"))
	writeFile(t, filepath.Join(root, "a", "AQuery.ts"))
	writeFile(t, filepath.Join(root, "b", "schema.graphql"))
	writeFile(t, filepath.Join(root, "BQuery.graphql.ts"))
	writeFile(t, filepath.Join(root, "c", "CQuery.graphql.ts.map"))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dir.graphql.ts"), 0o755))

	got := collect(t, NewLocator(), root)
	require.Equal(t, []string{"BQuery.graphql.ts", "a/__generated__/AQuery.graphql.ts"}, got)
}

func TestWalkFollowsSymlinksAndSkipsLoops(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	writeFile(t, filepath.Join(outside, "Linked.graphql.ts"))
	writeFile(t, filepath.Join(root, "src", "Own.graphql.ts"))
	if err := os.Symlink(outside, filepath.Join(root, "src", "linked")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	require.NoError(t, os.Symlink(root, filepath.Join(root, "src", "loop")))
	require.NoError(t, os.Symlink(filepath.Join(root, "missing"), filepath.Join(root, "broken.graphql.ts")))

	var skipped []error
	l := NewLocator(WithSkipHook(func(path string, err error) { skipped = append(skipped, err) }))
	got := collect(t, l, root)
	require.Equal(t, []string{"src/Own.graphql.ts", "src/linked/Linked.graphql.ts"}, got)

	var sawLoop bool
	for _, err := range skipped {
		if errors.Is(err, ErrSymlinkLoop) {
			sawLoop = true
		}
	}
	require.True(t, sawLoop, "expected a loop to be reported, got %v", skipped)
	require.Len(t, skipped, 2)
}

func TestWalkSharedDirectoryOncePerLink(t *testing.T) {
	root := t.TempDir()
	shared := t.TempDir()
	writeFile(t, filepath.Join(shared, "Shared.graphql.ts"))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "b"), 0o755))
	if err := os.Symlink(shared, filepath.Join(root, "a", "shared")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	require.NoError(t, os.Symlink(shared, filepath.Join(root, "b", "shared")))

	var skipped []string
	l := NewLocator(WithSkipHook(func(path string, err error) { skipped = append(skipped, path) }))
	got := collect(t, l, root)
	require.Equal(t, []string{"a/shared/Shared.graphql.ts", "b/shared/Shared.graphql.ts"}, got)
	require.Empty(t, skipped)
}

func TestWalkSkipsUnreadableDirectory(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Visible.graphql.ts"))
	sub := filepath.Join(root, "locked")
	writeFile(t, filepath.Join(sub, "Hidden.graphql.ts"))
	require.NoError(t, os.Chmod(sub, 0))
	t.Cleanup(func() { _ = os.Chmod(sub, 0o755) })

	var skipped []string
	var skipErr error
	l := NewLocator(WithSkipHook(func(path string, err error) {
		skipped = append(skipped, path)
		skipErr = err
	}))
	got := collect(t, l, root)
	require.Equal(t, []string{"Visible.graphql.ts"}, got)
	require.Equal(t, []string{sub}, skipped)
	require.ErrorIs(t, skipErr, os.ErrPermission)
}

func TestWalkMissingRoot(t *testing.T) {
	err := NewLocator().Walk(context.Background(), filepath.Join(t.TempDir(), "absent"), func(string) error { return nil })
	require.Error(t, err)
}

func TestWalkRootFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "Only.graphql.ts")
	writeFile(t, path)
	var got []string
	require.NoError(t, NewLocator().Walk(context.Background(), path, func(p string) error {
		got = append(got, p)
		return nil
	}))
	require.Equal(t, []string{path}, got)
}

func TestWalkStopsOnCallbackError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "A.graphql.ts"))
	writeFile(t, filepath.Join(root, "B.graphql.ts"))
	boom := errors.New("boom")
	calls := 0
	err := NewLocator().Walk(context.Background(), root, func(string) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func TestWithSuffix(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "A.graphql.js"))
	writeFile(t, filepath.Join(root, "B.graphql.ts"))
	require.Equal(t, []string{"A.graphql.js"}, collect(t, NewLocator(WithSuffix(".graphql.js")), root))
}

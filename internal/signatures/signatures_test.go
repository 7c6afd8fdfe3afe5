package signatures

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestCollectorTieBreakIsOrderIndependent(t *testing.T) {
	entries := []Entry{
		{Name: "A", Signature: "aa", Source: "b/A.graphql.ts"},
		{Name: "A", Signature: "a0", Source: "a/A.graphql.ts"},
		{Name: "A", Signature: "a9", Source: "c/A.graphql.ts"},
		{Name: "B", Signature: "bb", Source: "B.graphql.ts"},
	}
	orders := [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {2, 0, 3, 1}}
	for _, order := range orders {
		c := NewCollector()
		for _, i := range order {
			c.Add(entries[i])
		}
		require.Equal(t, 2, c.Len())
		if diff := cmp.Diff(map[string]string{"A": "a0", "B": "bb"}, c.Map()); diff != "" {
			t.Fatalf("order %v (-want +got):\n%s", order, diff)
		}
		want := []Collision{{Name: "A", Kept: "a/A.graphql.ts", Dropped: []string{"b/A.graphql.ts", "c/A.graphql.ts"}}}
		if diff := cmp.Diff(want, c.Collisions()); diff != "" {
			t.Fatalf("order %v collisions (-want +got):\n%s", order, diff)
		}
	}
}

func TestEntriesSortedByName(t *testing.T) {
	c := NewCollector()
	for _, n := range []string{"Zeta", "alpha", "Beta"} {
		c.Add(Entry{Name: n, Signature: n, Source: n})
	}
	var names []string
	for _, e := range c.Entries() {
		names = append(names, e.Name)
	}
	require.Equal(t, []string{"Beta", "Zeta", "alpha"}, names)
	require.Empty(t, c.Collisions())
}

func TestMarshalFormat(t *testing.T) {
	got, err := Marshal(map[string]string{"b": "2", "a": "1", "C": "3"})
	require.NoError(t, err)
	require.Equal(t, "{\n\t\"C\": \"3\",\n\t\"a\": \"1\",\n\t\"b\": \"2\"\n}", string(got))

	empty, err := Marshal(nil)
	require.NoError(t, err)
	require.Equal(t, "{}", string(empty))
}

func TestWriteFileReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultOutput)
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	require.NoError(t, WriteFile(path, map[string]string{"Q": "ff"}))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "{\n\t\"Q\": \"ff\"\n}", string(b))

	left, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, left, 1)
}

func TestWriteFileMissingDirectory(t *testing.T) {
	err := WriteFile(filepath.Join(t.TempDir(), "nope", "out.json"), map[string]string{})
	require.Error(t, err)
}

func TestManifestRelativeSources(t *testing.T) {
	root := filepath.Join("src", "app")
	m := NewManifest(root, []Entry{
		{Name: "FooQuery", Signature: "ab", Source: filepath.Join(root, "__generated__", "FooQuery.graphql.ts"), Kind: "query"},
	})
	require.Equal(t, "hmac-sha256", m.Algorithm)
	require.Equal(t, []ManifestOperation{
		{Name: "FooQuery", Signature: "ab", Kind: "query", Source: "__generated__/FooQuery.graphql.ts"},
	}, m.Operations)

	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, WriteManifest(path, m))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), `"format": "querysign"`)
}

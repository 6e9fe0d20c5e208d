package visited

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "visited_urls.csv"))
	require.NoError(t, err)
	assert.Zero(t, s.Len())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "visited_urls.csv")
	urls := []string{
		"https://medium.com/@a/one-1",
		"https://medium.com/p/two?source=rss,tag",
		"https://medium.com/@c/\"quoted\"-3",
	}

	s := New(path)
	for _, u := range urls {
		assert.True(t, s.Add(u))
	}
	assert.False(t, s.Add(urls[0]))
	require.NoError(t, s.Save())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.ElementsMatch(t, urls, loaded.URLs())
	for _, u := range urls {
		assert.True(t, loaded.Contains(u))
	}
}

func TestSaveRewritesWholeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visited_urls.csv")

	s := New(path)
	s.Add("https://a")
	require.NoError(t, s.Save())
	s.Add("https://b")
	require.NoError(t, s.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "https://a\nhttps://b\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestLoadToleratesBOMBlankRowsAndExtraColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visited_urls.csv")
	require.NoError(t, os.WriteFile(path, []byte("\uFEFFhttps://a\n\nhttps://b,extra\n  https://c  \n"), 0600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a", "https://b", "https://c"}, s.URLs())
}

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAfterFind_FoldsLegacyLinks(t *testing.T) {
	post := &Post{
		LegacyLinks: []DownloadLink{
			{Label: "mirror 1", URL: "https://example.com/a"},
			{Label: "mirror 2", URL: "https://example.com/b"},
		},
	}

	require.NoError(t, post.AfterFind(nil))

	require.Len(t, post.DownloadGroups, 1)
	assert.Equal(t, "Downloads", post.DownloadGroups[0].Name)
	assert.Len(t, post.DownloadGroups[0].Links, 2)
	assert.Nil(t, post.LegacyLinks)
}

func TestAfterFind_GroupedRowsWin(t *testing.T) {
	post := &Post{
		DownloadGroups: []DownloadGroup{{Name: "Installers", Links: []DownloadLink{{Label: "x", URL: "https://example.com/x"}}}},
		LegacyLinks:    []DownloadLink{{Label: "stale", URL: "https://example.com/old"}},
	}

	require.NoError(t, post.AfterFind(nil))

	require.Len(t, post.DownloadGroups, 1)
	assert.Equal(t, "Installers", post.DownloadGroups[0].Name)
	assert.Nil(t, post.LegacyLinks)
}

func TestLinkAt(t *testing.T) {
	post := &Post{
		DownloadGroups: []DownloadGroup{
			{Name: "Downloads", Links: []DownloadLink{
				{Label: "a", URL: "https://example.com/a"},
				{Label: "b", URL: "https://example.com/b"},
			}},
		},
	}

	link, ok := post.LinkAt(0, 1)
	require.True(t, ok)
	assert.Equal(t, "b", link.Label)

	// The pointer aliases the group slice, so edits stick.
	link.URL = "https://example.com/b2"
	assert.Equal(t, "https://example.com/b2", post.DownloadGroups[0].Links[1].URL)

	for _, idx := range [][2]int{{-1, 0}, {1, 0}, {0, 2}, {0, -1}} {
		_, ok := post.LinkAt(idx[0], idx[1])
		assert.False(t, ok)
	}
}

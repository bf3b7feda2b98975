package urlpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineURL(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		relative string
		want     string
	}{
		{"child file", "https://demos.example.com/aq/", "match.dm2", "https://demos.example.com/aq/match.dm2"},
		{"base without slash keeps last segment", "https://demos.example.com/aq", "match.dm2", "https://demos.example.com/aq/match.dm2"},
		{"child folder", "https://demos.example.com/aq/", "2024/", "https://demos.example.com/aq/2024/"},
		{"parent traversal", "https://demos.example.com/aq/2024/", "../2023/", "https://demos.example.com/aq/2023/"},
		{"absolute path override", "https://demos.example.com/aq/2024/", "/other/", "https://demos.example.com/other/"},
		{"absolute url override", "https://demos.example.com/aq/", "https://mirror.example.com/x/", "https://mirror.example.com/x/"},
		{"escaped name", "https://demos.example.com/aq/", "big%20match.mvd2", "https://demos.example.com/aq/big%20match.mvd2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CombineURL(tt.base, tt.relative)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCombineURL_InvalidInput(t *testing.T) {
	_, err := CombineURL("https://demos.example.com/%zz/", "a")
	assert.Error(t, err)
}

func TestIsInsideRoot(t *testing.T) {
	root := "https://demos.example.com/aq"

	tests := []struct {
		name      string
		candidate string
		want      bool
	}{
		{"root itself", "https://demos.example.com/aq/", true},
		{"root without slash is not inside", "https://demos.example.com/aq", false},
		{"nested folder", "https://demos.example.com/aq/2024/cup/", true},
		{"case insensitive", "HTTPS://DEMOS.example.com/AQ/2024/", true},
		{"sibling with shared prefix", "https://demos.example.com/aq2/", false},
		{"parent", "https://demos.example.com/", false},
		{"other host", "https://evil.example.com/aq/", false},
		{"dot dot escapes", "https://demos.example.com/aq/../private/", false},
		{"encoded dot dot escapes", "https://demos.example.com/aq/%2e%2e/private/", false},
		{"backslash dot dot escapes", "https://demos.example.com/aq/2024/..\\..\\private/", false},
		{"dot dot that stays inside", "https://demos.example.com/aq/2024/../cup/", true},
		{"single dot", "https://demos.example.com/aq/./2024/", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsInsideRoot(tt.candidate, root))
		})
	}

	assert.False(t, IsInsideRoot("https://demos.example.com/aq/", ""), "empty root admits nothing")
}

func TestIsInsideRoot_CombinedChildAlwaysInside(t *testing.T) {
	roots := []string{
		"https://demos.example.com/",
		"https://demos.example.com/aq",
		"https://demos.example.com/aq/",
		"http://127.0.0.1:8080/bucket/demos/aqtion/",
	}
	for _, root := range roots {
		child, err := CombineURL(root, "a/b/")
		require.NoError(t, err)
		assert.True(t, IsInsideRoot(child, root), "child %s of %s", child, root)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://demos.example.com/aq/2024/", "https://demos.example.com/aq/2024/"},
		{"https://demos.example.com/aq/%20cup/", "https://demos.example.com/aq/%20cup/"},
		{"https://demos.example.com/aq/../private/", "https://demos.example.com/private/"},
		{"https://demos.example.com/aq/%2E%2E/private/", "https://demos.example.com/private/"},
		{"https://demos.example.com/aq/2024/..", "https://demos.example.com/aq/"},
		{"https://demos.example.com/../../x.dm2", "https://demos.example.com/x.dm2"},
		{"https://demos.example.com/aq/./cup/", "https://demos.example.com/aq/cup/"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Normalize("https://demos.example.com/%zz/")
	assert.Error(t, err)
}

func TestLastSegment(t *testing.T) {
	assert.Equal(t, "b", LastSegment("a/b/"))
	assert.Equal(t, "c.dm2", LastSegment("a/b/c.dm2"))
	assert.Equal(t, "solo", LastSegment("solo"))
	assert.Equal(t, "", LastSegment("/"))
}

func TestBreadcrumb(t *testing.T) {
	root := "https://demos.example.com/aq/"

	assert.Equal(t, "Root", Breadcrumb(root, root))
	assert.Equal(t, "Root", Breadcrumb("https://demos.example.com/aq", root))
	assert.Equal(t, "Root / 2024 / cup", Breadcrumb("https://demos.example.com/aq/2024/cup/", root))
	assert.Equal(t, "Root / 2024", Breadcrumb("HTTPS://demos.example.com/AQ/2024/", root))
}

func TestTrimRootPrefix(t *testing.T) {
	assert.Equal(t, "x/", TrimRootPrefix("https://h/aq/x/", "https://h/aq/"))
	assert.Equal(t, "https://other/x/", TrimRootPrefix("https://other/x/", "https://h/aq/"))
}

func TestStripQuery(t *testing.T) {
	assert.Equal(t, "a.dm2", StripQuery("a.dm2?x=1"))
	assert.Equal(t, "a/", StripQuery("a/#top"))
	assert.Equal(t, "", StripQuery("?C=N;O=D"))
	assert.Equal(t, "plain", StripQuery("plain"))
}

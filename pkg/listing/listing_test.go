package listing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Result {
	entries := []Entry{
		NewFile("zeta.dm2", "zeta.dm2"),
		NewFolder("beta", "beta/"),
		NewFile("Alpha.mvd2", "Alpha.mvd2"),
		NewFolder("Alpha", "Alpha/"),
		NewFile("match.mvd2.gz", "match.mvd2.gz"),
	}
	SortEntries(entries)
	return &Result{Folder: "https://demos.example.com/aq/", Entries: entries}
}

func names(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestSortEntries_FoldersFirstCaseInsensitive(t *testing.T) {
	r := sample()
	assert.Equal(t, []string{"Alpha", "beta", "Alpha.mvd2", "match.mvd2.gz", "zeta.dm2"}, names(r.Entries))
}

func TestSortEntries_TieBrokenByRawName(t *testing.T) {
	entries := []Entry{NewFile("b.dm2", "b.dm2"), NewFile("B.dm2", "B.dm2")}
	SortEntries(entries)
	assert.Equal(t, []string{"B.dm2", "b.dm2"}, names(entries))
}

func TestResult_Sorted_Descending(t *testing.T) {
	r := sample()
	desc := r.Sorted(true)

	assert.Equal(t, []string{"beta", "Alpha", "zeta.dm2", "match.mvd2.gz", "Alpha.mvd2"}, names(desc.Entries))
	assert.Equal(t, "Alpha", r.Entries[0].Name, "original untouched")
}

func TestResult_Counts(t *testing.T) {
	r := sample()
	assert.Equal(t, 2, r.FolderCount())
	assert.Equal(t, 3, r.FileCount())
	assert.False(t, r.Empty())
	assert.Equal(t, "Loaded 2 folders and 3 files.", r.Summary())

	empty := &Result{Folder: "https://demos.example.com/"}
	assert.True(t, empty.Empty())
	assert.Equal(t, "Loaded 0 folders and 0 files.", empty.Summary())
}

func TestEntry_DisplayName(t *testing.T) {
	assert.Equal(t, "[DIR] 2024", NewFolder("2024", "2024/").DisplayName)
	assert.Equal(t, "a.dm2", NewFile("a.dm2", "x/a.dm2").DisplayName)
	assert.True(t, NewFolder("x", "x/").IsFolder())
	assert.False(t, NewFile("x.dm2", "x.dm2").IsFolder())
}

func TestResult_Lookup(t *testing.T) {
	r := sample()

	e, ok := r.Lookup("[DIR] beta")
	require.True(t, ok)
	assert.Equal(t, KindFolder, e.Kind)

	e, ok = r.Lookup("beta")
	require.True(t, ok)
	assert.Equal(t, "beta/", e.RealID)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestResult_Lookup_LastMatchWins(t *testing.T) {
	r := &Result{Entries: []Entry{
		NewFile("dup.dm2", "a/dup.dm2"),
		NewFile("dup.dm2", "b/dup.dm2"),
	}}
	e, ok := r.Lookup("dup.dm2")
	require.True(t, ok)
	assert.Equal(t, "b/dup.dm2", e.RealID)
}

func TestResult_Filter(t *testing.T) {
	r := sample()

	tests := []struct {
		name    string
		pattern string
		want    []string
	}{
		{"empty keeps all", "", []string{"Alpha", "beta", "Alpha.mvd2", "match.mvd2.gz", "zeta.dm2"}},
		{"substring case insensitive", "ALPHA", []string{"Alpha", "Alpha.mvd2"}},
		{"substring matches dir marker", "[dir]", []string{"Alpha", "beta"}},
		{"glob extension", "*.dm2", []string{"zeta.dm2"}},
		{"glob matches folder by name", "b*", []string{"beta"}},
		{"no match", "nothing", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Filter(tt.pattern)
			assert.Equal(t, r.Folder, got.Folder)
			if tt.want == nil {
				assert.Empty(t, got.Entries)
				return
			}
			assert.Equal(t, tt.want, names(got.Entries))
		})
	}
}

func TestIsAllowedFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"a.dm2", true},
		{"a.DM2", true},
		{"a.mvd2", true},
		{"a.mvd2.gz", true},
		{"a.GZ", true},
		{"a.zip", false},
		{"readme.txt", false},
		{"dm2", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAllowedFile(tt.name))
		})
	}
	assert.Equal(t, 3, AllowedExtensions.Cardinality())
}

func TestDetectProtocol(t *testing.T) {
	assert.Equal(t, ProtocolS3, DetectProtocol("https://aq2-demos.s3.amazonaws.com/", ""))
	assert.Equal(t, ProtocolS3, DetectProtocol("https://AQ2-DEMOS.S3.AMAZONAWS.COM/", ""))
	assert.Equal(t, ProtocolHTTP, DetectProtocol("https://demos.example.com/aq/", ""))
	assert.Equal(t, ProtocolS3, DetectProtocol("http://127.0.0.1:9000/bucket/", "127.0.0.1:9000"))
}

func TestParseProtocol(t *testing.T) {
	p, err := ParseProtocol("S3")
	require.NoError(t, err)
	assert.Equal(t, ProtocolS3, p)

	p, err = ParseProtocol("https")
	require.NoError(t, err)
	assert.Equal(t, ProtocolHTTP, p)

	p, err = ParseProtocol("")
	require.NoError(t, err)
	assert.Equal(t, Protocol(""), p)

	_, err = ParseProtocol("ftp")
	assert.Error(t, err)
}

func TestErrors(t *testing.T) {
	cause := errors.New("connection refused")
	err := FetchError("list", ProtocolHTTP, "https://demos.example.com/", cause)

	assert.True(t, IsFetch(err))
	assert.False(t, IsNavigationBlocked(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Contains(t, err.Error(), "http list")

	var le *Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "https://demos.example.com/", le.URL)

	blocked := &Error{Op: "browse", URL: "https://evil/", Err: ErrNavigationBlocked}
	assert.True(t, IsNavigationBlocked(blocked))
	assert.Equal(t, "browse: https://evil/: navigation blocked: target outside root", blocked.Error())

	assert.True(t, IsHistoryEmpty(ErrHistoryEmpty))
	assert.True(t, IsFetch(FetchError("list", ProtocolS3, "u", nil)))
}

func TestClone_Independent(t *testing.T) {
	r := sample()
	c := r.Clone()
	c.Entries[0].LocallyPresent = true
	assert.False(t, r.Entries[0].LocallyPresent)
	assert.Nil(t, (*Result)(nil).Clone())
}

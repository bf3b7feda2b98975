package presence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/demolauncher/pkg/listing"
)

func TestAnnotate_FlipsAfterFileAppears(t *testing.T) {
	dir := t.TempDir()
	res := &listing.Result{
		Folder: "https://demos.example.com/aq/",
		Entries: []listing.Entry{
			listing.NewFolder("demo1.dm2", "demo1.dm2/"),
			listing.NewFile("demo1.dm2", "2024/demo1.dm2"),
		},
	}

	first := Annotate(res, dir)
	assert.False(t, first.Entries[1].LocallyPresent)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "demo1.dm2"), []byte("x"), 0o644))

	second := Annotate(res, dir)
	assert.True(t, second.Entries[1].LocallyPresent)
	assert.False(t, second.Entries[0].LocallyPresent, "folders untouched")
	assert.False(t, res.Entries[1].LocallyPresent, "input not mutated")
}

func TestAnnotate_LiteralNameOnly(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "demo1.dm2.part"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "demo2.dm2"), 0o755))

	res := &listing.Result{Entries: []listing.Entry{
		listing.NewFile("demo1.dm2", "demo1.dm2"),
		listing.NewFile("demo2.dm2", "demo2.dm2"),
	}}
	out := Annotate(res, dir)
	assert.False(t, out.Entries[0].LocallyPresent, "partial download is not present")
	assert.False(t, out.Entries[1].LocallyPresent, "directory is not present")
}

func TestIsPresent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.mvd2"), nil, 0o644))

	assert.True(t, IsPresent(dir, "demos/aqtion/a.mvd2"))
	assert.True(t, IsPresent(dir, "a.mvd2?download=1"))
	assert.False(t, IsPresent(dir, "b.mvd2"))
	assert.False(t, IsPresent("", "a.mvd2"))
	assert.False(t, IsPresent(dir, ""))
	assert.False(t, IsPresent(dir, ".."))
}

func TestLocalName(t *testing.T) {
	assert.Equal(t, "c.dm2", LocalName("a/b/c.dm2"))
	assert.Equal(t, "c.dm2", LocalName("c.dm2"))
	assert.Equal(t, "c.dm2", LocalName("/a/c.dm2#frag"))
	assert.Equal(t, "evil.dm2", LocalName(`a/..\..\evil.dm2`))
	assert.Equal(t, "..", LocalName("a/.."))
	assert.Equal(t, "", LocalName(""))
}

func TestAnnotate_Nil(t *testing.T) {
	assert.Nil(t, Annotate(nil, t.TempDir()))
}

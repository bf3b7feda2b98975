// Package presence marks listed demo files that already exist in the local
// download directory.
package presence

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/3leaps/demolauncher/pkg/listing"
	"github.com/3leaps/demolauncher/pkg/urlpath"
)

// LocalName returns the local file name for a remote identifier: its final
// path segment. Both "/" and "\\" separate segments, whatever the host OS.
func LocalName(realID string) string {
	p := strings.TrimRight(urlpath.StripQuery(realID), `/\`)
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		p = p[i+1:]
	}
	return p
}

// Annotate returns a copy of result with LocallyPresent set on every file
// entry. A file is present when a regular file with the same name exists in
// dir at call time. Folder entries are copied unchanged. Nothing is cached.
func Annotate(result *listing.Result, dir string) *listing.Result {
	out := result.Clone()
	if out == nil {
		return nil
	}
	for i := range out.Entries {
		e := &out.Entries[i]
		if e.Kind != listing.KindFile {
			continue
		}
		e.LocallyPresent = IsPresent(dir, e.RealID)
	}
	return out
}

// IsPresent reports whether the file for realID exists in dir.
func IsPresent(dir, realID string) bool {
	if dir == "" {
		return false
	}
	name := LocalName(realID)
	if name == "" || name == "." || name == ".." {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, name))
	return err == nil && info.Mode().IsRegular()
}

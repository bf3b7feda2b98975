package listing

import (
	"path"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// AllowedExtensions holds the lowercased file extensions that are listed as
// playable demos. Everything else is hidden.
var AllowedExtensions = mapset.NewThreadUnsafeSet(".gz", ".mvd2", ".dm2")

// IsAllowedFile reports whether name carries one of AllowedExtensions,
// compared case-insensitively.
func IsAllowedFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return false
	}
	return AllowedExtensions.Contains(ext)
}

// Package urlpath provides URL joining and root-containment helpers for
// remote demo folders.
//
// All navigation targets are absolute URLs. IsInsideRoot is the single
// authorization gate: callers must check it before issuing any request for a
// folder, regardless of which listing protocol serves that folder.
package urlpath

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// EnsureTrailingSlash returns s with exactly one trailing slash appended when
// it does not already end in one.
func EnsureTrailingSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

// CombineURL resolves relative against base using RFC 3986 reference
// resolution.
//
// base is treated as a folder: a trailing slash is added before resolution so
// that "https://host/demos" + "x.dm2" yields "https://host/demos/x.dm2" rather
// than replacing the last segment.
func CombineURL(base, relative string) (string, error) {
	b, err := url.Parse(EnsureTrailingSlash(base))
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", base, err)
	}
	r, err := url.Parse(relative)
	if err != nil {
		return "", fmt.Errorf("parse relative url %q: %w", relative, err)
	}
	return b.ResolveReference(r).String(), nil
}

// IsInsideRoot reports whether candidate lies within root.
//
// candidate is normalized with Normalize first, so dot segments cannot climb
// out of root. The comparison is then a case-insensitive prefix match against
// root normalized to end with "/": root itself (with trailing slash) is
// inside, while a sibling such as "https://host/demos2/" is not inside
// "https://host/demos".
func IsInsideRoot(candidate, root string) bool {
	if root == "" {
		return false
	}
	clean, err := Normalize(candidate)
	if err != nil {
		return false
	}
	return hasPrefixFold(clean, EnsureTrailingSlash(root))
}

// Normalize removes "." and ".." path segments from rawURL, including
// percent-encoded ones and segments separated by backslashes. A URL without
// dot segments is returned unchanged. A trailing slash is kept.
//
//	Normalize("https://h/demos/../private/") == "https://h/private/"
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if !hasDotSegment(u.Path) {
		return rawURL, nil
	}

	p := strings.ReplaceAll(u.Path, "\\", "/")
	folder := strings.HasSuffix(p, "/") || strings.HasSuffix(p, "/.") || strings.HasSuffix(p, "/..")
	p = path.Clean("/" + p)
	if folder && p != "/" {
		p += "/"
	}
	u.Path = p
	u.RawPath = ""
	return u.String(), nil
}

// hasDotSegment reports whether the decoded path p contains a "." or ".."
// segment.
func hasDotSegment(p string) bool {
	segs := strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' })
	for _, s := range segs {
		if s == "." || s == ".." {
			return true
		}
	}
	return false
}

// TrimRootPrefix strips root (case-insensitive) from candidate. If candidate
// does not start with root it is returned unchanged.
func TrimRootPrefix(candidate, root string) string {
	if hasPrefixFold(candidate, root) {
		return candidate[len(root):]
	}
	return candidate
}

// LastSegment returns the final path segment of p, ignoring a trailing slash.
//
//	LastSegment("a/b/")      == "b"
//	LastSegment("a/b/c.dm2") == "c.dm2"
func LastSegment(p string) string {
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// Breadcrumb renders current relative to root as "Root" or
// "Root / seg1 / seg2".
func Breadcrumb(current, root string) string {
	rel := strings.Trim(TrimRootPrefix(EnsureTrailingSlash(current), EnsureTrailingSlash(root)), "/")
	var segs []string
	for _, s := range strings.Split(rel, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	if len(segs) == 0 {
		return "Root"
	}
	return "Root / " + strings.Join(segs, " / ")
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// StripQuery drops any query string or fragment from a link.
func StripQuery(link string) string {
	if i := strings.IndexAny(link, "?#"); i >= 0 {
		return link[:i]
	}
	return link
}

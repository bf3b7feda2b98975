package listing

import (
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/text/cases"
)

// SortEntries orders entries in place: folders before files, each group
// ascending by case-folded name, ties broken by the raw name.
func SortEntries(entries []Entry) {
	sortEntries(entries, false)
}

func sortEntries(entries []Entry, descending bool) {
	fold := cases.Fold()
	keys := make(map[string]string, len(entries))
	key := func(s string) string {
		k, ok := keys[s]
		if !ok {
			k = fold.String(s)
			keys[s] = k
		}
		return k
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Kind != b.Kind {
			return a.Kind == KindFolder
		}
		ka, kb := key(a.Name), key(b.Name)
		if ka == kb {
			if descending {
				return a.Name > b.Name
			}
			return a.Name < b.Name
		}
		if descending {
			return ka > kb
		}
		return ka < kb
	})
}

// Sorted returns a copy of r ordered ascending or descending. Folders stay
// ahead of files in both directions.
func (r *Result) Sorted(descending bool) *Result {
	out := r.Clone()
	sortEntries(out.Entries, descending)
	return out
}

const globMeta = "*?"

// Filter returns a copy of r holding only entries whose display name matches
// pattern. A plain pattern is a case-insensitive substring match; a pattern
// containing glob metacharacters is matched with doublestar against the
// lowercased display name. An empty pattern keeps everything.
func (r *Result) Filter(pattern string) *Result {
	out := &Result{Folder: r.Folder}
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return r.Clone()
	}

	lower := strings.ToLower(pattern)
	glob := strings.ContainsAny(lower, globMeta) && doublestar.ValidatePattern(lower)

	for _, e := range r.Entries {
		name := strings.ToLower(e.DisplayName)
		var keep bool
		if glob {
			keep, _ = doublestar.Match(lower, name)
			if !keep && e.IsFolder() {
				keep, _ = doublestar.Match(lower, strings.ToLower(e.Name))
			}
		} else {
			keep = strings.Contains(name, lower)
		}
		if keep {
			out.Entries = append(out.Entries, e)
		}
	}
	return out
}

// Package listing defines the shared model for remote demo folder listings.
//
// A listing is produced by a Lister. Two variants exist: httpindex scrapes
// auto-generated HTML index pages, and s3 pages through ListObjectsV2 with a
// "/" delimiter. Both return the same Result shape so navigation stays
// protocol-agnostic.
package listing

import (
	"context"
	"fmt"
	"strings"
)

// Protocol identifies how a source is listed.
type Protocol string

const (
	// ProtocolHTTP lists folders by scraping HTML directory index pages.
	ProtocolHTTP Protocol = "http"

	// ProtocolS3 lists folders with the S3 ListObjectsV2 API.
	ProtocolS3 Protocol = "s3"
)

// ParseProtocol converts a configured protocol name. An empty string yields
// an empty Protocol, meaning "detect from URL".
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "http", "https":
		return ProtocolHTTP, nil
	case "s3":
		return ProtocolS3, nil
	default:
		return "", fmt.Errorf("unknown listing protocol %q", s)
	}
}

// DefaultS3HostMarker is the substring that marks a source URL as an S3
// bucket listing.
const DefaultS3HostMarker = "s3.amazonaws.com"

// DetectProtocol returns ProtocolS3 when rawURL contains marker, otherwise
// ProtocolHTTP. An empty marker falls back to DefaultS3HostMarker.
func DetectProtocol(rawURL, marker string) Protocol {
	if marker == "" {
		marker = DefaultS3HostMarker
	}
	if strings.Contains(strings.ToLower(rawURL), strings.ToLower(marker)) {
		return ProtocolS3
	}
	return ProtocolHTTP
}

// Kind distinguishes folders from files.
type Kind int

const (
	KindFolder Kind = iota
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// FolderPrefix is prepended to folder names to build their display name.
const FolderPrefix = "[DIR] "

// Entry is one listed item.
type Entry struct {
	Kind Kind `json:"-" yaml:"-"`

	// Name is the bare folder or file name.
	Name string `json:"name" yaml:"name"`

	// DisplayName is what a user selects: "[DIR] name" for folders, the
	// name itself for files.
	DisplayName string `json:"display_name" yaml:"display_name"`

	// RealID is the relative href (HTTP) or the full object key (S3).
	RealID string `json:"real_id" yaml:"real_id"`

	// LocallyPresent is only meaningful for files.
	LocallyPresent bool `json:"locally_present,omitempty" yaml:"locally_present,omitempty"`
}

// NewFolder returns a folder entry.
func NewFolder(name, realID string) Entry {
	return Entry{Kind: KindFolder, Name: name, DisplayName: FolderPrefix + name, RealID: realID}
}

// NewFile returns a file entry.
func NewFile(name, realID string) Entry {
	return Entry{Kind: KindFile, Name: name, DisplayName: name, RealID: realID}
}

// IsFolder reports whether e is a folder.
func (e Entry) IsFolder() bool { return e.Kind == KindFolder }

// Result is the outcome of listing one folder.
type Result struct {
	// Folder is the absolute URL of the listed folder, ending in "/".
	Folder string `json:"folder" yaml:"folder"`

	// Entries holds folders first, then files, each group sorted.
	Entries []Entry `json:"entries" yaml:"entries"`
}

// Folders returns the folder entries in order.
func (r *Result) Folders() []Entry { return r.byKind(KindFolder) }

// Files returns the file entries in order.
func (r *Result) Files() []Entry { return r.byKind(KindFile) }

func (r *Result) byKind(k Kind) []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

// FolderCount returns the number of folder entries.
func (r *Result) FolderCount() int { return len(r.Folders()) }

// FileCount returns the number of file entries.
func (r *Result) FileCount() int { return len(r.Files()) }

// Empty reports whether the listing has no entries. An empty listing is a
// valid result, not an error.
func (r *Result) Empty() bool { return len(r.Entries) == 0 }

// Summary returns the human status line for the listing.
func (r *Result) Summary() string {
	return fmt.Sprintf("Loaded %d folders and %d files.", r.FolderCount(), r.FileCount())
}

// Lookup finds an entry by display name or bare name. Display names are not
// guaranteed unique; the last matching entry wins.
func (r *Result) Lookup(name string) (Entry, bool) {
	var (
		found Entry
		ok    bool
	)
	for _, e := range r.Entries {
		if e.DisplayName == name || e.Name == name {
			found, ok = e, true
		}
	}
	return found, ok
}

// Clone returns a deep copy of r.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	out := &Result{Folder: r.Folder}
	if r.Entries != nil {
		out.Entries = make([]Entry, len(r.Entries))
		copy(out.Entries, r.Entries)
	}
	return out
}

// Lister lists remote folders for one protocol.
//
// Implementations must not retry and must not check root containment; the
// navigator does that before calling List.
type Lister interface {
	// List fetches and parses the folder at folderURL.
	List(ctx context.Context, folderURL string) (*Result, error)

	// ChildURL returns the absolute URL of a folder entry listed in folderURL.
	ChildURL(folderURL string, e Entry) (string, error)

	// FileURL returns the absolute download URL of a file entry listed in
	// folderURL.
	FileURL(folderURL string, e Entry) (string, error)

	// Protocol returns the protocol this lister serves.
	Protocol() Protocol
}

package s3

import (
	"context"
	"fmt"

	"github.com/3leaps/demolauncher/pkg/listing"
	"github.com/3leaps/demolauncher/pkg/urlpath"
)

// Buckets routes listing calls to the Lister whose bucket root contains the
// folder, so sources in different buckets share one protocol slot.
type Buckets struct {
	listers []*Lister
}

var _ listing.Lister = (*Buckets)(nil)

// NewBuckets returns a router over listers. Later listers with an already
// known bucket root are ignored.
func NewBuckets(listers ...*Lister) *Buckets {
	b := &Buckets{}
	for _, l := range listers {
		b.Add(l)
	}
	return b
}

// Add registers l unless a lister for the same bucket root exists.
func (b *Buckets) Add(l *Lister) {
	if b.Has(l.BucketRoot()) {
		return
	}
	b.listers = append(b.listers, l)
}

// Has reports whether a lister serves bucketRoot.
func (b *Buckets) Has(bucketRoot string) bool {
	bucketRoot = urlpath.EnsureTrailingSlash(bucketRoot)
	for _, l := range b.listers {
		if l.BucketRoot() == bucketRoot {
			return true
		}
	}
	return false
}

// Len returns the number of buckets.
func (b *Buckets) Len() int { return len(b.listers) }

// For returns the lister for folderURL. The longest matching bucket root
// wins.
func (b *Buckets) For(folderURL string) (*Lister, error) {
	folderURL = urlpath.EnsureTrailingSlash(folderURL)
	var best *Lister
	for _, l := range b.listers {
		if !urlpath.IsInsideRoot(folderURL, l.BucketRoot()) {
			continue
		}
		if best == nil || len(l.BucketRoot()) > len(best.BucketRoot()) {
			best = l
		}
	}
	if best == nil {
		return nil, listing.FetchError("list", listing.ProtocolS3, folderURL,
			fmt.Errorf("no bucket configured for %s", folderURL))
	}
	return best, nil
}

// Protocol returns listing.ProtocolS3.
func (b *Buckets) Protocol() listing.Protocol { return listing.ProtocolS3 }

// List lists folderURL through its bucket's lister.
func (b *Buckets) List(ctx context.Context, folderURL string) (*listing.Result, error) {
	l, err := b.For(folderURL)
	if err != nil {
		return nil, err
	}
	return l.List(ctx, folderURL)
}

// ChildURL resolves a folder entry of folderURL.
func (b *Buckets) ChildURL(folderURL string, e listing.Entry) (string, error) {
	l, err := b.For(folderURL)
	if err != nil {
		return "", err
	}
	return l.ChildURL(folderURL, e)
}

// FileURL resolves a file entry of folderURL.
func (b *Buckets) FileURL(folderURL string, e listing.Entry) (string, error) {
	l, err := b.For(folderURL)
	if err != nil {
		return "", err
	}
	return l.FileURL(folderURL, e)
}

// Package httpindex lists remote folders by scraping auto-generated HTML
// directory index pages (Apache, nginx autoindex, h5ai and similar).
package httpindex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/3leaps/demolauncher/pkg/listing"
	"github.com/3leaps/demolauncher/pkg/urlpath"
)

// DefaultDenylist holds link substrings emitted by index generators that
// never point at demo content.
var DefaultDenylist = []string{"browsehappy.com", "larsjung.de/h5ai"}

// DefaultUserAgent is sent when Config.UserAgent is empty.
const DefaultUserAgent = "demolauncher"

// maxIndexBytes caps how much of an index page is read.
const maxIndexBytes = 16 << 20

// Config configures an HTTP index lister.
type Config struct {
	// HTTPClient performs requests. Defaults to a client with a 30s timeout.
	HTTPClient *http.Client

	// UserAgent is sent on every request.
	UserAgent string

	// Denylist overrides DefaultDenylist when non-nil.
	Denylist []string

	// Logger receives debug output. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Lister implements listing.Lister for HTML directory indexes.
type Lister struct {
	client    *http.Client
	userAgent string
	denylist  []string
	logger    *zap.Logger
}

// New creates an HTTP index lister.
func New(cfg Config) *Lister {
	l := &Lister{
		client:    cfg.HTTPClient,
		userAgent: cfg.UserAgent,
		denylist:  cfg.Denylist,
		logger:    cfg.Logger,
	}
	if l.client == nil {
		l.client = &http.Client{Timeout: 30 * time.Second}
	}
	if l.userAgent == "" {
		l.userAgent = DefaultUserAgent
	}
	if l.denylist == nil {
		l.denylist = DefaultDenylist
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	return l
}

// Protocol returns listing.ProtocolHTTP.
func (l *Lister) Protocol() listing.Protocol { return listing.ProtocolHTTP }

// List fetches folderURL and classifies its links into folders and demo
// files. A page without usable links yields an empty result.
func (l *Lister) List(ctx context.Context, folderURL string) (*listing.Result, error) {
	folderURL = urlpath.EnsureTrailingSlash(folderURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, folderURL, nil)
	if err != nil {
		return nil, listing.FetchError("list", listing.ProtocolHTTP, folderURL, err)
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, listing.FetchError("list", listing.ProtocolHTTP, folderURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, listing.FetchError("list", listing.ProtocolHTTP, folderURL,
			fmt.Errorf("unexpected status %s", resp.Status))
	}

	hrefs, err := ExtractLinks(io.LimitReader(resp.Body, maxIndexBytes))
	if err != nil {
		return nil, listing.FetchError("list", listing.ProtocolHTTP, folderURL, err)
	}

	result := &listing.Result{Folder: folderURL, Entries: l.Classify(hrefs)}
	l.logger.Debug("listed http folder",
		zap.String("folder", folderURL),
		zap.Int("links", len(hrefs)),
		zap.Int("folders", result.FolderCount()),
		zap.Int("files", result.FileCount()),
	)
	return result, nil
}

// Classify turns raw href values into sorted entries, discarding navigation
// markers, absolute links, denylisted links and non-demo files.
func (l *Lister) Classify(hrefs []string) []listing.Entry {
	var entries []listing.Entry
	for _, href := range hrefs {
		if l.skip(href) {
			continue
		}
		if strings.HasSuffix(href, "/") {
			name := urlpath.LastSegment(href)
			if name == "" {
				continue
			}
			entries = append(entries, listing.NewFolder(name, href))
			continue
		}
		name := urlpath.LastSegment(urlpath.StripQuery(href))
		if !listing.IsAllowedFile(name) {
			continue
		}
		entries = append(entries, listing.NewFile(name, href))
	}
	listing.SortEntries(entries)
	return entries
}

func (l *Lister) skip(href string) bool {
	switch href {
	case "", "../", "..", "./", ".":
		return true
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return true
	}
	for _, deny := range l.denylist {
		if deny != "" && strings.Contains(lower, strings.ToLower(deny)) {
			return true
		}
	}
	return false
}

// ChildURL resolves a folder entry against folderURL.
func (l *Lister) ChildURL(folderURL string, e listing.Entry) (string, error) {
	if !e.IsFolder() {
		return "", listing.ErrNotAFolder
	}
	return urlpath.CombineURL(folderURL, e.RealID)
}

// FileURL resolves a file entry against folderURL.
func (l *Lister) FileURL(folderURL string, e listing.Entry) (string, error) {
	return urlpath.CombineURL(folderURL, e.RealID)
}

// ExtractLinks returns every <a href> value in document order.
func ExtractLinks(r io.Reader) ([]string, error) {
	z := html.NewTokenizer(r)
	var hrefs []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return hrefs, nil
			}
			return nil, fmt.Errorf("parse index: %w", z.Err())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "a" || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "href" {
					hrefs = append(hrefs, strings.TrimSpace(string(val)))
				}
				if !more {
					break
				}
			}
		}
	}
}

// Package navigator holds the browsing session over remote demo sources.
//
// A Navigator owns one NavigationState: the selected source, its root, the
// current folder and the back history. Every operation takes the session
// lock, so at most one Browse, Descend or Back is in flight at a time. An
// operation that fails leaves the state exactly as it was.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/3leaps/demolauncher/pkg/download"
	"github.com/3leaps/demolauncher/pkg/listing"
	"github.com/3leaps/demolauncher/pkg/presence"
	"github.com/3leaps/demolauncher/pkg/urlpath"
)

var (
	// ErrNoSource indicates an operation that needs a selected source ran
	// before SelectSource.
	ErrNoSource = errors.New("no source selected")

	// ErrUnknownSource indicates SelectSource was given an unknown name.
	ErrUnknownSource = errors.New("unknown source")
)

// Source is a named remote root.
type Source struct {
	Name     string           `json:"name" yaml:"name"`
	URL      string           `json:"url" yaml:"url"`
	Protocol listing.Protocol `json:"protocol" yaml:"protocol"`
}

// State is a snapshot of the browsing session.
type State struct {
	Source     string   `json:"source" yaml:"source"`
	Root       string   `json:"root" yaml:"root"`
	Current    string   `json:"current" yaml:"current"`
	History    []string `json:"history" yaml:"history"`
	Breadcrumb string   `json:"breadcrumb" yaml:"breadcrumb"`
}

// DownloadTarget pairs a remote file with its local destination.
type DownloadTarget struct {
	Name      string `json:"name" yaml:"name"`
	URL       string `json:"url" yaml:"url"`
	LocalPath string `json:"local_path" yaml:"local_path"`
}

// Option configures a Navigator.
type Option func(*Navigator)

// WithDownloadDir sets the local directory used for presence checks and
// download targets.
func WithDownloadDir(dir string) Option {
	return func(n *Navigator) { n.downloadDir = dir }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(n *Navigator) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithS3HostMarker sets the URL substring that marks a source as S3 when its
// protocol is not configured explicitly.
func WithS3HostMarker(marker string) Option {
	return func(n *Navigator) { n.hostMarker = marker }
}

// Navigator is a serialized browsing session.
type Navigator struct {
	mu sync.Mutex

	sources     []Source
	listers     map[listing.Protocol]listing.Lister
	downloadDir string
	hostMarker  string
	logger      *zap.Logger
	sessionID   string

	state  State
	lister listing.Lister
	last   *listing.Result
}

// New creates a Navigator over sources. Every source protocol must have a
// lister. Sources without an explicit protocol are detected from their URL.
func New(sources []Source, listers map[listing.Protocol]listing.Lister, opts ...Option) (*Navigator, error) {
	n := &Navigator{
		listers:   listers,
		logger:    zap.NewNop(),
		sessionID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(n)
	}

	seen := make(map[string]bool, len(sources))
	for _, s := range sources {
		if s.Name == "" || s.URL == "" {
			return nil, fmt.Errorf("source %q: name and url are required", s.Name)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("source %q: duplicate name", s.Name)
		}
		seen[s.Name] = true

		s.URL = urlpath.EnsureTrailingSlash(strings.TrimSpace(s.URL))
		if s.Protocol == "" {
			s.Protocol = listing.DetectProtocol(s.URL, n.hostMarker)
		}
		if _, ok := listers[s.Protocol]; !ok {
			return nil, fmt.Errorf("source %q: no lister for protocol %s", s.Name, s.Protocol)
		}
		n.sources = append(n.sources, s)
	}

	n.logger = n.logger.With(zap.String("session_id", n.sessionID))
	return n, nil
}

// SessionID identifies this browsing session in logs and records.
func (n *Navigator) SessionID() string { return n.sessionID }

// DownloadDir returns the configured local download directory.
func (n *Navigator) DownloadDir() string { return n.downloadDir }

// Sources returns the configured sources in order.
func (n *Navigator) Sources() []Source {
	out := make([]Source, len(n.sources))
	copy(out, n.sources)
	return out
}

// Source returns the named source.
func (n *Navigator) Source(name string) (Source, bool) {
	for _, s := range n.sources {
		if s.Name == name {
			return s, true
		}
	}
	return Source{}, false
}

// State returns a snapshot of the session.
func (n *Navigator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.snapshot()
}

func (n *Navigator) snapshot() State {
	st := n.state
	st.History = append([]string(nil), n.state.History...)
	return st
}

// CanGoBack reports whether Back has somewhere to go.
func (n *Navigator) CanGoBack() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.state.History) > 0
}

// Listing returns the most recent successful listing, or nil.
func (n *Navigator) Listing() *listing.Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last.Clone()
}

// SelectSource makes name the active source, resets root, current folder
// and history, then lists the root. The source stays selected even if the
// root listing fails.
func (n *Navigator) SelectSource(ctx context.Context, name string) (*listing.Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	src, ok := n.Source(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}

	n.state = State{
		Source:     src.Name,
		Root:       src.URL,
		Current:    src.URL,
		Breadcrumb: urlpath.Breadcrumb(src.URL, src.URL),
	}
	n.lister = n.listers[src.Protocol]
	n.last = nil

	n.logger.Info("source selected",
		zap.String("source", src.Name),
		zap.String("root", src.URL),
		zap.String("protocol", string(src.Protocol)),
	)
	return n.browse(ctx, src.URL)
}

// Browse lists folderURL. It fails with listing.ErrNavigationBlocked, before
// any request is made, when folderURL is outside the source root.
func (n *Navigator) Browse(ctx context.Context, folderURL string) (*listing.Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.browse(ctx, folderURL)
}

func (n *Navigator) browse(ctx context.Context, folderURL string) (*listing.Result, error) {
	if n.lister == nil {
		return nil, ErrNoSource
	}
	target, err := urlpath.Normalize(folderURL)
	if err != nil || !urlpath.IsInsideRoot(target, n.state.Root) {
		n.logger.Warn("navigation blocked",
			zap.String("target", folderURL),
			zap.String("root", n.state.Root),
		)
		return nil, &listing.Error{Op: "browse", Protocol: n.lister.Protocol(), URL: folderURL, Err: listing.ErrNavigationBlocked}
	}
	folderURL = target

	result, err := n.lister.List(ctx, folderURL)
	if err != nil {
		n.logger.Warn("listing failed", zap.String("folder", folderURL), zap.Error(err))
		return nil, err
	}
	if !urlpath.IsInsideRoot(result.Folder, n.state.Root) {
		return nil, &listing.Error{Op: "browse", Protocol: n.lister.Protocol(), URL: result.Folder, Err: listing.ErrNavigationBlocked}
	}

	annotated := presence.Annotate(result, n.downloadDir)
	n.state.Current = annotated.Folder
	n.state.Breadcrumb = urlpath.Breadcrumb(annotated.Folder, n.state.Root)
	n.last = annotated

	n.logger.Debug("folder loaded",
		zap.String("folder", annotated.Folder),
		zap.String("breadcrumb", n.state.Breadcrumb),
		zap.Int("folders", annotated.FolderCount()),
		zap.Int("files", annotated.FileCount()),
	)
	return annotated.Clone(), nil
}

// Descend lists the child folder e of the current folder and pushes the
// current folder onto the history.
func (n *Navigator) Descend(ctx context.Context, e listing.Entry) (*listing.Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.descend(ctx, e)
}

// DescendByName resolves name (display name or bare name) in the current
// listing and descends into it.
func (n *Navigator) DescendByName(ctx context.Context, name string) (*listing.Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	e, err := n.lookup(name)
	if err != nil {
		return nil, err
	}
	return n.descend(ctx, e)
}

func (n *Navigator) descend(ctx context.Context, e listing.Entry) (*listing.Result, error) {
	if n.lister == nil {
		return nil, ErrNoSource
	}
	if !e.IsFolder() {
		return nil, &listing.Error{Op: "descend", Protocol: n.lister.Protocol(), URL: e.DisplayName, Err: listing.ErrNotAFolder}
	}

	child, err := n.lister.ChildURL(n.state.Current, e)
	if err != nil {
		return nil, &listing.Error{Op: "descend", Protocol: n.lister.Protocol(), URL: e.RealID, Err: err}
	}

	prev := n.state.Current
	result, err := n.browse(ctx, child)
	if err != nil {
		return nil, err
	}
	n.state.History = append(n.state.History, prev)
	return result, nil
}

// Back lists the most recently visited folder. With an empty history it
// returns listing.ErrHistoryEmpty and does nothing. A history entry that is
// no longer inside the root clears the history and returns to the root.
func (n *Navigator) Back(ctx context.Context) (*listing.Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.lister == nil {
		return nil, ErrNoSource
	}
	if len(n.state.History) == 0 {
		return nil, listing.ErrHistoryEmpty
	}

	top := n.state.History[len(n.state.History)-1]
	if !urlpath.IsInsideRoot(top, n.state.Root) {
		n.logger.Warn("history entry outside root, resetting",
			zap.String("entry", top),
			zap.String("root", n.state.Root),
		)
		n.state.History = nil
		return n.browse(ctx, n.state.Root)
	}

	result, err := n.browse(ctx, top)
	if err != nil {
		return nil, err
	}
	n.state.History = n.state.History[:len(n.state.History)-1]
	return result, nil
}

// Home lists the source root and clears the history, as SelectSource does.
// On failure the state is unchanged.
func (n *Navigator) Home(ctx context.Context) (*listing.Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.lister == nil {
		return nil, ErrNoSource
	}
	result, err := n.browse(ctx, n.state.Root)
	if err != nil {
		return nil, err
	}
	n.state.History = nil
	return result, nil
}

// Refresh lists the current folder again.
func (n *Navigator) Refresh(ctx context.Context) (*listing.Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.lister == nil {
		return nil, ErrNoSource
	}
	return n.browse(ctx, n.state.Current)
}

// Lookup finds an entry in the current listing by display name or bare name.
func (n *Navigator) Lookup(name string) (listing.Entry, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lookup(name)
}

func (n *Navigator) lookup(name string) (listing.Entry, error) {
	if n.last == nil {
		return listing.Entry{}, fmt.Errorf("%w: %s", listing.ErrEntryNotFound, name)
	}
	e, ok := n.last.Lookup(name)
	if !ok {
		return listing.Entry{}, fmt.Errorf("%w: %s", listing.ErrEntryNotFound, name)
	}
	return e, nil
}

// ResolveFile returns the remote URL and local path for file entry e of the
// current folder.
func (n *Navigator) ResolveFile(e listing.Entry) (DownloadTarget, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.resolveFile(e)
}

// ResolveFileByName resolves name in the current listing, then ResolveFile.
func (n *Navigator) ResolveFileByName(name string) (DownloadTarget, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	e, err := n.lookup(name)
	if err != nil {
		return DownloadTarget{}, err
	}
	return n.resolveFile(e)
}

func (n *Navigator) resolveFile(e listing.Entry) (DownloadTarget, error) {
	if n.lister == nil {
		return DownloadTarget{}, ErrNoSource
	}
	if e.Kind != listing.KindFile {
		return DownloadTarget{}, &listing.Error{Op: "resolve", Protocol: n.lister.Protocol(), URL: e.DisplayName, Err: listing.ErrNotAFile}
	}

	remote, err := n.lister.FileURL(n.state.Current, e)
	if err != nil {
		return DownloadTarget{}, &listing.Error{Op: "resolve", Protocol: n.lister.Protocol(), URL: e.RealID, Err: err}
	}

	name := presence.LocalName(e.RealID)
	local, err := download.SafeJoin(n.downloadDir, name)
	if err != nil {
		return DownloadTarget{}, &listing.Error{Op: "resolve", Protocol: n.lister.Protocol(), URL: e.RealID, Err: err}
	}
	return DownloadTarget{
		Name:      name,
		URL:       remote,
		LocalPath: local,
	}, nil
}

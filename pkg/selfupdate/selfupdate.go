// Package selfupdate checks a GitHub-style releases endpoint for a newer
// launcher version.
package selfupdate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

// DefaultUserAgent is sent with release checks.
const DefaultUserAgent = "demolauncher"

// ErrInvalidVersion indicates a version string is not semver.
var ErrInvalidVersion = errors.New("invalid version")

// Config configures a release check.
type Config struct {
	// APIURL is the releases endpoint returning the latest release JSON.
	// An empty URL disables the check.
	APIURL string

	// CurrentVersion is the running version, with or without a "v" prefix.
	CurrentVersion string

	UserAgent  string
	HTTPClient *http.Client
}

// Release is the latest published release.
type Release struct {
	Version string `json:"version" yaml:"version"`
	URL     string `json:"url" yaml:"url"`
	Newer   bool   `json:"newer" yaml:"newer"`
}

type githubRelease struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Check fetches the latest release and compares it with the current version.
// It returns nil, nil when the check is disabled.
func Check(ctx context.Context, cfg Config) (*Release, error) {
	if strings.TrimSpace(cfg.APIURL) == "" {
		return nil, nil
	}
	current, err := Canonical(cfg.CurrentVersion)
	if err != nil {
		return nil, fmt.Errorf("current version: %w", err)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.APIURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", ua)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch release: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch release: unexpected status %s", resp.Status)
	}

	var gr githubRelease
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&gr); err != nil {
		return nil, fmt.Errorf("decode release: %w", err)
	}
	latest, err := Canonical(gr.TagName)
	if err != nil {
		return nil, fmt.Errorf("release tag: %w", err)
	}

	return &Release{
		Version: strings.TrimPrefix(latest, "v"),
		URL:     gr.HTMLURL,
		Newer:   semver.Compare(latest, current) > 0,
	}, nil
}

// Canonical normalizes v to "vMAJOR.MINOR.PATCH[-pre]" form. A missing "v"
// prefix is tolerated.
func Canonical(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidVersion)
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", fmt.Errorf("%w: %q", ErrInvalidVersion, v)
	}
	return semver.Canonical(v), nil
}

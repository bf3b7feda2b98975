// Package demo prepares downloaded demo files for playback.
package demo

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mholt/archives"
)

// GzipExt is the extension of compressed demos.
const GzipExt = ".gz"

// maxScanBytes bounds how much of a demo ExtractMapName reads.
const maxScanBytes = 64 << 20

var (
	mapsPathPattern = regexp.MustCompile(`(?i)maps/([a-zA-Z0-9_]+)`)
	bspPattern      = regexp.MustCompile(`(?i)([a-zA-Z0-9_]{3,20})\.bsp`)
)

// IsCompressed reports whether path names a gzip-compressed demo.
func IsCompressed(path string) bool {
	return strings.EqualFold(filepath.Ext(path), GzipExt)
}

// Decompress expands a .gz demo into a sibling file without the .gz suffix
// and returns that path. created is false when path is not compressed or the
// sibling already exists.
func Decompress(path string) (target string, created bool, err error) {
	if !IsCompressed(path) {
		return path, false, nil
	}
	target = path[:len(path)-len(GzipExt)]
	if _, err := os.Stat(target); err == nil {
		return target, false, nil
	}

	in, err := os.Open(path)
	if err != nil {
		return "", false, fmt.Errorf("open demo: %w", err)
	}
	defer func() { _ = in.Close() }()

	rc, err := archives.Gz{}.OpenReader(in)
	if err != nil {
		return "", false, fmt.Errorf("open gzip stream %s: %w", path, err)
	}
	defer func() { _ = rc.Close() }()

	part := target + ".part"
	out, err := os.Create(part)
	if err != nil {
		return "", false, fmt.Errorf("create %s: %w", part, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		_ = os.Remove(part)
		return "", false, fmt.Errorf("decompress %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(part)
		return "", false, fmt.Errorf("close %s: %w", part, err)
	}
	if err := os.Rename(part, target); err != nil {
		_ = os.Remove(part)
		return "", false, fmt.Errorf("rename %s: %w", part, err)
	}
	return target, true, nil
}

// ExtractMapName scans a demo for the map it was recorded on. Compressed
// demos are read through a gzip stream; nothing is written to disk. The name
// is lowercased. ok is false when no map reference is found or the file
// cannot be read.
func ExtractMapName(path string) (name string, ok bool) {
	data, err := readDemo(path)
	if err != nil {
		return "", false
	}
	return MapNameFromBytes(data)
}

// MapNameFromBytes looks for "maps/<name>" first and falls back to
// "<name>.bsp".
func MapNameFromBytes(data []byte) (string, bool) {
	if m := mapsPathPattern.FindSubmatch(data); m != nil {
		return strings.ToLower(string(m[1])), true
	}
	if m := bspPattern.FindSubmatch(data); m != nil {
		return strings.ToLower(string(m[1])), true
	}
	return "", false
}

func readDemo(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if IsCompressed(path) {
		rc, err := archives.Gz{}.OpenReader(f)
		if err != nil {
			return nil, err
		}
		defer func() { _ = rc.Close() }()
		r = rc
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(r, maxScanBytes)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PlayCommand returns the engine command that plays demoFile: "+demo" for
// .dm2 recordings and "+mvdplay" for everything else.
func PlayCommand(demoFile string) string {
	if strings.EqualFold(filepath.Ext(demoFile), ".dm2") {
		return "+demo"
	}
	return "+mvdplay"
}

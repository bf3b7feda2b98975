// Package configassets provides the embedded default configuration so the
// CLI works without any config file on disk.
package configassets

import _ "embed"

// DefaultConfig is the embedded defaults.yaml. User config files, environment
// variables and runtime overrides are layered on top of it.
//
//go:embed defaults.yaml
var DefaultConfig []byte

// AppIdentity is the embedded app.yaml naming the binary, its config file and
// its environment variable prefix.
//
//go:embed app.yaml
var AppIdentity []byte

// Package configassets provides the embedded default configuration.
//
// Defaults are embedded at compile time so installed binaries behave the
// same regardless of working directory.
package configassets

import _ "embed"

// Defaults is the embedded default configuration in YAML.
//
//go:embed defaults.yaml
var Defaults []byte

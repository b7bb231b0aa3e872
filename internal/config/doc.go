// Package config implements the configuration store for the CAT Control
// Container.
//
// Configuration is resolved in three layers: built-in baseline defaults,
// an optional YAML file, and CCC_* environment variable overrides. The
// merged result is validated before the container starts; an invalid
// configuration is a startup failure, never a silent fallback.
package config

// Package config loads, normalizes, and validates Loom configuration.
//
// Configuration is TOML, located at ~/.config/loom/config.toml or a
// project-local loom.toml, with defaults applied for every omitted value.
// Path fields are tilde-expanded and made absolute during Load.
package config

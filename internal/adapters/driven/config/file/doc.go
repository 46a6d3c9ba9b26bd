// Package file provides file-backed configuration for graphloom.
//
// Adapters:
//   - ConfigStore: TOML settings at ~/.graphloom/config.toml, addressed by dot keys
//   - Watcher: reloads a ConfigStore when its file changes on disk
package file

// Package file provides the TOML-backed configuration store.
//
// The file lives at ~/.catalog-sync/config.toml unless another directory
// is given. Nested tables are exposed as dot-notation keys, so
//
//	[catalog]
//	base_url = "https://records.example.org/api"
//
// is read with GetString("catalog.base_url").
//
// Watcher reports edits to the file so long-running commands can reload.
package file

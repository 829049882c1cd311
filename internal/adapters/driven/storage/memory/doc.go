// Package memory provides in-memory implementations of the driven store ports.
// They back tests and dry runs that should not touch the SQLite database.
package memory

// Package messagestore is the device message store consulted when an SMS
// notification only carries a truncated body.
//
// It mirrors the shape of an SMS inbox (address, body, date) and supports:
//   - "sqlite": a SQLite database file (modernc.org/sqlite, no cgo)
//   - "file":   a JSON Lines inbox dump kept in memory
//
// Lookups are exact-match on address, newest first, at most one row.
package messagestore

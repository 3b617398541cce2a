// Package history persists an archive of completed downloads in SQLite.
//
// The workflow records one entry per successful video download; the CLI
// lists and clears entries. The database lives at paths.history_db and is
// opened in WAL mode so a listing never blocks a concurrent download.
package history

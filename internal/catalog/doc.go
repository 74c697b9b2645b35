// Package catalog persists projects and their subtitle records.
//
// A project holds at most one subtitle. Regeneration replaces it wholesale
// inside one transaction; text edits rewrite the cached SRT and JSON forms in
// place and keep every timing. Writes are last-write-wins: a reader racing a
// regeneration may observe the old subtitle or no subtitle at all.
package catalog

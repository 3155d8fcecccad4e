// Package repository defines the storage abstraction for iscsidb.
//
// A Table is a minimal key/value interface (get, put, scan, lock) over an
// embedded engine. The store keeps two of them: one for discovery records
// and one for node records. The sqlite subpackage provides the engine.
//
// # Locking
//
// Each table has one exclusive lock shared by every process using the same
// file. It is taken around full scans and read-modify-write sequences.
// Single-key Get is unlocked, so a reader may race a concurrent writer;
// that window is accepted.
//
// # Ids
//
// Records are keyed by hash key. Short ids are derived from keys and are
// never indexed: GetByID is a full linear scan.
package repository

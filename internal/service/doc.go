// Package service implements the record database handle.
//
// A DB owns the discovery and node tables and the record templates loaded
// from iscsid.conf. It provides the public operations: read and write by
// short id, merge-upsert of discovery and node records, printing, bulk
// ingestion of discovery responses and export.
//
// # Locking
//
// Every scan and every read-modify-write holds the table's exclusive lock
// for its whole duration. ReadDiscovery and ReadNode also lock because they
// scan for the id. The lookup inside WriteNode and the write itself are
// separate lock cycles, so a concurrent writer may slip between them.
//
// # Event System
//
// Writes and defaults reloads publish events on the handle's EventBus.
// Publishing never blocks; slow subscribers miss events.
package service

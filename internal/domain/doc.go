// Package domain defines the record types of the iSCSI initiator database.
//
// # Records
//
// DiscoveryRecord describes how to find targets: a startup mode, a
// discovery type (sendtargets, slp, isns) and the payload for that type.
//
// NodeRecord describes one target endpoint: target name, portal group tag,
// a session block and a fixed set of ConnMax connection slots, of which the
// first ActiveConns are in use.
//
// # Keys and ids
//
// Records are stored under a hash key built from portal addresses
// (HashKeyDiscovery, HashKeyNode). A node found through discovery carries
// its parent's key as a prefix. UniqueID folds a key into a 20-bit short id
// for display; it is never used as a storage key.
//
// # Merging
//
// Merge implements upsert semantics: only non-zero integers and non-empty
// strings of the incoming record override the stored one.
//
// # Design Principles
//
// - No database or external dependencies
// - Plain value types, safe to copy (except SLP lists, see Clone)
package domain

// Package kv provides an interface for implementing
// kv drivers that back a vault.
//
// A kv store is the physical, synchronous, string-keyed storage a vault
// persists its serialized record set into. Stores are deliberately small:
// get, put and delete a single key, report the number of bytes held and
// close. Anything richer (expiry, batching, transforms, recovery) lives in
// the layers above this one.
//
// A kv plugin is a factory for store instances. Plugins are looked up by
// name through the plugin manager in the plugins package:
//
//  - memory: an ordered in-process map. Nothing survives the process.
//  - bbolt:  a single-bucket bbolt database file.
//
// Stores may be wrapped with WithQuota to give them the capacity limit
// that host stores impose. A write that would push the store past its
// quota fails with ErrQuotaExceeded and leaves the store unchanged, which
// is the signal the vault recovers from.
package kv

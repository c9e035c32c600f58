// Package vault implements a key-value store with expiring items on top
// of a storage backend.
//
// A vault owns one key in its backend and keeps its whole record set
// there as one serialized blob:
//
//	record set --json--> text --transform pipeline--> backend.Write(key, text)
//
// Writes are coalesced. Mutations update an in-memory copy of the record
// set (the dirty buffer) and a timer writes the latest copy once the
// debounce delay passes without further writes. Until then the dirty
// buffer shadows the backend, so every read observes every earlier write
// made through the same vault. Flush writes the buffer immediately and
// Dispose flushes before releasing the backend.
//
// Items written with a TTL carry an absolute expiry in Unix milliseconds.
// Expired items are absent to every read; keyed reads also purge them.
//
// Persisted text that cannot be reversed, decoded or validated is treated
// as corruption: the blob is discarded and the vault behaves as if it
// were empty. When the backend reports that it is full the vault drops
// expired items and retries the write once before giving up.
package vault

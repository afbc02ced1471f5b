// Package storage provides the durable local key/value layer behind the
// review history.
//
// A Store holds opaque named blobs. Three implementations are available:
// FileStore keeps one file per key under the data directory (key names are
// hashed with SHA-256, writes are atomic via rename, and files are created
// with 0600 permissions); SQLiteStore keeps a single kv table in a SQLite
// database using the pure Go modernc.org/sqlite driver; MemoryStore keeps
// everything in process and is used when history persistence is disabled
// and in tests.
//
// Values are stored exactly as given. Encryption is the caller's concern.
package storage

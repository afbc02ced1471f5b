// Package history keeps an encrypted, bounded, most-recent-first list of
// batch reviews on local storage.
//
// The whole list is stored as one record: a JSON array of review.HistoryItem
// sealed with AES-256-GCM and written through a storage.Store. At most
// Capacity items are kept; the oldest are dropped when a new item is saved.
//
// The encryption key comes from a KeySource. SessionKeys generates a random
// key once per login session and caches it in a KeyCache (by default a 0600
// file under $XDG_RUNTIME_DIR), so history written in one session cannot be
// read after the key is gone. PassphraseKeys derives the key from a
// passphrase with PBKDF2-SHA-256 and a random salt kept next to the record.
//
// Reads never fail. A record that cannot be decrypted or decoded is treated as
// corrupt: the record and the key are purged and an empty list is returned.
// Write failures are logged and swallowed; the in-memory list returned by
// Save stays authoritative for the rest of the session.
package history

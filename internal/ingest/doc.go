// Package ingest turns paths, directories, pasted buffers, and git changes
// into review.CodeFile values.
//
// Every file is checked against the supported extension set and the
// per-file size cap before it reaches a backend. Directory arguments expand
// recursively through include/exclude glob filters; unsupported files found
// that way are skipped rather than rejected. Content can optionally be
// passed through secret redaction.
package ingest

// Package app wires the registry, batch orchestrator, chat manager, and
// history store into one review session.
//
// The selected backend is explicit state of an App and is resolved once at
// the start of each batch, so changing the selection mid-batch does not
// affect the running batch.
package app

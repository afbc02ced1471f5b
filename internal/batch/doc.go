// Package batch runs a multi-file review against one backend.
//
// Files are reviewed strictly one at a time in submission order. The first
// failure aborts the batch and discards partial results. A batch of one file
// reuses that file's summary; larger batches make exactly one summary call.
package batch

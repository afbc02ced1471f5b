// Package chat manages the follow-up conversation about a completed review.
//
// A Manager holds at most one session. Only one message may be in flight;
// further sends are rejected, not queued. A failed send keeps the user's
// message and records the failure as a model message so the transcript
// stays in order.
package chat

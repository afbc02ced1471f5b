package backend

import (
	"context"

	"github.com/dshills/critic/internal/review"
)

// Unimplemented is a declared backend whose every operation fails with
// *NotImplementedError.
type Unimplemented struct {
	model Model
}

// NewUnimplemented returns a placeholder backend for m.
func NewUnimplemented(m Model) *Unimplemented { return &Unimplemented{model: m} }

func (u *Unimplemented) Name() Model { return u.model }

// Ready always reports the backend as unavailable.
func (u *Unimplemented) Ready() error { return u.err() }

// Supports claims every capability so callers reach the not-implemented
// error instead of a fallback.
func (u *Unimplemented) Supports(Capability) bool { return true }

func (u *Unimplemented) GetCodeReview(context.Context, string, string) (review.CodeReview, error) {
	return review.CodeReview{}, u.err()
}

func (u *Unimplemented) GetBatchSummary(context.Context, map[string]review.CodeReview) (string, error) {
	return "", u.err()
}

func (u *Unimplemented) DetectLanguage(context.Context, string) (string, bool, error) {
	return "", false, u.err()
}

func (u *Unimplemented) StartChat(context.Context, []review.CodeFile, review.BatchCodeReview) (ChatSession, error) {
	return nil, u.err()
}

func (u *Unimplemented) err() error { return &NotImplementedError{Backend: u.model} }

// Package store is the draft persistence adapter: a JSON key/value store
// scoped to one screening session. Callers treat writes as best-effort;
// a failed load behaves exactly like an absent draft.
package store

import (
	"context"
	"errors"
)

// Fixed draft key names. One set exists per session scope.
const (
	KeyProfileDraft  = "profile-draft"
	KeyAnswersDraft  = "answers-draft"
	KeyStepDraft     = "step-draft"
	KeyFailedArchive = "failed-submission-archive"
)

var ErrNotFound = errors.New("not found")

// Store persists JSON-serializable values under fixed string keys.
type Store interface {
	// Save writes value under key, replacing any prior value.
	Save(ctx context.Context, key string, value any) error
	// Load unmarshals the value for key into dest. found is false when the
	// key is absent; dest is untouched in that case.
	Load(ctx context.Context, key string, dest any) (found bool, err error)
	// Clear removes key. Clearing an absent key is not an error.
	Clear(ctx context.Context, key string) error
}

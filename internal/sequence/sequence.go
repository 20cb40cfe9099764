// Package sequence generates gapless document numbers per type and year.
// Uniqueness relies on the store locking the sequence row for the duration
// of the enclosing atomic scope.
package sequence

import (
	"context"

	"accounting-ledger-service/internal/storage"
)

// Next increments the (sequenceType, year) counter and returns the formatted
// number, e.g. "TRX-2024-00042". Call it only inside Store.Atomically:
// the locked row is what keeps concurrent posters from sharing a number.
func Next(ctx context.Context, store storage.Store, sequenceType string, year int) (string, error) {
	seq, err := store.Sequences().Lock(ctx, sequenceType, year)
	if err != nil {
		return "", err
	}
	number := seq.NextNumber()
	if err := store.Sequences().Save(ctx, seq); err != nil {
		return "", err
	}
	return number, nil
}

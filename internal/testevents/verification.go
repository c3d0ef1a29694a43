package testevents

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/inputreplay/pkg/logger"
)

var (
	// ErrCountMismatch reports a stored session whose size differs from what was sent.
	ErrCountMismatch = errors.New("stored event count mismatch")
	// ErrOrderMismatch reports a stream that was stored out of order or altered.
	ErrOrderMismatch = errors.New("stored event order mismatch")
)

// verifySession checks the stored session against what was submitted.
// Pointer and keyboard notifications travel on separate streams, so only
// the order within each stream is guaranteed.
func verifySession(ctx context.Context, sent []Event, got sessionResponse) error {
	log := logger.Get()

	if got.Count != len(sent) || len(got.Events) != len(sent) {
		log.Error(ctx, "count mismatch",
			logger.Int("sent", len(sent)),
			logger.Int("stored", got.Count))
		return fmt.Errorf("%w: sent %d, stored %d", ErrCountMismatch, len(sent), got.Count)
	}

	sentPointer, sentKeys := split(sent)
	gotPointer, gotKeys := split(got.Events)
	if i := firstDiff(sentPointer, gotPointer); i >= 0 {
		return fmt.Errorf("%w: pointer stream differs at %d", ErrOrderMismatch, i)
	}
	if i := firstDiff(sentKeys, gotKeys); i >= 0 {
		return fmt.Errorf("%w: keyboard stream differs at %d", ErrOrderMismatch, i)
	}

	log.Info(ctx, "session verified",
		logger.String("session", got.Name),
		logger.Int("pointer", len(gotPointer)),
		logger.Int("keyboard", len(gotKeys)))
	return nil
}

func split(events []Event) (pointer, keys []Event) {
	for _, e := range events {
		if e.pointer() {
			pointer = append(pointer, e)
		} else {
			keys = append(keys, e)
		}
	}
	return pointer, keys
}

// firstDiff returns the first index where a and b differ, or -1.
func firstDiff(a, b []Event) int {
	for i := range a {
		if i >= len(b) || a[i] != b[i] {
			return i
		}
	}
	if len(b) > len(a) {
		return len(a)
	}
	return -1
}

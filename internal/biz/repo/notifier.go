package repo

import "context"

// NotifierRepo is the danmaku notification fan-out interface
type NotifierRepo interface {
	// Notify posts a one-line acknowledgment to every configured target.
	// Returns immediately; delivery happens in the background.
	Notify(ctx context.Context, text string)

	// Wait blocks until in-flight notifications finish
	Wait()
}

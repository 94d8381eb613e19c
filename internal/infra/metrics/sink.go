package metrics

import "time"

// Sink records scheduler metrics.
// All methods are fire-and-forget: implementations must not block or propagate errors.
type Sink interface {
	PassStarted()
	PassCompleted(duration time.Duration, processed, notifications, successors int, err error)
	PassSkipped()

	ClaimLost()
	ClaimFailed()
	NotificationFailed()
	SuccessorFailed()
	RecurrenceFailed()
}

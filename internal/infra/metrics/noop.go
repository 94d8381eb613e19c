package metrics

import "time"

// NoopSink is used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) PassStarted()                                                         {}
func (n *NoopSink) PassCompleted(d time.Duration, processed, notif, succ int, err error) {}
func (n *NoopSink) PassSkipped()                                                         {}
func (n *NoopSink) ClaimLost()                                                           {}
func (n *NoopSink) ClaimFailed()                                                         {}
func (n *NoopSink) NotificationFailed()                                                  {}
func (n *NoopSink) SuccessorFailed()                                                     {}
func (n *NoopSink) RecurrenceFailed()                                                    {}

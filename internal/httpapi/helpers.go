package httpapi

import "time"

// msToDuration converts a millisecond count from the wire into a
// time.Duration, the inverse of queueItemDto's Duration.Milliseconds().
func msToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

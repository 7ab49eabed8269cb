package utils

import "time"

// Clock supplies the current time to anything that records timestamps or
// derives date-based state.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

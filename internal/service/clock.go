package service

import "time"

// Clock supplies "now" to every time-dependent ledger rule. Times are UTC.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

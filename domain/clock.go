package domain

import "time"

// Clock supplies the current instant for expiry decisions. Injecting it
// keeps time-dependent checks deterministic under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by the wall clock.
func SystemClock() Clock { return systemClock{} }

// Package clock abstracts the time source so lead-time and completion rules
// can be tested against a fixed "now".
package clock

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Real is the wall clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

// Fixed always returns the same instant. Test use only.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time { return f.T }

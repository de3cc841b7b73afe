package main

import "time"

// clock abstracts wall time so disconnect deadlines can be driven
// deterministically in tests.
type clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

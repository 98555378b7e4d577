// Package system provides a real clock implementation.
package system

import "time"

// Clock implements cctv.Clock using time.Now.
//
// Times are local, not UTC: capture timestamps and "today" resolution in
// the read API follow the server's processing clock.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current local time.
func (Clock) Now() time.Time {
	return time.Now()
}

// Package system provides the wall clock used to time runs.
package system

import "time"

// Clock implements crawler.Clock, reporting time in a fixed location.
type Clock struct {
	loc *time.Location
}

// New creates a UTC clock.
func New() *Clock {
	return &Clock{loc: time.UTC}
}

// NewIn creates a clock reporting in loc; nil means UTC.
func NewIn(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc}
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}

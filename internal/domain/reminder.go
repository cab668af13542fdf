package domain

import "time"

// Reminder is a named, durable recurring timer owned by one entity.
type Reminder struct {
	EntityID     string
	Name         string
	Payload      []byte
	DueTime      time.Duration
	Period       time.Duration
	RegisteredAt time.Time
}

// FirstFire returns the instant the reminder fires for the first time.
func (r Reminder) FirstFire() time.Time {
	return r.RegisteredAt.Add(r.DueTime)
}

// NextFire returns the first fire time strictly after t.
// A reminder without a period fires once; the zero time is returned once it has passed.
func (r Reminder) NextFire(t time.Time) time.Time {
	first := r.FirstFire()
	if t.Before(first) {
		return first
	}
	if r.Period <= 0 {
		return time.Time{}
	}
	elapsed := t.Sub(first)
	ticks := elapsed/r.Period + 1
	return first.Add(ticks * r.Period)
}

package model

import "time"

// Window is the half-open interval [From, To).
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func NewWindow(now time.Time, duration time.Duration) Window {
	now = now.UTC()
	return Window{From: now.Add(-duration), To: now}
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// Shift moves both bounds back by d.
func (w Window) Shift(d time.Duration) Window {
	return Window{From: w.From.Add(-d), To: w.To.Add(-d)}
}

func (w Window) Duration() time.Duration {
	return w.To.Sub(w.From)
}

func (w Window) Valid() bool {
	return w.To.After(w.From)
}

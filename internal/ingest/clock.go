package ingest

import "github.com/jonboulle/clockwork"

// clock drives retry backoff sleeps so tests can advance time deterministically.
var clock = clockwork.NewRealClock()

// SetClock swaps the backoff time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

package repository

import (
	"context"
	"time"
)

// QuotaResult is the outcome of a counter reservation.
type QuotaResult struct {
	Allowed bool
	Count   int64 // counter value after the call
}

// QuotaStore holds windowed counters shared by concurrent requests.
//
// IncrementAndCheck increments key only while its value is below limit; the
// compare and the increment happen as one step. The window starts on the
// first increment and the key expires after it.
//
// Release gives back one slot taken by IncrementAndCheck when the guarded
// operation did not complete. It never drives a counter below zero.
type QuotaStore interface {
	IncrementAndCheck(ctx context.Context, key string, limit int, window time.Duration) (QuotaResult, error)
	Release(ctx context.Context, key string) error
}

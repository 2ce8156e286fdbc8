package pool

import (
	"log/slog"

	"github.com/ssargent/mseedkit/pkg/mseed"
)

// Config holds configuration for a record pool
type Config struct {
	RecordOptions []mseed.Option // Options applied to every record the pool constructs
	Logger        *slog.Logger   // Misuse is logged at Warn; discarded when nil
	Reporter      StatsReporter  // Receives a snapshot after every change
}

// Stats is a snapshot of pool occupancy
type Stats struct {
	Free      int // Records waiting in the free list
	Used      int // Records handed out and not yet released
	HighWater int // Largest free list size seen
	Live      int // Instances constructed and not trimmed
	Created   int // Instances ever constructed
	Misuse    int // Releases of records the pool had not handed out
}

// StatsReporter receives pool snapshots
type StatsReporter interface {
	ReportPool(Stats)
}

// Errors
var (
	ErrNotInUse = &PoolError{"record is not in use by this pool"}
)

// PoolError represents a pool error
type PoolError struct {
	Message string
}

func (e *PoolError) Error() string {
	return e.Message
}

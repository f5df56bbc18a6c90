package progknn

import (
	"fmt"
	"time"
)

// UpdateResult describes one Table.Run: the ops allocated to each phase
// (…Ops), the work actually achieved (…Result) and the time spent.
type UpdateResult struct {
	// AddPointOps and UpdateIndexOps are the ops the indexer charged for
	// absorbing points and for maintenance. UpdateTableOps is the remainder
	// of the budget offered to neighbor repair.
	AddPointOps    int
	UpdateIndexOps int
	UpdateTableOps int

	// AddPointResult is the number of points ingested, UpdateIndexResult the
	// number of maintenance steps, UpdateTableResult the number of dirty
	// points rechecked.
	AddPointResult    int
	UpdateIndexResult int
	UpdateTableResult int

	// NumPointsInserted is the running total of points ingested by the table.
	NumPointsInserted int

	AddPointElapsed    time.Duration
	UpdateIndexElapsed time.Duration
	UpdateTableElapsed time.Duration
}

// TotalOps returns the ops allocated across all three phases. It never
// exceeds the budget passed to Run.
func (r UpdateResult) TotalOps() int {
	return r.AddPointOps + r.UpdateIndexOps + r.UpdateTableOps
}

// Elapsed returns the time spent across all three phases.
func (r UpdateResult) Elapsed() time.Duration {
	return r.AddPointElapsed + r.UpdateIndexElapsed + r.UpdateTableElapsed
}

func (r UpdateResult) String() string {
	return fmt.Sprintf("UpdateResult(addPointOps: %d / %d, updateIndexOps: %d / %d, updateTableOps: %d / %d)",
		r.AddPointResult, r.AddPointOps,
		r.UpdateIndexResult, r.UpdateIndexOps,
		r.UpdateTableResult, r.UpdateTableOps)
}

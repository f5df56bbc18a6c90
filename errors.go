package progknn

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned when a point ID is not in [0, Size()).
	ErrOutOfRange = errors.New("progknn: point id out of range")

	// ErrInvalidBudget is returned by Run for a negative operation budget.
	ErrInvalidBudget = errors.New("progknn: operation budget must be >= 0")

	// ErrNoDataSource is returned when Run or a search is called before
	// SetDataSource.
	ErrNoDataSource = errors.New("progknn: no data source set")

	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("progknn: invalid config")
)

// DimensionMismatchError reports a point or data source whose
// dimensionality differs from the configured one.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("progknn: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func outOfRange(id, size int) error {
	return fmt.Errorf("%w: id %d, size %d", ErrOutOfRange, id, size)
}

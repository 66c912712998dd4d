package categories

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned when a caller passes a missing or malformed argument
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNoBudget is returned when a broad query has no counter to report to
	ErrNoBudget = errors.New("no expensive-call counter configured")
)

func invalidArgument(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// IsInvalidArgument returns true if the error is ErrInvalidArgument
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

package bench

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig marks configuration failures detected before any
// backend work begins.
var ErrInvalidConfig = errors.New("invalid configuration")

// UnknownFrameworkError is returned when the requested framework has no
// registered adapter.
type UnknownFrameworkError struct {
	Name string
}

func (e *UnknownFrameworkError) Error() string {
	return fmt.Sprintf("unsupported framework %q", e.Name)
}

// Is lets UnknownFrameworkError satisfy errors.Is(err, ErrInvalidConfig):
// an unknown name is a configuration error, not a backend failure.
func (e *UnknownFrameworkError) Is(target error) bool {
	return target == ErrInvalidConfig
}

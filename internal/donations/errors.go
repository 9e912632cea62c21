package donations

import (
	"errors"
	"fmt"
)

// Error kinds returned by Store operations and by Session input parsing.
// Concrete errors wrap one of these together with the underlying cause.
var (
	ErrRead   = errors.New("read error")
	ErrWrite  = errors.New("write error")
	ErrFormat = errors.New("format error")
)

func readError(err error) error {
	return fmt.Errorf("%w: %w", ErrRead, err)
}

func writeError(err error) error {
	return fmt.Errorf("%w: %w", ErrWrite, err)
}

// Package apperr holds the error kinds shared across the directory, the QR
// composer and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrPersistence         = errors.New("persistence failed")
	ErrGenerationExhausted = errors.New("could not generate unique slug")
	ErrRender              = errors.New("render failed")

	// ErrReserved is returned for operations forbidden on the default link.
	ErrReserved = fmt.Errorf("%w: reserved slug", ErrValidation)

	// ErrCorrupt is returned when the links document exists but cannot be
	// parsed. A copy has been set aside before it is reported.
	ErrCorrupt = fmt.Errorf("%w: corrupt document", ErrPersistence)
)

package planner

import "errors"

var (
	// ErrInvalidInput indicates a database request that cannot be planned as
	// written, such as an unparsable installed version.
	ErrInvalidInput = errors.New("invalid planner input")
)

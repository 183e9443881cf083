package script

import "errors"

var (
	ErrInvalidDescriptor = errors.New("invalid dependency descriptor")
	ErrInvalidDirective  = errors.New("invalid metadata directive")
	ErrInvalidScriptName = errors.New("invalid script name")
)

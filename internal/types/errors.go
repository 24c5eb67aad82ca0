package types

import "errors"

var (
	ErrRegionNotFound     = errors.New("region not found")
	ErrOutOfBounds        = errors.New("rectangle out of bounds")
	ErrInsufficientFrames = errors.New("insufficient frames")
	ErrEmptyReduction     = errors.New("empty reduction")
	ErrIO                 = errors.New("io failure")

	ErrInvalidWindow = errors.New("invalid window size")
	ErrShapeMismatch = errors.New("shape mismatch")
	ErrInvalidImage  = errors.New("invalid image")
	ErrOrdering      = errors.New("frame ordering")
	ErrInvalidConfig = errors.New("invalid config")
)

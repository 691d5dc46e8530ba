package quote

import "errors"

var (
	ErrSessionNotFound = errors.New("quote: session not found")
	ErrInvalidRequest  = errors.New("quote: invalid request")
	ErrNilResolver     = errors.New("quote: resolver is required")
)

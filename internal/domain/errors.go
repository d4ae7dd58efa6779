package domain

import "errors"

// Sentinel errors used across layers.
var (
	ErrNotFound = errors.New("not found")
	ErrNoScript = errors.New("no script loaded")
)

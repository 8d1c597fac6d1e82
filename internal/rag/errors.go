package rag

import "errors"

// Sentinel errors. Callers branch with errors.Is; wrapped causes carry
// the detail.
var (
	// ErrConfiguration marks a missing or invalid dependency or setting.
	ErrConfiguration = errors.New("rag: configuration error")

	// ErrEmptyInput marks a request whose query or document text is
	// empty after trimming.
	ErrEmptyInput = errors.New("rag: empty input")

	// ErrProvider marks a failure in an external model provider.
	ErrProvider = errors.New("rag: provider error")

	// ErrStore marks a persistence failure.
	ErrStore = errors.New("rag: store error")
)

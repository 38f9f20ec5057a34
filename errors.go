package tomo

import "errors"

// Error taxonomy. Call sites wrap these with fmt.Errorf("...: %w", ...)
// so errors.Is works across package boundaries; cmd/tomo maps each to a
// stable exit code.
var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrStorage           = errors.New("storage failure")
	ErrExport            = errors.New("export failure")
	ErrConfiguration     = errors.New("invalid configuration")
)

package uio

import "github.com/ehrlich-b/go-uio/internal/constants"

// Re-export constants for public API
const (
	DefaultRingEntries    = constants.DefaultRingEntries
	DefaultMinCompletions = constants.DefaultMinCompletions
	DefaultSubmitTimeout  = constants.DefaultSubmitTimeout
	DefaultListenBacklog  = constants.DefaultListenBacklog
)

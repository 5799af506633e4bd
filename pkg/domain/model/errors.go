package model

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for domain operations
var (
	ErrRunNotFound = goerr.New("run not found")
)

// Error tags classify failures that callers handle differently
var (
	// TagMissingAnchor marks a hazard series with no usable detrending anchor
	TagMissingAnchor = goerr.NewTag("missing_anchor")
	// TagInvalidConfig marks a rejected analysis configuration
	TagInvalidConfig = goerr.NewTag("invalid_config")
	// TagInvalidInput marks an input file that cannot be analyzed
	TagInvalidInput = goerr.NewTag("invalid_input")
)

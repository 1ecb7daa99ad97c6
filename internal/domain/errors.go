package domain

import "errors"

// Sentinel errors shared by stores, locks and stages.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid stage transition")
	ErrStageConflict     = errors.New("stage changed concurrently")
	ErrLocked            = errors.New("item is locked by another run")
	ErrMissingName       = errors.New("payload has no name")
	ErrNoAPIKey          = errors.New("no places api key configured")
)

package services

import "errors"

var (
	// ErrBeingInitialized means another process holds the creation lock
	// for the same simulation. Callers retry after a short delay.
	ErrBeingInitialized = errors.New("wall is being initialized, try again shortly")
	// ErrDeletionInProgress means the configuration is flagged for
	// deletion; no new work may start against it.
	ErrDeletionInProgress = errors.New("wall configuration deletion in progress")
	ErrNotFound           = errors.New("wall configuration not found")
	ErrDayOutOfRange      = errors.New("day is out of the construction range")
	ErrProfileOutOfRange  = errors.New("profile id is out of range")
)

package monitor

import "errors"

var (
	ErrRegistryNil    = errors.New("connection registry is required")
	ErrInvalidConfig  = errors.New("invalid monitor configuration")
	ErrAlreadyStarted = errors.New("monitor already started")
	ErrNotStarted     = errors.New("monitor not started")
	ErrNotRunning     = errors.New("monitor is not running")
)

// Copyright 2025 Certen Protocol

package adapter

import "errors"

var (
	ErrUnsupportedAction = errors.New("adapter: action not supported")
	ErrNotFound          = errors.New("adapter: resource not found")
	ErrPermissionDenied  = errors.New("adapter: permission denied")
	ErrInvalidInput      = errors.New("adapter: invalid input")
	ErrRollbackFailed    = errors.New("adapter: rollback failed")
	ErrTimeout           = errors.New("adapter: timeout")
)

// Package apperr holds the sentinel errors shared by the storage and
// service layers.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	// ErrOutsideVault marks a path that resolves outside the vault root.
	// It is always a hard failure and never reported as a plain status.
	ErrOutsideVault = errors.New("security error: path outside vault root")
)

package domain

import "errors"

var (
	// ErrFileExists is returned when publishing under a name that is
	// already taken. Overwrites are refused.
	ErrFileExists = errors.New("file already exists")
	// ErrFileNotFound is returned when opening or deleting a file that
	// is not in the storage.
	ErrFileNotFound = errors.New("file not found")
)

package repository

import "errors"

var (
	ErrNotFound               = errors.New("submission not found")
	ErrConcurrentModification = errors.New("submission was modified concurrently")
)

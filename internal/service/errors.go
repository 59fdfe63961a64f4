package service

import "errors"

var (
	ErrNotFound             = errors.New("error not found")
	ErrValidation           = errors.New("validation error")
	ErrNoPosition           = errors.New("no position found")
	ErrInsufficientPosition = errors.New("insufficient position")
)

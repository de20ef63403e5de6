package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrEmptyMessages   = errors.New("submission has no messages")
	ErrQueueFull       = errors.New("input queue is full")
	ErrUnknownJob      = errors.New("unknown job id")
	ErrStreamClosed    = errors.New("output stream closed")
)

package entity

import "errors"

var (
	// Task errors
	ErrInvalidTaskID          = errors.New("invalid task id")
	ErrInvalidTaskDescription = errors.New("invalid task description")

	// Summary errors
	ErrEmptySummary = errors.New("empty summary content")
)

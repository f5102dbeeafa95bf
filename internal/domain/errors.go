package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyIndex is returned when a spatial index is built from a set with
	// no valid stations. Queries for that sensor kind are impossible until the
	// upstream data recovers.
	ErrEmptyIndex = errors.New("no valid stations to index")

	// ErrInvalidAngle marks a bearing outside [0, 360).
	ErrInvalidAngle = errors.New("invalid angle")

	// ErrInvalidReading marks a sensor value outside its physical domain.
	ErrInvalidReading = errors.New("invalid reading")

	// ErrUnknownSpot is returned when a spot name is not in the published link table.
	ErrUnknownSpot = errors.New("unknown spot")
)

// AngleError reports which bearing was out of range.
type AngleError struct {
	Field string
	Value float64
}

func (e *AngleError) Error() string {
	return fmt.Sprintf("%s: %s = %v, want [0, 360)", ErrInvalidAngle, e.Field, e.Value)
}

func (e *AngleError) Unwrap() error { return ErrInvalidAngle }

// ReadingError reports which reading field was out of range.
type ReadingError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ReadingError) Error() string {
	return fmt.Sprintf("%s: %s = %v, %s", ErrInvalidReading, e.Field, e.Value, e.Reason)
}

func (e *ReadingError) Unwrap() error { return ErrInvalidReading }

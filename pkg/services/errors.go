package services

import "errors"

var (
	ErrBadRequest       = errors.New("bad request")
	ErrSessionNotFound  = errors.New("session not found")
	ErrOutOfRange       = errors.New("out of range")
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrInvalidType      = errors.New("invalid artifact type")
	ErrTooLarge         = errors.New("content too large")
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrScorecardNotReady is returned when the scorecard has not been revealed yet.
	ErrScorecardNotReady = errors.New("scorecard not available")
)

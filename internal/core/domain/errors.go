package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenExpired indicates the callback token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the callback token is malformed or signed with another key
	ErrTokenInvalid = errors.New("token invalid")

	// ErrSessionNotFound indicates the search session does not exist or has expired
	ErrSessionNotFound = errors.New("session not found")

	// ErrDispatchFailed indicates the workflow trigger could not be reached
	ErrDispatchFailed = errors.New("workflow dispatch failed")

	// ErrNoActiveAgent indicates no reasoning agent has been published yet
	ErrNoActiveAgent = errors.New("no active reasoning agent")

	// ErrPublishInProgress indicates another publish run holds the publish lock
	ErrPublishInProgress = errors.New("publish already in progress")

	// ErrLockLost indicates a distributed lock expired or was taken over while held
	ErrLockLost = errors.New("lock lost")

	// ErrInvalidProvider indicates an unknown reasoning provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates the reasoning service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrMalformedAnswer indicates the reasoning agent answered with something other than the JSON contract
	ErrMalformedAnswer = errors.New("malformed agent answer")
)

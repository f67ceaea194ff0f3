package domain

import "errors"

var (
	// ErrEnrichment is returned when the profile lookup fails
	ErrEnrichment = errors.New("enrichment failed")

	// ErrDispatch is returned when a message could not be sent
	ErrDispatch = errors.New("dispatch failed")

	// ErrRateLimited is returned when a notification target asks us to slow down
	ErrRateLimited = errors.New("rate limited")
)

// Package services implements the event pipeline, its control commands, and
// the usage aggregates. This file centralizes the pipeline's error values so
// callers can classify outcomes with errors.Is.
//
// Only ErrUnknownTenant is a caller bug. The rest describe how one event
// ended: dropped (duplicate, ineligible, admission), degraded (generation,
// delivery), or stored unsuccessfully (persistence). None of them should
// stop the process.
package services

import "errors"

var (
	// ErrUnknownTenant: the authenticator returned a tenant that is not configured.
	ErrUnknownTenant = errors.New("unknown tenant")

	// ErrDuplicateEvent: the (id, tenant, kind) tuple was already processed.
	ErrDuplicateEvent = errors.New("duplicate event")

	// ErrIneligible: wrong event kind for the scope, or the bot was not mentioned.
	ErrIneligible = errors.New("ineligible event")

	// ErrAdmissionDenied: the user exhausted the rate-limit window.
	ErrAdmissionDenied = errors.New("admission denied")

	// ErrGeneration: the completion call failed or timed out; a fallback
	// reply was used.
	ErrGeneration = errors.New("generation failed")

	// ErrDelivery: posting the reply failed. The turn stays stored.
	ErrDelivery = errors.New("delivery failed")

	// ErrPersistence: the conversation store was unavailable.
	ErrPersistence = errors.New("persistence failed")
)

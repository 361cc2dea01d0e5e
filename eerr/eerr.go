// Package eerr defines the failure taxonomy shared across the data model,
// SHIP, and SPINE layers. Every fallible operation in this module returns
// one of these sentinels (wrapped with context via fmt.Errorf's %w verb)
// instead of panicking or aborting.
package eerr

import "errors"

var (
	// ErrParse indicates malformed wire, JSON, or date/time input.
	ErrParse = errors.New("parse error")

	// ErrInputArgumentNull indicates a required argument was nil/absent.
	ErrInputArgumentNull = errors.New("input argument is null")

	// ErrInputArgumentOutOfRange indicates an argument outside its valid domain
	// (e.g. a Choice discriminator with no matching alternative).
	ErrInputArgumentOutOfRange = errors.New("input argument out of range")

	// ErrMemoryAllocate indicates allocation failure (modelled for parity with
	// the original taxonomy; in Go this realistically surfaces from
	// exhausted bounded queues rather than from the allocator itself).
	ErrMemoryAllocate = errors.New("allocation failed")

	// ErrMemory indicates a bounded resource (e.g. a message queue) is full.
	ErrMemory = errors.New("resource exhausted")

	// ErrFileSystemNoFile indicates a required credential or config file is missing.
	ErrFileSystemNoFile = errors.New("file not found")

	// ErrInit indicates TLS/context construction failed or loaded credentials
	// are internally inconsistent (e.g. SKI mismatch).
	ErrInit = errors.New("initialization failed")

	// ErrThread indicates the service goroutine could not be started.
	ErrThread = errors.New("failed to start service goroutine")

	// ErrOther indicates an invariant violation reachable only via a bug.
	ErrOther = errors.New("internal invariant violation")
)

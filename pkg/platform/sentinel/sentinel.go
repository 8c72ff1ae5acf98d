package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and collaborators return
// these (optionally wrapped) so the registry service can translate them into
// domain errors:
//   - ErrConflict: concurrent writer won a serialization race
//   - ErrUnavailable: backing store or broker temporarily unreachable
//
// Business rule violations (too long, not registered) use pkg/domain-errors.
var (
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)

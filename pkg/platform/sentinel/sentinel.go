package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into domain errors.
//
//   - ErrNotFound: member or mandate row does not exist
//   - ErrConflict: a write would violate a storage constraint
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

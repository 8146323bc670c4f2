package apperrors

import "errors"

var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or missing input. Validation failures
	// are rejected before any privacy-sensitive access, so no audit entry is written.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden indicates the actor's role does not permit the operation.
	// Callers write a success=false audit entry for these.
	ErrForbidden = errors.New("forbidden")
	// ErrSelfReview indicates a requester attempted to review their own request.
	ErrSelfReview = errors.New("requester cannot review own request")
	// ErrStateConflict indicates an operation against a request whose state
	// does not allow it (e.g. resolving a non-approved request).
	ErrStateConflict = errors.New("state conflict")
	// ErrStorage indicates a vault or audit write failed. An operation whose
	// audit write fails is treated as if it did not happen.
	ErrStorage = errors.New("storage failure")
	// ErrGrantRequired indicates a vault resolve was attempted without a
	// capability grant minted by a completed approval workflow.
	ErrGrantRequired = errors.New("resolve grant required")
)

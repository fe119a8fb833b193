/*
errors.go - Error taxonomy for the approval engine
*/
package approval

import "errors"

var (
	// ErrRequestNotFound is returned when the request ID is unknown.
	ErrRequestNotFound = errors.New("request not found")

	// ErrAlreadyResolved is returned to every resolver after the first.
	// The losing caller gets this even when its verdict matched.
	ErrAlreadyResolved = errors.New("request already resolved")

	// ErrNotEligible is returned when the resolver's role is not in the
	// request's eligible set.
	ErrNotEligible = errors.New("role not eligible to resolve request")

	// ErrSelfApproval is returned when a requester tries to resolve
	// their own request and the policy forbids it.
	ErrSelfApproval = errors.New("requester may not resolve own request")

	// ErrUnknownRequester is returned by Submit when the requester
	// resolves to no role at all.
	ErrUnknownRequester = errors.New("requester has no recognized role")

	// ErrUnknownEmployee is returned by Submit when the target employee
	// is not on the roster.
	ErrUnknownEmployee = errors.New("target employee not on roster")
)

// IsClientError reports whether the error is a rejected operation caused
// by the caller rather than a storage failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrAlreadyResolved) ||
		errors.Is(err, ErrNotEligible) ||
		errors.Is(err, ErrSelfApproval) ||
		errors.Is(err, ErrUnknownRequester) ||
		errors.Is(err, ErrUnknownEmployee)
}

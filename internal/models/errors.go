package models

import "errors"

// Domain errors. Every failure is returned synchronously and leaves all
// state unchanged; callers distinguish kinds with errors.Is.
var (
	// ErrNotAuthorized means a non-admin caller attempted an admin-only
	// operation.
	ErrNotAuthorized = errors.New("caller is not authorized")

	// ErrActivityNotFound means no activity exists for the given ID.
	ErrActivityNotFound = errors.New("activity not found")

	// ErrInvalidMethod means the verification method is unknown, or does
	// not match the activity's declared method.
	ErrInvalidMethod = errors.New("invalid verification method")

	// ErrAlreadyVerified means a mutation was attempted on an activity
	// that already reached a terminal state.
	ErrAlreadyVerified = errors.New("activity already verified or rejected")

	// ErrInvalidTrustScore means a registration trust score was outside [0,100].
	ErrInvalidTrustScore = errors.New("trust score outside valid range [0,100]")

	// ErrValidatorNotRegistered means no validator record exists for the address.
	ErrValidatorNotRegistered = errors.New("validator not registered")

	// ErrValidatorInactive means the validator has been deactivated.
	ErrValidatorInactive = errors.New("validator is deactivated")

	// ErrDuplicateVote means the validator already voted on this activity.
	ErrDuplicateVote = errors.New("validator already voted on this activity")

	// ErrVerificationExpired means the vote arrived after the request's expiry.
	ErrVerificationExpired = errors.New("verification request expired")

	// ErrMissingEvidence means a photo/video submission lacked an evidence hash.
	ErrMissingEvidence = errors.New("evidence reference required for media verification")

	// ErrVoteNotFound means no vote exists for the (activity, validator) pair.
	ErrVoteNotFound = errors.New("vote not found")

	// ErrInsufficientQuorumConfig is an internal invariant violation: a
	// community-validated request with a zero validator requirement.
	ErrInsufficientQuorumConfig = errors.New("community validation requires a non-zero quorum")
)

package domain

import "errors"

var (
	// ErrNotFound is returned by vaults, caches and stores when a key does
	// not exist. For secrets this is an expected state (not yet committed),
	// not a failure.
	ErrNotFound = errors.New("not found")

	// ErrInvalidSecret means an empty or malformed secret was handed to the
	// commitment engine. Committing with a weak secret would silently break
	// the hiding property, so this fails fast instead.
	ErrInvalidSecret = errors.New("invalid secret")

	// ErrSecretOverwriteHazard means a put would replace a secret that is
	// already bound to a submitted commitment. Overwriting it would make the
	// on-chain stake unrecoverable.
	ErrSecretOverwriteHazard = errors.New("secret already bound to a submitted commitment")

	// ErrSecretMissing means a reveal was attempted but no secret is stored
	// locally for the market, typically because the commit happened on a
	// different client. Distinct from any network failure.
	ErrSecretMissing = errors.New("no stored secret for market")

	// ErrStalePhase means an action was attempted outside its valid phase
	// window. Checked locally before any external call.
	ErrStalePhase = errors.New("action not valid in current phase")

	// ErrPartialBatchFailure means the first call of an ordered batch was
	// accepted but a later one failed (approval landed, commit did not).
	ErrPartialBatchFailure = errors.New("batch partially submitted")

	// ErrRemoteRejected means the settlement engine rejected the call, e.g.
	// a double commit. Often benign: the orchestrator maps detectable
	// already-done rejections to a completed status.
	ErrRemoteRejected = errors.New("rejected by settlement engine")

	// ErrDecodeFailure means an on-chain value could not be decoded. Only
	// cosmetic fields (the question text) recover with a placeholder;
	// everything else propagates.
	ErrDecodeFailure = errors.New("decode failure")

	// ErrAlreadyExists is returned by Generate when a secret is already
	// stored for the (participant, market) pair.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidDeadlines rejects market registrations whose reveal deadline
	// precedes the commit deadline.
	ErrInvalidDeadlines = errors.New("reveal deadline precedes commit deadline")
)

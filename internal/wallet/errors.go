package wallet

import "errors"

var (
	// ErrUnknownBranch is returned for branch names other than external or internal.
	ErrUnknownBranch = errors.New("unknown branch")

	// ErrInvalidPath is returned when a derivation path is not of the form m/<branch>/<index>.
	ErrInvalidPath = errors.New("invalid derivation path")

	// ErrPrivateKey is returned when an extended private key is supplied.
	ErrPrivateKey = errors.New("expected an extended public key but got a private key")

	// ErrUnsupportedVersion is returned for version bytes other than xpub, ypub or zpub.
	ErrUnsupportedVersion = errors.New("unsupported extended key version")
)

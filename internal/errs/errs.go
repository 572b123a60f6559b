// Package errs defines the keychain error taxonomy.
//
// "Not found" and "not matching" conditions are expressed as nil/false
// return values throughout the codebase, never as errors. The types here
// cover genuinely exceptional conditions and are what the request
// dispatcher translates into error responses at its boundary.
package errs

import "fmt"

// Kind classifies a keychain error.
type Kind int

const (
	// KindValidation marks missing or malformed request fields.
	KindValidation Kind = iota
	// KindAuth marks wrong vault password, locked vault, or a key missing
	// for an account/role.
	KindAuth
	// KindAuthority marks a key that exists but lacks sufficient on-chain
	// weight for the requested operation.
	KindAuthority
	// KindNetwork marks RPC unreachability after all retries.
	KindNetwork
	// KindChainRejection marks a broadcast accepted by a node but rejected
	// by the chain (e.g. insufficient balance).
	KindChainRejection
	// KindIntegrity marks a vault content-hash mismatch.
	KindIntegrity
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindAuthority:
		return "authority"
	case KindNetwork:
		return "network"
	case KindChainRejection:
		return "chain_rejection"
	case KindIntegrity:
		return "integrity"
	default:
		return "unknown"
	}
}

// Error is a classified keychain error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error // optional cause
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation creates a validation error with an optional cause.
func Validation(msg string, cause error) *Error {
	return &Error{Kind: KindValidation, Msg: msg, Err: cause}
}

// Auth creates an authentication error with an optional cause.
func Auth(msg string, cause error) *Error {
	return &Error{Kind: KindAuth, Msg: msg, Err: cause}
}

// Authority creates an on-chain authority error with an optional cause.
func Authority(msg string, cause error) *Error {
	return &Error{Kind: KindAuthority, Msg: msg, Err: cause}
}

// Network wraps a cause as a network error.
func Network(msg string, cause error) *Error {
	return &Error{Kind: KindNetwork, Msg: msg, Err: cause}
}

// ChainRejection wraps a node-side rejection.
func ChainRejection(msg string, cause error) *Error {
	return &Error{Kind: KindChainRejection, Msg: msg, Err: cause}
}

// Integrity creates a vault integrity error with an optional cause.
func Integrity(msg string, cause error) *Error {
	return &Error{Kind: KindIntegrity, Msg: msg, Err: cause}
}

// KindOf extracts the Kind from an error chain. ok is false when the
// chain contains no classified error.
func KindOf(err error) (Kind, bool) {
	for err != nil {
		if ke, isKE := err.(*Error); isKE {
			return ke.Kind, true
		}
		u, hasUnwrap := err.(interface{ Unwrap() error })
		if !hasUnwrap {
			return 0, false
		}
		err = u.Unwrap()
	}
	return 0, false
}

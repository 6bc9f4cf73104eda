/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package auth

import "errors"

var (
	// ErrSASLMalformedRequest represents a 'malformed-request' authentication error.
	ErrSASLMalformedRequest = errors.New("auth: malformed SASL payload")

	// ErrSASLNotAuthorized represents a 'not-authorized' authentication error.
	ErrSASLNotAuthorized = errors.New("auth: not authorized")

	// ErrSASLServerSignatureMismatch is returned when the final server
	// signature carried on SASL success could not be verified.
	ErrSASLServerSignatureMismatch = errors.New("auth: server signature mismatch")
)

// SASLError represents the failure condition received on a SASL '<failure/>' element.
type SASLError struct {
	Reason string
}

// Error satisfies error interface.
func (e *SASLError) Error() string {
	return "auth: " + e.Reason
}

// Authenticator defines a client-side SASL mechanism. The stream
// engine drives it: the initial response goes on the '<auth/>'
// element, every server '<challenge/>' payload is handed to
// ProcessChallenge, and the '<success/>' payload to ProcessSuccess.
type Authenticator interface {
	// Mechanism returns authenticator mechanism name.
	Mechanism() string

	// InitialResponse returns the payload to attach to the '<auth/>'
	// element, or nil if the mechanism sends none.
	InitialResponse() ([]byte, error)

	// ProcessChallenge computes the response for a server challenge.
	ProcessChallenge(challenge []byte) ([]byte, error)

	// ProcessSuccess verifies additional data received along
	// with SASL success.
	ProcessSuccess(data []byte) error

	// Authenticated returns whether or not the mechanism completed.
	Authenticated() bool

	// Reset resets authenticator internal state.
	Reset()
}

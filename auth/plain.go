/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package auth

// Plain represents a PLAIN client authenticator.
type Plain struct {
	username      string
	password      string
	authenticated bool
}

// NewPlain returns a new plain authenticator instance.
func NewPlain(username, password string) *Plain {
	return &Plain{username: username, password: password}
}

// Mechanism returns authenticator mechanism name.
func (p *Plain) Mechanism() string {
	return "PLAIN"
}

// InitialResponse returns the authzid/authcid/password tuple.
func (p *Plain) InitialResponse() ([]byte, error) {
	b := make([]byte, 0, len(p.username)+len(p.password)+2)
	b = append(b, 0)
	b = append(b, p.username...)
	b = append(b, 0)
	b = append(b, p.password...)
	return b, nil
}

// ProcessChallenge is never invoked for PLAIN.
func (p *Plain) ProcessChallenge(challenge []byte) ([]byte, error) {
	return nil, ErrSASLMalformedRequest
}

// ProcessSuccess completes the mechanism.
func (p *Plain) ProcessSuccess(data []byte) error {
	p.authenticated = true
	return nil
}

// Authenticated returns whether or not the mechanism completed.
func (p *Plain) Authenticated() bool {
	return p.authenticated
}

// Reset resets plain authenticator internal state.
func (p *Plain) Reset() {
	p.authenticated = false
}

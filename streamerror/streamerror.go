/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package streamerror

import (
	"github.com/ortuman/mink/xmpp"
)

const streamErrorNamespace = "urn:ietf:params:xml:ns:xmpp-streams"

// Error represents a "stream:error" element.
type Error struct {
	reason string
}

func newStreamError(reason string) *Error {
	return &Error{reason: reason}
}

// Element returns stream error XML node.
func (se *Error) Element() xmpp.XElement {
	ret := xmpp.NewElementName("stream:error")
	ret.AppendElement(xmpp.NewElementNamespace(se.reason, streamErrorNamespace))
	return ret
}

// Error satisfies error interface.
func (se *Error) Error() string {
	return se.reason
}

var (
	// ErrInvalidXML represents 'invalid-xml' stream error.
	ErrInvalidXML = newStreamError("invalid-xml")

	// ErrInvalidNamespace represents 'invalid-namespace' stream error.
	ErrInvalidNamespace = newStreamError("invalid-namespace")

	// ErrHostUnknown represents 'host-unknown' stream error.
	ErrHostUnknown = newStreamError("host-unknown")

	// ErrInvalidFrom represents 'invalid-from' stream error.
	ErrInvalidFrom = newStreamError("invalid-from")

	// ErrConnectionTimeout represents 'connection-timeout' stream error.
	ErrConnectionTimeout = newStreamError("connection-timeout")

	// ErrUnsupportedStanzaType represents 'unsupported-stanza-type' stream error.
	ErrUnsupportedStanzaType = newStreamError("unsupported-stanza-type")

	// ErrUnsupportedVersion represents 'unsupported-version' stream error.
	ErrUnsupportedVersion = newStreamError("unsupported-version")

	// ErrNotAuthorized represents 'not-authorized' stream error.
	ErrNotAuthorized = newStreamError("not-authorized")

	// ErrResourceConstraint represents 'resource-constraint' stream error.
	ErrResourceConstraint = newStreamError("resource-constraint")

	// ErrSystemShutdown represents 'system-shutdown' stream error.
	ErrSystemShutdown = newStreamError("system-shutdown")

	// ErrPolicyViolation represents 'policy-violation' stream error.
	ErrPolicyViolation = newStreamError("policy-violation")

	// ErrInternalServerError represents 'internal-server-error' stream error.
	ErrInternalServerError = newStreamError("internal-server-error")

	// ErrUndefinedCondition represents 'undefined-condition' stream error.
	ErrUndefinedCondition = newStreamError("undefined-condition")
)

// NewErrorFromElement maps a received "stream:error" element to
// an Error value keyed by its defined condition.
func NewErrorFromElement(elem xmpp.XElement) *Error {
	for _, child := range elem.Elements().All() {
		if child.Attributes().Get("xmlns") != streamErrorNamespace || child.Name() == "text" {
			continue
		}
		return newStreamError(child.Name())
	}
	return ErrUndefinedCondition
}

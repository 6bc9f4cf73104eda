/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xmpp

import "strconv"

const errorNamespace = "urn:ietf:params:xml:ns:xmpp-stanzas"

// Stanza error types.
const (
	// AuthErrorType represents an 'auth' stanza error type.
	AuthErrorType = "auth"

	// CancelErrorType represents a 'cancel' stanza error type.
	CancelErrorType = "cancel"

	// ModifyErrorType represents a 'modify' stanza error type.
	ModifyErrorType = "modify"

	// WaitErrorType represents a 'wait' stanza error type.
	WaitErrorType = "wait"
)

// StanzaError represents a stanza "error" element.
type StanzaError struct {
	code      int
	reason    string
	errorType string
}

func newStanzaError(code int, errorType string, reason string) *StanzaError {
	return &StanzaError{
		code:      code,
		reason:    reason,
		errorType: errorType,
	}
}

// Code returns the error numeric code.
func (se *StanzaError) Code() int {
	return se.code
}

// Type returns the error type.
func (se *StanzaError) Type() string {
	return se.errorType
}

// Error satisfies error interface returning the defined condition.
func (se *StanzaError) Error() string {
	return se.reason
}

// Element returns the StanzaError equivalent XML element.
func (se *StanzaError) Element() XElement {
	err := NewElementName("error")
	err.SetAttribute("code", strconv.Itoa(se.code))
	err.SetAttribute("type", se.errorType)
	err.AppendElement(NewElementNamespace(se.reason, errorNamespace))
	return err
}

var (
	// ErrBadRequest is returned by the stream when the  sender
	// has sent XML that is malformed or that cannot be processed.
	ErrBadRequest = newStanzaError(400, ModifyErrorType, "bad-request")

	// ErrConflict is returned by the stream when access cannot be
	// granted because an existing resource or session exists with
	// the same name or address.
	ErrConflict = newStanzaError(409, CancelErrorType, "conflict")

	// ErrFeatureNotImplemented is returned by the stream when the feature
	// requested is not implemented by the recipient or server and therefore
	// cannot be processed.
	ErrFeatureNotImplemented = newStanzaError(501, CancelErrorType, "feature-not-implemented")

	// ErrForbidden is returned by the stream when the requesting
	// entity does not possess the required permissions to perform the action.
	ErrForbidden = newStanzaError(403, AuthErrorType, "forbidden")

	// ErrGone is returned by the stream when the recipient or server
	// can no longer be contacted at this address.
	ErrGone = newStanzaError(302, ModifyErrorType, "gone")

	// ErrInternalServerError is returned by the stream when the server
	// could not process the stanza because of a misconfiguration
	// or an otherwise-undefined internal server error.
	ErrInternalServerError = newStanzaError(500, WaitErrorType, "internal-server-error")

	// ErrItemNotFound is returned by the stream when the addressed
	// JID or item requested cannot be found.
	ErrItemNotFound = newStanzaError(404, CancelErrorType, "item-not-found")

	// ErrJidMalformed is returned by the stream when the sending entity
	// has provided or communicated an XMPP address or aspect thereof that
	// does not adhere to the syntax defined in RFC 3920.
	ErrJidMalformed = newStanzaError(400, ModifyErrorType, "jid-malformed")

	// ErrNotAcceptable is returned by the stream when the recipient
	// or server understands the request but refuses to process it
	// because it does not meet the recipient's criteria.
	ErrNotAcceptable = newStanzaError(406, ModifyErrorType, "not-acceptable")

	// ErrNotAllowed is returned by the stream when the recipient
	// or server does not allow any entity to perform the action.
	ErrNotAllowed = newStanzaError(405, CancelErrorType, "not-allowed")

	// ErrNotAuthorized is returned by the stream when the sender
	// must provide proper credentials before being allowed to perform the action,
	// or has provided improper credentials.
	ErrNotAuthorized = newStanzaError(405, AuthErrorType, "not-authorized")

	// ErrPaymentRequired is returned by the stream when the requesting entity
	// is not authorized to access the requested service because payment is required.
	ErrPaymentRequired = newStanzaError(402, AuthErrorType, "payment-required")

	// ErrRecipientUnavailable is returned by the stream when the intended
	// recipient is temporarily unavailable.
	ErrRecipientUnavailable = newStanzaError(404, WaitErrorType, "recipient-unavailable")

	// ErrRedirect is returned by the stream when the recipient or server
	// is redirecting requests for this information to another entity, usually temporarily.
	ErrRedirect = newStanzaError(302, ModifyErrorType, "redirect")

	// ErrRegistrationRequired is returned by the stream when the requesting entity
	// is not authorized to access the requested service because registration is required.
	ErrRegistrationRequired = newStanzaError(407, AuthErrorType, "registration-required")

	// ErrRemoteServerNotFound is returned by the stream when a remote server
	// or service specified as part or all of the JID of the intended recipient does not exist.
	ErrRemoteServerNotFound = newStanzaError(404, CancelErrorType, "remote-server-not-found")

	// ErrRemoteServerTimeout is returned by the stream when a remote server
	// or service specified as part or all of the JID of the intended recipient
	// could not be contacted within a reasonable amount of time.
	ErrRemoteServerTimeout = newStanzaError(504, WaitErrorType, "remote-server-timeout")

	// ErrResourceConstraint is returned by the stream when the server or recipient
	// lacks the system resources necessary to service the request.
	ErrResourceConstraint = newStanzaError(500, WaitErrorType, "resource-constraint")

	// ErrServiceUnavailable is returned by the stream when the server or recipient
	// does not currently provide the requested service.
	ErrServiceUnavailable = newStanzaError(503, CancelErrorType, "service-unavailable")

	// ErrSubscriptionRequired is returned by the stream when the requesting entity
	// is not authorized to access the requested service because a subscription is required.
	ErrSubscriptionRequired = newStanzaError(407, AuthErrorType, "subscription-required")

	// ErrUndefinedCondition is returned by the stream when the error condition
	// is not one of those defined by the other conditions in this list.
	ErrUndefinedCondition = newStanzaError(500, WaitErrorType, "undefined-condition")

	// ErrUnexpectedCondition is returned by the stream when the recipient or server
	// understood the request but was not expecting it at this time.
	ErrUnexpectedCondition = newStanzaError(400, WaitErrorType, "unexpected-condition")
)

// NewErrorElementFromElement returns a new error element cloned from elem,
// attaching the given stanza error and any extra error sub elements.
func NewErrorElementFromElement(elem XElement, stanzaErr *StanzaError, errorElements []XElement) XElement {
	errEl := NewElementFromElement(elem)
	errEl.SetAttribute("from", elem.To())
	errEl.SetAttribute("to", elem.From())
	errEl.SetType(ErrorType)

	err := NewElementFromElement(stanzaErr.Element())
	err.AppendElements(errorElements)
	errEl.AppendElement(err)
	return errEl
}

// NewStanzaErrorFromElement parses the 'error' child of an error stanza
// into a StanzaError value. Returns ErrUndefinedCondition when no
// recognizable condition is present.
func NewStanzaErrorFromElement(elem XElement) *StanzaError {
	errEl := elem.Error()
	if errEl == nil {
		return ErrUndefinedCondition
	}
	code, _ := strconv.Atoi(errEl.Attributes().Get("code"))
	errType := errEl.Type()
	for _, child := range errEl.Elements().All() {
		if child.Attributes().Get("xmlns") != errorNamespace || child.Name() == "text" {
			continue
		}
		if len(errType) == 0 {
			errType = CancelErrorType
		}
		return newStanzaError(code, errType, child.Name())
	}
	return ErrUndefinedCondition
}

// BadRequestError returns an error copy of the element
// attaching 'bad-request' error sub element.
func (e *Element) BadRequestError() XElement {
	return NewErrorElementFromElement(e, ErrBadRequest, nil)
}

// ConflictError returns an error copy of the element
// attaching 'conflict' error sub element.
func (e *Element) ConflictError() XElement {
	return NewErrorElementFromElement(e, ErrConflict, nil)
}

// FeatureNotImplementedError returns an error copy of the element
// attaching 'feature-not-implemented' error sub element.
func (e *Element) FeatureNotImplementedError() XElement {
	return NewErrorElementFromElement(e, ErrFeatureNotImplemented, nil)
}

// ForbiddenError returns an error copy of the element
// attaching 'forbidden' error sub element.
func (e *Element) ForbiddenError() XElement {
	return NewErrorElementFromElement(e, ErrForbidden, nil)
}

// InternalServerError returns an error copy of the element
// attaching 'internal-server-error' error sub element.
func (e *Element) InternalServerError() XElement {
	return NewErrorElementFromElement(e, ErrInternalServerError, nil)
}

// ItemNotFoundError returns an error copy of the element
// attaching 'item-not-found' error sub element.
func (e *Element) ItemNotFoundError() XElement {
	return NewErrorElementFromElement(e, ErrItemNotFound, nil)
}

// NotAcceptableError returns an error copy of the element
// attaching 'not-acceptable' error sub element.
func (e *Element) NotAcceptableError() XElement {
	return NewErrorElementFromElement(e, ErrNotAcceptable, nil)
}

// NotAllowedError returns an error copy of the element
// attaching 'not-allowed' error sub element.
func (e *Element) NotAllowedError() XElement {
	return NewErrorElementFromElement(e, ErrNotAllowed, nil)
}

// NotAuthorizedError returns an error copy of the element
// attaching 'not-authorized' error sub element.
func (e *Element) NotAuthorizedError() XElement {
	return NewErrorElementFromElement(e, ErrNotAuthorized, nil)
}

// ResourceConstraintError returns an error copy of the element
// attaching 'resource-constraint' error sub element.
func (e *Element) ResourceConstraintError() XElement {
	return NewErrorElementFromElement(e, ErrResourceConstraint, nil)
}

// ServiceUnavailableError returns an error copy of the element
// attaching 'service-unavailable' error sub element.
func (e *Element) ServiceUnavailableError() XElement {
	return NewErrorElementFromElement(e, ErrServiceUnavailable, nil)
}

/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xmpp

import (
	"fmt"

	"github.com/ortuman/mink/xmpp/jid"
)

const (
	// GetType represents a 'get' IQ type.
	GetType = "get"

	// SetType represents a 'set' IQ type.
	SetType = "set"

	// ResultType represents a 'result' IQ type.
	ResultType = "result"
)

// IQ type represents an <iq> element.
// All incoming <iq> elements providing from the
// stream will automatically be converted to IQ objects.
type IQ struct {
	Element
	to   *jid.JID
	from *jid.JID
}

// NewIQType creates and returns a new IQ element.
func NewIQType(identifier string, iqType string) *IQ {
	iq := &IQ{}
	iq.SetName("iq")
	iq.SetID(identifier)
	iq.SetType(iqType)
	return iq
}

// NewIQFromElement creates an IQ object from XElement.
func NewIQFromElement(e XElement, from *jid.JID, to *jid.JID) (*IQ, error) {
	if e.Name() != "iq" {
		return nil, fmt.Errorf("wrong IQ element name: %s", e.Name())
	}
	if len(e.ID()) == 0 {
		return nil, fmt.Errorf(`IQ "id" attribute is required`)
	}
	iqType := e.Type()
	if len(iqType) == 0 {
		return nil, fmt.Errorf(`IQ "type" attribute is required`)
	}
	if !isIQType(iqType) {
		return nil, fmt.Errorf(`invalid IQ "type" attribute: %s`, iqType)
	}
	if (iqType == GetType || iqType == SetType) && e.Elements().Count() != 1 {
		return nil, fmt.Errorf(`an IQ stanza of type "get" or "set" must contain one and only one child element`)
	}
	iq := &IQ{}
	iq.copyFrom(e)
	iq.SetFromJID(from)
	iq.SetToJID(to)
	iq.SetNamespace("")
	return iq, nil
}

// IsGet returns true if this is a 'get' type IQ.
func (iq *IQ) IsGet() bool {
	return iq.Type() == GetType
}

// IsSet returns true if this is a 'set' type IQ.
func (iq *IQ) IsSet() bool {
	return iq.Type() == SetType
}

// IsResult returns true if this is a 'result' type IQ.
func (iq *IQ) IsResult() bool {
	return iq.Type() == ResultType
}

// IsResponse returns true if this is a 'result' or 'error' type IQ.
func (iq *IQ) IsResponse() bool {
	return iq.IsResult() || iq.IsError()
}

// ResultIQ returns the instance associated result IQ.
func (iq *IQ) ResultIQ() *IQ {
	rs := &IQ{}
	rs.SetName("iq")
	rs.SetAttribute("xmlns", iq.Namespace())
	rs.SetAttribute("id", iq.ID())
	rs.SetAttribute("type", ResultType)
	rs.SetAttribute("to", iq.From())
	rs.SetAttribute("from", iq.To())
	rs.to = iq.from
	rs.from = iq.to
	return rs
}

// ToJID returns iq 'to' JID value.
func (iq *IQ) ToJID() *jid.JID {
	return iq.to
}

// SetToJID sets the IQ 'to' JID value.
func (iq *IQ) SetToJID(to *jid.JID) {
	iq.to = to
	if to != nil {
		iq.SetAttribute("to", to.String())
	} else {
		iq.RemoveAttribute("to")
	}
}

// FromJID returns iq 'from' JID value.
func (iq *IQ) FromJID() *jid.JID {
	return iq.from
}

// SetFromJID sets the IQ 'from' JID value.
func (iq *IQ) SetFromJID(from *jid.JID) {
	iq.from = from
	if from != nil {
		iq.SetAttribute("from", from.String())
	} else {
		iq.RemoveAttribute("from")
	}
}

func isIQType(tp string) bool {
	switch tp {
	case ErrorType, GetType, SetType, ResultType:
		return true
	}
	return false
}

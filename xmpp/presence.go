/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xmpp

import (
	"fmt"
	"strconv"

	"github.com/ortuman/mink/xmpp/jid"
)

const (
	// AvailableType represents an 'available' Presence type.
	AvailableType = ""

	// UnavailableType represents a 'unavailable' Presence type.
	UnavailableType = "unavailable"

	// SubscribeType represents a 'subscribe' Presence type.
	SubscribeType = "subscribe"

	// UnsubscribeType represents a 'unsubscribe' Presence type.
	UnsubscribeType = "unsubscribe"

	// SubscribedType represents a 'subscribed' Presence type.
	SubscribedType = "subscribed"

	// UnsubscribedType represents a 'unsubscribed' Presence type.
	UnsubscribedType = "unsubscribed"

	// ProbeType represents a 'probe' Presence type.
	ProbeType = "probe"
)

// ShowState represents Presence show state.
type ShowState int

const (
	// AvailableShowState represents 'available' Presence show state.
	AvailableShowState ShowState = iota

	// ChatShowState represents 'chat' Presence show state.
	ChatShowState

	// AwayShowState represents 'away' Presence show state.
	AwayShowState

	// XAShowState represents 'xa' Presence show state.
	XAShowState

	// DoNotDisturbShowState represents 'dnd' Presence show state.
	DoNotDisturbShowState
)

// Presence type represents a <presence> element.
// All incoming <presence> elements providing from the
// stream will automatically be converted to Presence objects.
type Presence struct {
	Element
	to        *jid.JID
	from      *jid.JID
	showState ShowState
	priority  int8
}

// NewPresence creates and returns a new Presence element.
func NewPresence(from *jid.JID, to *jid.JID, presenceType string) *Presence {
	p := &Presence{}
	p.SetName("presence")
	p.SetFromJID(from)
	p.SetToJID(to)
	p.SetType(presenceType)
	return p
}

// NewPresenceFromElement creates a Presence object from XElement.
func NewPresenceFromElement(e XElement, from *jid.JID, to *jid.JID) (*Presence, error) {
	if e.Name() != "presence" {
		return nil, fmt.Errorf("wrong Presence element name: %s", e.Name())
	}
	presenceType := e.Type()
	if !isPresenceType(presenceType) {
		return nil, fmt.Errorf(`invalid Presence "type" attribute: %s`, presenceType)
	}
	p := &Presence{}
	p.copyFrom(e)
	p.SetFromJID(from)
	p.SetToJID(to)
	p.SetNamespace("")

	// show
	if err := p.setShow(); err != nil {
		return nil, err
	}
	// priority
	if err := p.setPriority(); err != nil {
		return nil, err
	}
	return p, nil
}

// IsAvailable returns true if this is an 'available' type Presence.
func (p *Presence) IsAvailable() bool {
	return p.Type() == AvailableType
}

// IsUnavailable returns true if this is an 'unavailable' type Presence.
func (p *Presence) IsUnavailable() bool {
	return p.Type() == UnavailableType
}

// IsSubscribe returns true if this is a 'subscribe' type Presence.
func (p *Presence) IsSubscribe() bool {
	return p.Type() == SubscribeType
}

// IsUnsubscribe returns true if this is an 'unsubscribe' type Presence.
func (p *Presence) IsUnsubscribe() bool {
	return p.Type() == UnsubscribeType
}

// IsSubscribed returns true if this is a 'subscribed' type Presence.
func (p *Presence) IsSubscribed() bool {
	return p.Type() == SubscribedType
}

// IsUnsubscribed returns true if this is an 'unsubscribed' type Presence.
func (p *Presence) IsUnsubscribed() bool {
	return p.Type() == UnsubscribedType
}

// IsProbe returns true if this is a 'probe' type Presence.
func (p *Presence) IsProbe() bool {
	return p.Type() == ProbeType
}

// ShowState returns presence stanza show state.
func (p *Presence) ShowState() ShowState {
	return p.showState
}

// Priority returns presence stanza priority value.
func (p *Presence) Priority() int8 {
	return p.priority
}

// Status returns presence stanza default status.
func (p *Presence) Status() string {
	return p.StatusIn("")
}

// StatusIn returns presence stanza status associated to a language tag.
func (p *Presence) StatusIn(lang string) string {
	return languageText(p.elements.Children("status"), lang)
}

// ToJID returns presence 'to' JID value.
func (p *Presence) ToJID() *jid.JID {
	return p.to
}

// SetToJID sets the presence 'to' JID value.
func (p *Presence) SetToJID(to *jid.JID) {
	p.to = to
	if to != nil {
		p.SetAttribute("to", to.String())
	} else {
		p.RemoveAttribute("to")
	}
}

// FromJID returns presence 'from' JID value.
func (p *Presence) FromJID() *jid.JID {
	return p.from
}

// SetFromJID sets the presence 'from' JID value.
func (p *Presence) SetFromJID(from *jid.JID) {
	p.from = from
	if from != nil {
		p.SetAttribute("from", from.String())
	} else {
		p.RemoveAttribute("from")
	}
}

func isPresenceType(presenceType string) bool {
	switch presenceType {
	case ErrorType, AvailableType, UnavailableType, SubscribeType,
		UnsubscribeType, SubscribedType, UnsubscribedType, ProbeType:
		return true
	default:
		return false
	}
}

func (p *Presence) setShow() error {
	shElem := p.elements.Child("show")
	if shElem == nil {
		p.showState = AvailableShowState
		return nil
	}
	switch shElem.Text() {
	case "away":
		p.showState = AwayShowState
	case "chat":
		p.showState = ChatShowState
	case "dnd":
		p.showState = DoNotDisturbShowState
	case "xa":
		p.showState = XAShowState
	default:
		return fmt.Errorf(`invalid Presence "show" value: %s`, shElem.Text())
	}
	return nil
}

func (p *Presence) setPriority() error {
	priElem := p.elements.Child("priority")
	if priElem == nil {
		return nil
	}
	pri, err := strconv.Atoi(priElem.Text())
	if err != nil {
		return err
	}
	if pri < -128 || pri > 127 {
		return fmt.Errorf("invalid Presence priority value: %d", pri)
	}
	p.priority = int8(pri)
	return nil
}

/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xmpp

import (
	"fmt"
	"time"

	"github.com/ortuman/mink/xmpp/jid"
	"golang.org/x/text/language"
)

const delayNamespace = "urn:xmpp:delay"

const (
	// NormalType represents a 'normal' message type.
	NormalType = "normal"

	// HeadlineType represents a 'headline' message type.
	HeadlineType = "headline"

	// ChatType represents a 'chat' message type.
	ChatType = "chat"

	// GroupChatType represents a 'groupchat' message type.
	GroupChatType = "groupchat"
)

// Message type represents a <message> element.
// All incoming <message> elements providing from the
// stream will automatically be converted to Message objects.
type Message struct {
	Element
	to        *jid.JID
	from      *jid.JID
	timestamp time.Time
}

// NewMessageType creates and returns a new Message element.
func NewMessageType(identifier string, messageType string) *Message {
	msg := &Message{}
	msg.SetName("message")
	msg.SetID(identifier)
	msg.SetType(messageType)
	msg.timestamp = time.Now()
	return msg
}

// NewMessageFromElement creates a Message object from XElement.
func NewMessageFromElement(e XElement, from *jid.JID, to *jid.JID) (*Message, error) {
	if e.Name() != "message" {
		return nil, fmt.Errorf("wrong Message element name: %s", e.Name())
	}
	messageType := e.Type()
	if !isMessageType(messageType) {
		return nil, fmt.Errorf(`invalid Message "type" attribute: %s`, messageType)
	}
	m := &Message{}
	m.copyFrom(e)
	m.SetFromJID(from)
	m.SetToJID(to)
	m.SetNamespace("")
	m.timestamp = messageTimestamp(e)
	return m, nil
}

// IsNormal returns true if this is a 'normal' type Message.
func (m *Message) IsNormal() bool {
	return m.Type() == NormalType || m.Type() == ""
}

// IsHeadline returns true if this is a 'headline' type Message.
func (m *Message) IsHeadline() bool {
	return m.Type() == HeadlineType
}

// IsChat returns true if this is a 'chat' type Message.
func (m *Message) IsChat() bool {
	return m.Type() == ChatType
}

// IsGroupChat returns true if this is a 'groupchat' type Message.
func (m *Message) IsGroupChat() bool {
	return m.Type() == GroupChatType
}

// IsMessageWithBody returns true if the message
// has a body sub element.
func (m *Message) IsMessageWithBody() bool {
	return m.elements.Child("body") != nil
}

// Thread returns the message thread identifier.
func (m *Message) Thread() string {
	if th := m.elements.Child("thread"); th != nil {
		return th.Text()
	}
	return ""
}

// SetThread sets the message thread identifier.
func (m *Message) SetThread(thread string) {
	m.elements.remove("thread")
	th := NewElementName("thread")
	th.SetText(thread)
	m.AppendElement(th)
}

// Body returns the message body associated to a language tag.
// Passing an empty tag returns the default body.
func (m *Message) Body(lang string) string {
	return languageText(m.elements.Children("body"), lang)
}

// SetBody sets the message body for a language tag.
func (m *Message) SetBody(lang, body string) {
	setLanguageText(&m.Element, "body", lang, body)
}

// Subject returns the message subject associated to a language tag.
// Passing an empty tag returns the default subject.
func (m *Message) Subject(lang string) string {
	return languageText(m.elements.Children("subject"), lang)
}

// SetSubject sets the message subject for a language tag.
func (m *Message) SetSubject(lang, subject string) {
	setLanguageText(&m.Element, "subject", lang, subject)
}

// Timestamp returns the message timestamp. Delayed delivery messages
// derive it from the delay marker, otherwise local receive time applies.
func (m *Message) Timestamp() time.Time {
	return m.timestamp
}

// ToJID returns message 'to' JID value.
func (m *Message) ToJID() *jid.JID {
	return m.to
}

// SetToJID sets the message 'to' JID value.
func (m *Message) SetToJID(to *jid.JID) {
	m.to = to
	if to != nil {
		m.SetAttribute("to", to.String())
	} else {
		m.RemoveAttribute("to")
	}
}

// FromJID returns message 'from' JID value.
func (m *Message) FromJID() *jid.JID {
	return m.from
}

// SetFromJID sets the message 'from' JID value.
func (m *Message) SetFromJID(from *jid.JID) {
	m.from = from
	if from != nil {
		m.SetAttribute("from", from.String())
	} else {
		m.RemoveAttribute("from")
	}
}

func isMessageType(messageType string) bool {
	switch messageType {
	case "", ErrorType, NormalType, HeadlineType, ChatType, GroupChatType:
		return true
	default:
		return false
	}
}

func messageTimestamp(e XElement) time.Time {
	if delay := e.Elements().ChildNamespace("delay", delayNamespace); delay != nil {
		if stamp, err := time.Parse(time.RFC3339, delay.Attributes().Get("stamp")); err == nil {
			return stamp
		}
	}
	return time.Now()
}

func languageText(elems []XElement, lang string) string {
	var fallback string
	for i, el := range elems {
		elLang := el.Language()
		if elLang == lang {
			return el.Text()
		}
		if i == 0 || len(elLang) == 0 {
			fallback = el.Text()
		}
	}
	return fallback
}

func setLanguageText(e *Element, name, lang, text string) {
	if len(lang) > 0 {
		if _, err := language.Parse(lang); err != nil {
			return
		}
	}
	var kept elementSet
	for _, el := range e.elements {
		if el.Name() == name && el.Language() == lang {
			continue
		}
		kept = append(kept, el)
	}
	e.elements = kept
	child := NewElementName(name)
	if len(lang) > 0 {
		child.SetLanguage(lang)
	}
	child.SetText(text)
	e.AppendElement(child)
}

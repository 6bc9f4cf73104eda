/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xmpp

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/ortuman/mink/xmpp/jid"
)

// ErrorType represents an 'error' stanza type.
const ErrorType = "error"

// XElement represents a generic XML node element.
type XElement interface {
	Name() string
	Namespace() string

	ID() string
	Language() string
	Version() string

	From() string
	To() string
	Type() string

	Text() string

	Attributes() AttributeSet
	Elements() ElementSet

	ToXML(w io.Writer, includeClosing bool)

	Error() XElement
	String() string
}

// Stanza represents an XMPP stanza element: IQ, Message or Presence.
type Stanza interface {
	XElement
	FromJID() *jid.JID
	ToJID() *jid.JID
}

// Element represents a mutable XML node element.
type Element struct {
	name     string
	text     string
	attrs    attributeSet
	elements elementSet
}

// NewElementName creates a mutable XML XElement instance with a given name.
func NewElementName(name string) *Element {
	return &Element{name: name}
}

// NewElementNamespace creates a mutable XML XElement instance with a given name and namespace.
func NewElementNamespace(name, namespace string) *Element {
	e := &Element{name: name}
	e.attrs.setAttribute("xmlns", namespace)
	return e
}

// NewElementFromElement creates a mutable XML XElement by copying an element.
func NewElementFromElement(elem XElement) *Element {
	e := &Element{}
	e.copyFrom(elem)
	return e
}

// Name returns XML node name.
func (e *Element) Name() string {
	return e.name
}

// Namespace returns 'xmlns' node attribute.
func (e *Element) Namespace() string {
	return e.attrs.Get("xmlns")
}

// ID returns 'id' node attribute.
func (e *Element) ID() string {
	return e.attrs.Get("id")
}

// Language returns 'xml:lang' node attribute.
func (e *Element) Language() string {
	return e.attrs.Get("xml:lang")
}

// Version returns 'version' node attribute.
func (e *Element) Version() string {
	return e.attrs.Get("version")
}

// From returns 'from' node attribute.
func (e *Element) From() string {
	return e.attrs.Get("from")
}

// To returns 'to' node attribute.
func (e *Element) To() string {
	return e.attrs.Get("to")
}

// Type returns 'type' node attribute.
func (e *Element) Type() string {
	return e.attrs.Get("type")
}

// Text returns XML node text value.
func (e *Element) Text() string {
	return e.text
}

// SetName sets XML node name.
func (e *Element) SetName(name string) {
	e.name = name
}

// SetNamespace sets 'xmlns' node attribute.
func (e *Element) SetNamespace(namespace string) {
	e.attrs.setAttribute("xmlns", namespace)
}

// SetID sets 'id' node attribute.
func (e *Element) SetID(identifier string) {
	e.attrs.setAttribute("id", identifier)
}

// SetLanguage sets 'xml:lang' node attribute.
func (e *Element) SetLanguage(language string) {
	e.attrs.setAttribute("xml:lang", language)
}

// SetVersion sets 'version' node attribute.
func (e *Element) SetVersion(version string) {
	e.attrs.setAttribute("version", version)
}

// SetFrom sets 'from' node attribute.
func (e *Element) SetFrom(from string) {
	e.attrs.setAttribute("from", from)
}

// SetTo sets 'to' node attribute.
func (e *Element) SetTo(to string) {
	e.attrs.setAttribute("to", to)
}

// SetType sets 'type' node attribute.
func (e *Element) SetType(tp string) {
	e.attrs.setAttribute("type", tp)
}

// SetText sets XML node text value.
func (e *Element) SetText(text string) {
	e.text = text
}

// SetAttribute sets an XML node attribute (label=value).
func (e *Element) SetAttribute(label, value string) {
	e.attrs.setAttribute(label, value)
}

// RemoveAttribute removes an XML node attribute.
func (e *Element) RemoveAttribute(label string) {
	e.attrs.removeAttribute(label)
}

// Attributes returns XML node attribute value.
func (e *Element) Attributes() AttributeSet {
	return e.attrs
}

// AppendElement appends a new sub element.
func (e *Element) AppendElement(element XElement) {
	e.elements.append(element)
}

// AppendElements appends an array of sub elements.
func (e *Element) AppendElements(elements []XElement) {
	e.elements.append(elements...)
}

// RemoveElements removes all elements with a given name.
func (e *Element) RemoveElements(name string) {
	e.elements.remove(name)
}

// RemoveElementsNamespace removes all elements with a given name and namespace.
func (e *Element) RemoveElementsNamespace(name, namespace string) {
	e.elements.removeNamespace(name, namespace)
}

// ClearElements removes all elements.
func (e *Element) ClearElements() {
	e.elements.clear()
}

// Elements returns all instance's child elements.
func (e *Element) Elements() ElementSet {
	return e.elements
}

// Error returns 'error' sub element.
func (e *Element) Error() XElement {
	return e.elements.Child("error")
}

// IsStanza returns true if instance is an IQ, Message or Presence element.
func (e *Element) IsStanza() bool {
	switch e.name {
	case "iq", "message", "presence":
		return true
	default:
		return false
	}
}

// IsError returns true if element has a 'type' attribute of error value.
func (e *Element) IsError() bool {
	return e.Type() == ErrorType
}

// ToXML serializes element to a raw XML representation.
// includeClosing determines if closing tag should be attached.
func (e *Element) ToXML(w io.Writer, includeClosing bool) {
	io.WriteString(w, "<")
	io.WriteString(w, e.name)

	// serialize attributes
	e.attrs.toXML(w)

	textLen := len(e.text)
	if e.elements.Count() > 0 || textLen > 0 {
		io.WriteString(w, ">")

		// serialize text
		if textLen > 0 {
			escapeText(w, []byte(e.text))
		}
		// serialize child elements
		e.elements.toXML(w)

		if includeClosing {
			io.WriteString(w, "</")
			io.WriteString(w, e.name)
			io.WriteString(w, ">")
		}
	} else {
		if includeClosing {
			io.WriteString(w, "/>")
		} else {
			io.WriteString(w, ">")
		}
	}
}

// String returns a string representation of the element.
func (e *Element) String() string {
	buf := new(strings.Builder)
	e.ToXML(buf, true)
	return buf.String()
}

func (e *Element) copyFrom(el XElement) {
	e.name = el.Name()
	e.text = el.Text()
	attrs := make(attributeSet, el.Attributes().Count())
	attrs.copyFrom(el.Attributes().(attributeSet))
	e.attrs = attrs
	e.elements.copyFrom(el.Elements().(elementSet))
}

func escapeText(w io.Writer, text []byte) {
	xml.EscapeText(w, text)
}

/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xmpp

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

const rootElementIndex = -1

const streamName = "stream"

var (
	// ErrTooLargeStanza is returned by ParseElement when the size of
	// the received stanza is too large.
	ErrTooLargeStanza = errors.New("xmpp: too large stanza")

	// ErrStreamClosedByPeer is returned by ParseElement when the
	// stream closed element is parsed.
	ErrStreamClosedByPeer = errors.New("xmpp: stream closed by peer")
)

// Parser parses arbitrary XML input and builds an array with the structure of all tag and data elements.
type Parser struct {
	dec           *xml.Decoder
	nextElement   *Element
	parsingIndex  int
	parsingStack  []*Element
	inElement     bool
	lastOffset    int64
	maxStanzaSize int64
}

// NewParser creates an empty Parser instance.
func NewParser(reader io.Reader, maxStanzaSize int) *Parser {
	return &Parser{
		dec:           xml.NewDecoder(reader),
		parsingIndex:  rootElementIndex,
		maxStanzaSize: int64(maxStanzaSize),
	}
}

// ParseElement parses next available XML element from reader.
func (p *Parser) ParseElement() (XElement, error) {
	t, err := p.dec.RawToken()
	if err != nil {
		return nil, err
	}
	for {
		// check max stanza size limit
		off := p.dec.InputOffset()
		if p.maxStanzaSize > 0 && off-p.lastOffset > p.maxStanzaSize {
			return nil, ErrTooLargeStanza
		}
		switch t1 := t.(type) {
		case xml.ProcInst:
			break

		case xml.CharData:
			if p.inElement {
				p.setElementText(t1)
			}

		case xml.StartElement:
			p.startElement(t1)
			if isStreamName(t1.Name) && t1.Name.Local == streamName {
				// return stream <stream:stream> element
				p.closeElement()
				goto done
			}

		case xml.EndElement:
			if isStreamName(t1.Name) && t1.Name.Local == streamName {
				return nil, ErrStreamClosedByPeer
			}
			if err := p.endElement(t1); err != nil {
				return nil, err
			}
			if p.parsingIndex == rootElementIndex {
				goto done
			}
		}
		t, err = p.dec.RawToken()
		if err != nil {
			return nil, err
		}
	}
done:
	p.lastOffset = p.dec.InputOffset()
	ret := p.nextElement
	p.nextElement = nil
	return ret, nil
}

func (p *Parser) startElement(t xml.StartElement) {
	name := xmlName(t.Name)

	var attrs attributeSet
	for _, a := range t.Attr {
		attrs.setAttribute(xmlName(a.Name), a.Value)
	}
	element := &Element{name: name, attrs: attrs}
	p.parsingStack = append(p.parsingStack, element)
	p.parsingIndex = len(p.parsingStack) - 1
	p.inElement = true
}

func (p *Parser) setElementText(t xml.CharData) {
	if p.parsingIndex == rootElementIndex {
		return
	}
	elem := p.parsingStack[p.parsingIndex]
	elem.text += string(t)
}

func (p *Parser) endElement(t xml.EndElement) error {
	if p.parsingIndex == rootElementIndex {
		return errors.New("xmpp: unexpected end element")
	}
	name := xmlName(t.Name)
	if p.parsingStack[p.parsingIndex].Name() != name {
		return errors.New("xmpp: unexpected end element " + name)
	}
	p.closeElement()
	return nil
}

func (p *Parser) closeElement() {
	elem := p.parsingStack[p.parsingIndex]
	p.parsingStack = p.parsingStack[:p.parsingIndex]
	p.parsingIndex = len(p.parsingStack) - 1
	if p.parsingIndex == rootElementIndex {
		p.nextElement = elem
		p.inElement = false
	} else {
		p.parsingStack[p.parsingIndex].AppendElement(elem)
	}
}

func xmlName(name xml.Name) string {
	if len(name.Space) > 0 {
		return name.Space + ":" + name.Local
	}
	return name.Local
}

func isStreamName(name xml.Name) bool {
	return name.Space == streamName || strings.HasPrefix(name.Space, "http://etherx.jabber.org")
}

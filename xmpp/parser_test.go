/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xmpp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParserStreamHeader(t *testing.T) {
	docSrc := `<?xml version="1.0"?><stream:stream xmlns="jabber:client" xmlns:stream="http://etherx.jabber.org/streams" id="abc-1234" xml:lang="fr" version="1.0">`
	p := NewParser(strings.NewReader(docSrc), 0)
	elem, err := p.ParseElement()
	require.Nil(t, err)
	require.Equal(t, "stream:stream", elem.Name())
	require.Equal(t, "fr", elem.Language())
	require.Equal(t, "1.0", elem.Version())
}

func TestParserTopLevelElements(t *testing.T) {
	docSrc := `<message to="noelia@jackal.im"><body>hi!</body></message>` +
		"\n  \n" +
		`<presence from="noelia@jackal.im/balcony"><show>dnd</show></presence>`

	p := NewParser(strings.NewReader(docSrc), 0)

	msg, err := p.ParseElement()
	require.Nil(t, err)
	require.Equal(t, "message", msg.Name())
	require.Equal(t, "hi!", msg.Elements().Child("body").Text())

	prs, err := p.ParseElement()
	require.Nil(t, err)
	require.Equal(t, "presence", prs.Name())
	require.Equal(t, "noelia@jackal.im/balcony", prs.From())
}

func TestParserRoundTrip(t *testing.T) {
	docs := []string{
		`<iq id="iq-1" type="get"><query xmlns="jabber:iq:roster"/></iq>`,
		`<message to="a@b.c" type="chat"><body>hello world</body><thread>th-1</thread></message>`,
		`<presence><show>xa</show><priority>10</priority><status xml:lang="es">ocupado</status></presence>`,
		`<iq id="iq-2" type="set"><si xmlns="http://jabber.org/protocol/si" id="sid-1" profile="p"><feature xmlns="http://jabber.org/protocol/feature-neg"><x xmlns="jabber:x:data" type="form"><field var="stream-method" type="list-single"><option><value>ns-1</value></option></field></x></feature></si></iq>`,
	}
	for _, docSrc := range docs {
		p := NewParser(strings.NewReader(docSrc), 0)
		elem, err := p.ParseElement()
		require.Nil(t, err)
		require.Equal(t, docSrc, elem.String())
	}
}

func TestParserStreamClosedByPeer(t *testing.T) {
	docSrc := `<stream:stream xmlns:stream="http://etherx.jabber.org/streams" version="1.0">` +
		`<iq id="iq-1" type="result"/>` +
		`</stream:stream>`

	p := NewParser(strings.NewReader(docSrc), 0)

	_, err := p.ParseElement()
	require.Nil(t, err)

	iq, err := p.ParseElement()
	require.Nil(t, err)
	require.Equal(t, "iq", iq.Name())

	_, err = p.ParseElement()
	require.Equal(t, ErrStreamClosedByPeer, err)
}

func TestParserStreamError(t *testing.T) {
	docSrc := `<stream:error xmlns:stream="http://etherx.jabber.org/streams"><system-shutdown xmlns="urn:ietf:params:xml:ns:xmpp-streams"/></stream:error>`
	p := NewParser(strings.NewReader(docSrc), 0)
	elem, err := p.ParseElement()
	require.Nil(t, err)
	require.Equal(t, "stream:error", elem.Name())
	require.NotNil(t, elem.Elements().Child("system-shutdown"))
}

func TestParserTooLargeStanza(t *testing.T) {
	docSrc := `<message><body>` + strings.Repeat("A", 4096) + `</body></message>`
	p := NewParser(strings.NewReader(docSrc), 256)
	_, err := p.ParseElement()
	require.Equal(t, ErrTooLargeStanza, err)
}

func TestParserMismatchedEndElement(t *testing.T) {
	p := NewParser(strings.NewReader(`<message><body></message>`), 0)
	_, err := p.ParseElement()
	require.NotNil(t, err)
}

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

func TestElementAttributes(t *testing.T) {
	e := NewElementNamespace("query", "jabber:iq:roster")
	require.Equal(t, "query", e.Name())
	require.Equal(t, "jabber:iq:roster", e.Namespace())

	e.SetID("id-1234")
	require.Equal(t, "id-1234", e.ID())

	e.SetLanguage("es")
	require.Equal(t, "es", e.Language())

	e.SetAttribute("custom", "value")
	require.Equal(t, "value", e.Attributes().Get("custom"))
	require.Equal(t, 4, e.Attributes().Count())

	e.RemoveAttribute("custom")
	require.Equal(t, "", e.Attributes().Get("custom"))
}

func TestElementChildren(t *testing.T) {
	e := NewElementName("message")
	e.AppendElement(NewElementName("body"))
	e.AppendElement(NewElementNamespace("delay", "urn:xmpp:delay"))

	require.Equal(t, 2, e.Elements().Count())
	require.NotNil(t, e.Elements().Child("body"))
	require.NotNil(t, e.Elements().ChildNamespace("delay", "urn:xmpp:delay"))
	require.Nil(t, e.Elements().ChildNamespace("delay", "jabber:x:delay"))

	e.RemoveElements("body")
	require.Nil(t, e.Elements().Child("body"))

	e.ClearElements()
	require.Equal(t, 0, e.Elements().Count())
}

func TestElementSerialization(t *testing.T) {
	e := NewElementName("presence")
	e.SetTo("noelia@jackal.im")
	show := NewElementName("show")
	show.SetText("away")
	e.AppendElement(show)

	require.Equal(t, `<presence to="noelia@jackal.im"><show>away</show></presence>`, e.String())

	empty := NewElementName("ping")
	require.Equal(t, `<ping/>`, empty.String())
}

func TestElementTextEscaping(t *testing.T) {
	e := NewElementName("body")
	e.SetText(`1 < 2 & "quoted"`)

	serialized := e.String()
	require.False(t, strings.Contains(serialized, `1 < 2`))

	p := NewParser(strings.NewReader(serialized), 0)
	parsed, err := p.ParseElement()
	require.Nil(t, err)
	require.Equal(t, `1 < 2 & "quoted"`, parsed.Text())
}

func TestElementCopy(t *testing.T) {
	e := NewElementNamespace("x", "jabber:x:data")
	e.SetAttribute("type", "form")
	field := NewElementName("field")
	field.SetAttribute("var", "stream-method")
	e.AppendElement(field)

	cp := NewElementFromElement(e)
	require.Equal(t, e.String(), cp.String())

	// mutation must not propagate back
	cp.SetAttribute("type", "submit")
	require.Equal(t, "form", e.Type())
}

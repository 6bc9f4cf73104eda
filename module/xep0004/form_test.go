/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xep0004

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ortuman/mink/xmpp"
)

func TestFormBuild(t *testing.T) {
	elem := xmpp.NewElementNamespace("x", FormNamespace)
	elem.SetAttribute("type", "invalid")
	_, err := NewFormFromElement(elem)
	require.NotNil(t, err)

	elem.SetAttribute("type", Form)
	title := xmpp.NewElementName("title")
	title.SetText("File negotiation")
	elem.AppendElement(title)

	form, err := NewFormFromElement(elem)
	require.Nil(t, err)
	require.Equal(t, Form, form.Type)
	require.Equal(t, "File negotiation", form.Title)
}

func TestFormFieldTypeRoundTrip(t *testing.T) {
	types := []FieldType{
		Boolean, Fixed, Hidden, JidMulti, JidSingle,
		ListMulti, ListSingle, TextMulti, TextPrivate, TextSingle,
	}
	for _, fieldType := range types {
		f := Field{Var: "f", Type: fieldType, Values: []string{"v"}}
		parsed, err := NewFieldFromElement(f.Element())
		require.Nil(t, err)
		require.Equal(t, fieldType, parsed.Type)
	}
	_, err := NewFieldFromElement(func() xmpp.XElement {
		el := xmpp.NewElementName("field")
		el.SetAttribute("type", "no-such-type")
		return el
	}())
	require.NotNil(t, err)
}

func TestFormRoundTrip(t *testing.T) {
	form := &DataForm{
		Type: Form,
		Fields: []Field{
			{
				Var:  "stream-method",
				Type: ListSingle,
				Options: []Option{
					{Value: "http://jabber.org/protocol/bytestreams"},
					{Value: "http://jabber.org/protocol/ibb"},
				},
			},
			{Var: "allow", Type: Boolean, Values: []string{"1"}, Required: true},
		},
	}
	parsed, err := NewFormFromElement(form.Element())
	require.Nil(t, err)
	require.Equal(t, form.Type, parsed.Type)
	require.Equal(t, len(form.Fields), len(parsed.Fields))
	require.Equal(t, form.Fields[0].Options, parsed.Fields[0].Options)
	require.True(t, parsed.Fields[1].Required)
}

func TestFormFieldLookup(t *testing.T) {
	form := &DataForm{
		Type:   Submit,
		Fields: []Field{{Var: "stream-method", Values: []string{"ns-1"}}},
	}
	require.NotNil(t, form.FieldForVar("stream-method"))
	require.Nil(t, form.FieldForVar("unknown"))
	require.Equal(t, "ns-1", form.FieldForVar("stream-method").TextValue())
}

func TestBooleanFieldLeniency(t *testing.T) {
	truthy := []string{"1", "true", "yes", "garbage"}
	for _, value := range truthy {
		f := Field{Type: Boolean, Values: []string{value}}
		require.True(t, f.BoolValue(), value)
	}
	falsy := []string{"0", "false"}
	for _, value := range falsy {
		f := Field{Type: Boolean, Values: []string{value}}
		require.False(t, f.BoolValue(), value)
	}
	empty := Field{Type: Boolean}
	require.False(t, empty.BoolValue())
}

func TestFieldDefaultsToTextSingle(t *testing.T) {
	el := xmpp.NewElementName("field")
	el.SetAttribute("var", "desc")
	f, err := NewFieldFromElement(el)
	require.Nil(t, err)
	require.Equal(t, TextSingle, f.Type)
}

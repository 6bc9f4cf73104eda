/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xep0004

import (
	"fmt"

	"github.com/ortuman/mink/xmpp"
)

// FieldType represents a form field type.
type FieldType string

const (
	// Boolean represents a 'boolean' form field.
	Boolean FieldType = "boolean"

	// Fixed represents a 'fixed' form field.
	Fixed FieldType = "fixed"

	// Hidden represents a 'hidden' form field.
	Hidden FieldType = "hidden"

	// JidMulti represents a 'jid-multi' form field.
	JidMulti FieldType = "jid-multi"

	// JidSingle represents a 'jid-single' form field.
	JidSingle FieldType = "jid-single"

	// ListMulti represents a 'list-multi' form field.
	ListMulti FieldType = "list-multi"

	// ListSingle represents a 'list-single' form field.
	ListSingle FieldType = "list-single"

	// TextMulti represents a 'text-multi' form field.
	TextMulti FieldType = "text-multi"

	// TextPrivate represents a 'text-private' form field.
	TextPrivate FieldType = "text-private"

	// TextSingle represents a 'text-single' form field.
	TextSingle FieldType = "text-single"
)

// Option represents an individual field option.
type Option struct {
	Label string
	Value string
}

// Field represents a field of a form. The payload a field carries
// depends on its type: boolean fields hold a single truth value,
// list fields a set of options plus the selected values, text
// fields one or more lines of text.
type Field struct {
	Var         string
	Type        FieldType
	Label       string
	Description string
	Required    bool
	Values      []string
	Options     []Option
}

// NewFieldFromElement parses an XML element returning a derived
// form field instance.
func NewFieldFromElement(elem xmpp.XElement) (*Field, error) {
	if elem.Name() != "field" {
		return nil, fmt.Errorf("xep0004: invalid field element name: %s", elem.Name())
	}
	f := &Field{}
	f.Var = elem.Attributes().Get("var")
	f.Label = elem.Attributes().Get("label")

	typ := elem.Attributes().Get("type")
	if len(typ) > 0 {
		if !isValidFieldType(typ) {
			return nil, fmt.Errorf("xep0004: invalid field type: %s", typ)
		}
		f.Type = FieldType(typ)
	} else {
		f.Type = TextSingle
	}
	if desc := elem.Elements().Child("desc"); desc != nil {
		f.Description = desc.Text()
	}
	f.Required = elem.Elements().Child("required") != nil

	for _, valueEl := range elem.Elements().Children("value") {
		f.Values = append(f.Values, valueEl.Text())
	}
	for _, optionEl := range elem.Elements().Children("option") {
		var opt Option
		opt.Label = optionEl.Attributes().Get("label")
		if v := optionEl.Elements().Child("value"); v != nil {
			opt.Value = v.Text()
		}
		f.Options = append(f.Options, opt)
	}
	return f, nil
}

// Element returns the form field XML representation.
func (f *Field) Element() xmpp.XElement {
	el := xmpp.NewElementName("field")
	if len(f.Var) > 0 {
		el.SetAttribute("var", f.Var)
	}
	if len(f.Type) > 0 {
		el.SetAttribute("type", string(f.Type))
	}
	if len(f.Label) > 0 {
		el.SetAttribute("label", f.Label)
	}
	if len(f.Description) > 0 {
		desc := xmpp.NewElementName("desc")
		desc.SetText(f.Description)
		el.AppendElement(desc)
	}
	if f.Required {
		el.AppendElement(xmpp.NewElementName("required"))
	}
	for _, value := range f.Values {
		valueEl := xmpp.NewElementName("value")
		valueEl.SetText(value)
		el.AppendElement(valueEl)
	}
	for _, option := range f.Options {
		optionEl := xmpp.NewElementName("option")
		if len(option.Label) > 0 {
			optionEl.SetAttribute("label", option.Label)
		}
		valueEl := xmpp.NewElementName("value")
		valueEl.SetText(option.Value)
		optionEl.AppendElement(valueEl)
		el.AppendElement(optionEl)
	}
	return el
}

// BoolValue interprets the field value as a boolean. Parsing is
// deliberately lenient: any value other than "0" or "false" reads
// as true, matching what most deployed form implementations emit.
func (f *Field) BoolValue() bool {
	if len(f.Values) == 0 {
		return false
	}
	switch f.Values[0] {
	case "0", "false":
		return false
	default:
		return true
	}
}

// TextValue returns the first field value.
func (f *Field) TextValue() string {
	if len(f.Values) == 0 {
		return ""
	}
	return f.Values[0]
}

func isValidFieldType(typ string) bool {
	switch FieldType(typ) {
	case Boolean, Fixed, Hidden, JidMulti, JidSingle, ListMulti,
		ListSingle, TextMulti, TextPrivate, TextSingle:
		return true
	}
	return false
}

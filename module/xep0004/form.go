/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xep0004

import (
	"fmt"

	"github.com/ortuman/mink/xmpp"
)

// FormNamespace specifies the data forms namespace.
const FormNamespace = "jabber:x:data"

const (
	// Form represents a 'form' data form type.
	Form = "form"

	// Submit represents a 'submit' data form type.
	Submit = "submit"

	// Cancel represents a 'cancel' data form type.
	Cancel = "cancel"

	// Result represents a 'result' data form type.
	Result = "result"
)

// DataForm represents a form that could be use for gathering data
// as well as for reporting data returned from a search.
type DataForm struct {
	Type         string
	Title        string
	Instructions string
	Fields       []Field
}

// NewFormFromElement parses an XML element returning a derived
// data form instance.
func NewFormFromElement(elem xmpp.XElement) (*DataForm, error) {
	if elem.Name() != "x" {
		return nil, fmt.Errorf("xep0004: invalid form element name: %s", elem.Name())
	}
	if elem.Namespace() != FormNamespace {
		return nil, fmt.Errorf("xep0004: invalid form namespace: %s", elem.Namespace())
	}
	typ := elem.Type()
	if !isValidFormType(typ) {
		return nil, fmt.Errorf("xep0004: invalid form type: %s", typ)
	}
	form := &DataForm{Type: typ}
	if title := elem.Elements().Child("title"); title != nil {
		form.Title = title.Text()
	}
	if instructions := elem.Elements().Child("instructions"); instructions != nil {
		form.Instructions = instructions.Text()
	}
	for _, fieldEl := range elem.Elements().Children("field") {
		field, err := NewFieldFromElement(fieldEl)
		if err != nil {
			return nil, err
		}
		form.Fields = append(form.Fields, *field)
	}
	return form, nil
}

// Element returns the data form XML representation.
func (f *DataForm) Element() xmpp.XElement {
	el := xmpp.NewElementNamespace("x", FormNamespace)
	if len(f.Type) > 0 {
		el.SetAttribute("type", f.Type)
	}
	if len(f.Title) > 0 {
		title := xmpp.NewElementName("title")
		title.SetText(f.Title)
		el.AppendElement(title)
	}
	if len(f.Instructions) > 0 {
		instructions := xmpp.NewElementName("instructions")
		instructions.SetText(f.Instructions)
		el.AppendElement(instructions)
	}
	for i := 0; i < len(f.Fields); i++ {
		el.AppendElement(f.Fields[i].Element())
	}
	return el
}

// FieldForVar returns the form field identified by a 'var' attribute.
func (f *DataForm) FieldForVar(fieldVar string) *Field {
	for i := 0; i < len(f.Fields); i++ {
		if f.Fields[i].Var == fieldVar {
			return &f.Fields[i]
		}
	}
	return nil
}

func isValidFormType(typ string) bool {
	switch typ {
	case Form, Submit, Cancel, Result:
		return true
	}
	return false
}

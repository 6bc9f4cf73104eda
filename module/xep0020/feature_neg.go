/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xep0020

import (
	"fmt"

	"github.com/ortuman/mink/module"
	"github.com/ortuman/mink/module/xep0004"
	"github.com/ortuman/mink/xmpp"
)

// ModuleID is the feature negotiation module registry identifier.
const ModuleID = "feature_neg"

// FeatureNegNamespace specifies the feature negotiation namespace.
const FeatureNegNamespace = "http://jabber.org/protocol/feature-neg"

// FeatureNeg represents the feature negotiation module. It carries
// no stanza traffic of its own: negotiation forms ride inside other
// protocols, stream initiation among them.
type FeatureNeg struct{}

// New returns a feature negotiation module instance.
func New() *FeatureNeg {
	return &FeatureNeg{}
}

// ID returns the module stable identifier.
func (f *FeatureNeg) ID() string {
	return ModuleID
}

// Namespaces returns the module advertised namespaces.
func (f *FeatureNeg) Namespaces() []string {
	return []string{FeatureNegNamespace}
}

// Initialize satisfies module interface.
func (f *FeatureNeg) Initialize(_ *module.Registry) error {
	return nil
}

// OfferElement builds a '<feature/>' element offering a set of
// options for a negotiable variable.
func OfferElement(fieldVar string, options []string) xmpp.XElement {
	field := xep0004.Field{
		Var:  fieldVar,
		Type: xep0004.ListSingle,
	}
	for _, option := range options {
		field.Options = append(field.Options, xep0004.Option{Value: option})
	}
	form := xep0004.DataForm{Type: xep0004.Form, Fields: []xep0004.Field{field}}

	feature := xmpp.NewElementNamespace("feature", FeatureNegNamespace)
	feature.AppendElement(form.Element())
	return feature
}

// SubmitElement builds a '<feature/>' element submitting the
// selected value for a negotiable variable.
func SubmitElement(fieldVar, value string) xmpp.XElement {
	field := xep0004.Field{
		Var:    fieldVar,
		Values: []string{value},
	}
	form := xep0004.DataForm{Type: xep0004.Submit, Fields: []xep0004.Field{field}}

	feature := xmpp.NewElementNamespace("feature", FeatureNegNamespace)
	feature.AppendElement(form.Element())
	return feature
}

// OfferedOptions extracts the offered option values for a variable
// from a '<feature/>' element.
func OfferedOptions(feature xmpp.XElement, fieldVar string) ([]string, error) {
	form, err := negotiationForm(feature)
	if err != nil {
		return nil, err
	}
	field := form.FieldForVar(fieldVar)
	if field == nil {
		return nil, fmt.Errorf("xep0020: negotiation variable not present: %s", fieldVar)
	}
	var ret []string
	for _, option := range field.Options {
		ret = append(ret, option.Value)
	}
	return ret, nil
}

// SelectedValue extracts the submitted value for a variable from a
// '<feature/>' element.
func SelectedValue(feature xmpp.XElement, fieldVar string) (string, error) {
	form, err := negotiationForm(feature)
	if err != nil {
		return "", err
	}
	field := form.FieldForVar(fieldVar)
	if field == nil || len(field.Values) == 0 {
		return "", fmt.Errorf("xep0020: negotiation variable not submitted: %s", fieldVar)
	}
	return field.Values[0], nil
}

func negotiationForm(feature xmpp.XElement) (*xep0004.DataForm, error) {
	if feature.Name() != "feature" || feature.Namespace() != FeatureNegNamespace {
		return nil, fmt.Errorf("xep0020: invalid feature element")
	}
	x := feature.Elements().ChildNamespace("x", xep0004.FormNamespace)
	if x == nil {
		return nil, fmt.Errorf("xep0020: missing negotiation form")
	}
	return xep0004.NewFormFromElement(x)
}

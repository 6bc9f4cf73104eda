/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xep0016

import (
	"time"

	"github.com/ortuman/mink/module"
	"github.com/ortuman/mink/xmpp"
)

// ModuleID is the privacy lists module registry identifier.
const ModuleID = "privacy"

const privacyNamespace = "jabber:iq:privacy"

const requestTimeout = time.Minute

// ListNames holds the privacy list names stored at the server
// along with the active and default selections.
type ListNames struct {
	Names   []string
	Active  string
	Default string
}

// Privacy represents a privacy lists module.
type Privacy struct {
	stm module.Stream
}

// New returns a privacy lists module instance.
func New(stm module.Stream) *Privacy {
	return &Privacy{stm: stm}
}

// ID returns the module stable identifier.
func (p *Privacy) ID() string {
	return ModuleID
}

// Namespaces returns the module advertised namespaces.
func (p *Privacy) Namespaces() []string {
	return []string{privacyNamespace}
}

// Initialize satisfies module interface.
func (p *Privacy) Initialize(_ *module.Registry) error {
	return nil
}

// GetPrivacyLists retrieves the names of every privacy list stored
// at the server.
func (p *Privacy) GetPrivacyLists() (*ListNames, error) {
	iq := xmpp.NewIQType(p.stm.NextID(), xmpp.GetType)
	iq.AppendElement(xmpp.NewElementNamespace("query", privacyNamespace))

	resp, err := p.stm.SendIQ(iq, requestTimeout)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, xmpp.NewStanzaErrorFromElement(resp)
	}
	query := resp.Elements().ChildNamespace("query", privacyNamespace)
	if query == nil {
		return nil, xmpp.ErrBadRequest
	}
	ret := &ListNames{}
	for _, listEl := range query.Elements().Children("list") {
		ret.Names = append(ret.Names, listEl.Attributes().Get("name"))
	}
	if active := query.Elements().Child("active"); active != nil {
		ret.Active = active.Attributes().Get("name")
	}
	if def := query.Elements().Child("default"); def != nil {
		ret.Default = def.Attributes().Get("name")
	}
	return ret, nil
}

// GetPrivacyList fetches a privacy list by name.
func (p *Privacy) GetPrivacyList(name string) (*List, error) {
	iq := xmpp.NewIQType(p.stm.NextID(), xmpp.GetType)
	query := xmpp.NewElementNamespace("query", privacyNamespace)
	listEl := xmpp.NewElementName("list")
	listEl.SetAttribute("name", name)
	query.AppendElement(listEl)
	iq.AppendElement(query)

	resp, err := p.stm.SendIQ(iq, requestTimeout)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, xmpp.NewStanzaErrorFromElement(resp)
	}
	queryEl := resp.Elements().ChildNamespace("query", privacyNamespace)
	if queryEl == nil || queryEl.Elements().Child("list") == nil {
		return nil, xmpp.ErrItemNotFound
	}
	return NewListFromElement(queryEl.Elements().Child("list"))
}

// EditPrivacyList replaces or creates a privacy list. The list must
// contain at least one rule.
func (p *Privacy) EditPrivacyList(list *List) error {
	if err := list.Validate(); err != nil {
		return err
	}
	iq := xmpp.NewIQType(p.stm.NextID(), xmpp.SetType)
	query := xmpp.NewElementNamespace("query", privacyNamespace)
	query.AppendElement(list.Element())
	iq.AppendElement(query)

	return p.requestResult(iq)
}

// RemovePrivacyList removes a privacy list from the server.
func (p *Privacy) RemovePrivacyList(name string) error {
	iq := xmpp.NewIQType(p.stm.NextID(), xmpp.SetType)
	query := xmpp.NewElementNamespace("query", privacyNamespace)
	listEl := xmpp.NewElementName("list")
	listEl.SetAttribute("name", name)
	query.AppendElement(listEl)
	iq.AppendElement(query)

	return p.requestResult(iq)
}

// SetActivePrivacyList toggles the session scoped active list.
// Passing an empty name declines any active list.
func (p *Privacy) SetActivePrivacyList(name string) error {
	return p.setListSelection("active", name)
}

// SetDefaultPrivacyList toggles the account scoped default list.
// Passing an empty name declines any default list.
func (p *Privacy) SetDefaultPrivacyList(name string) error {
	return p.setListSelection("default", name)
}

func (p *Privacy) setListSelection(selection, name string) error {
	iq := xmpp.NewIQType(p.stm.NextID(), xmpp.SetType)
	query := xmpp.NewElementNamespace("query", privacyNamespace)
	sel := xmpp.NewElementName(selection)
	if len(name) > 0 {
		sel.SetAttribute("name", name)
	}
	query.AppendElement(sel)
	iq.AppendElement(query)

	return p.requestResult(iq)
}

// InterceptIQ acknowledges privacy list push notifications.
func (p *Privacy) InterceptIQ(iq *xmpp.IQ) bool {
	query := iq.Elements().ChildNamespace("query", privacyNamespace)
	if query == nil || !iq.IsSet() {
		return false
	}
	p.stm.SendElement(iq.ResultIQ())
	return true
}

func (p *Privacy) requestResult(iq *xmpp.IQ) error {
	resp, err := p.stm.SendIQ(iq, requestTimeout)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return xmpp.NewStanzaErrorFromElement(resp)
	}
	return nil
}

/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xep0030

import (
	"sort"
	"sync"
	"time"

	"github.com/ortuman/mink/module"
	"github.com/ortuman/mink/xmpp"
	"github.com/ortuman/mink/xmpp/jid"
)

// ModuleID is the service discovery module registry identifier.
const ModuleID = "disco"

const (
	discoInfoNamespace  = "http://jabber.org/protocol/disco#info"
	discoItemsNamespace = "http://jabber.org/protocol/disco#items"
)

const requestTimeout = time.Minute

// Identity represents a disco entity identity.
type Identity struct {
	Category string
	Type     string
	Name     string
}

// Item represents a disco item.
type Item struct {
	Jid  string
	Name string
	Node string
}

// Info holds the identities and features discovered about an entity.
type Info struct {
	Identities []Identity
	Features   []string
}

// DiscoInfo represents a service discovery module. It answers
// queries about the local entity and performs queries on remote ones.
type DiscoInfo struct {
	stm module.Stream

	mu       sync.RWMutex
	identity Identity
	features []string
}

// New returns a disco info module instance advertising a given
// client identity.
func New(stm module.Stream, identity Identity) *DiscoInfo {
	return &DiscoInfo{stm: stm, identity: identity}
}

// ID returns the module stable identifier.
func (di *DiscoInfo) ID() string {
	return ModuleID
}

// Namespaces returns the module advertised namespaces.
func (di *DiscoInfo) Namespaces() []string {
	return []string{discoInfoNamespace, discoItemsNamespace}
}

// Initialize collects the namespaces advertised by every
// registered module into the local feature set.
func (di *DiscoInfo) Initialize(reg *module.Registry) error {
	features := reg.Features()
	sort.Strings(features)

	di.mu.Lock()
	di.features = features
	di.mu.Unlock()
	return nil
}

// Identity returns the advertised client identity.
func (di *DiscoInfo) Identity() Identity {
	di.mu.RLock()
	defer di.mu.RUnlock()
	return di.identity
}

// Features returns the sorted local feature set.
func (di *DiscoInfo) Features() []string {
	di.mu.RLock()
	defer di.mu.RUnlock()
	ret := make([]string, len(di.features))
	copy(ret, di.features)
	return ret
}

// RequestInfo queries identities and features of a remote entity.
func (di *DiscoInfo) RequestInfo(to *jid.JID, node string) (*Info, error) {
	iq := xmpp.NewIQType(di.stm.NextID(), xmpp.GetType)
	iq.SetToJID(to)
	query := xmpp.NewElementNamespace("query", discoInfoNamespace)
	if len(node) > 0 {
		query.SetAttribute("node", node)
	}
	iq.AppendElement(query)

	resp, err := di.stm.SendIQ(iq, requestTimeout)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, xmpp.NewStanzaErrorFromElement(resp)
	}
	q := resp.Elements().ChildNamespace("query", discoInfoNamespace)
	if q == nil {
		return nil, xmpp.ErrBadRequest
	}
	info := &Info{}
	for _, identityEl := range q.Elements().Children("identity") {
		info.Identities = append(info.Identities, Identity{
			Category: identityEl.Attributes().Get("category"),
			Type:     identityEl.Attributes().Get("type"),
			Name:     identityEl.Attributes().Get("name"),
		})
	}
	for _, featureEl := range q.Elements().Children("feature") {
		if v := featureEl.Attributes().Get("var"); len(v) > 0 {
			info.Features = append(info.Features, v)
		}
	}
	return info, nil
}

// RequestItems queries the items associated to a remote entity.
func (di *DiscoInfo) RequestItems(to *jid.JID, node string) ([]Item, error) {
	iq := xmpp.NewIQType(di.stm.NextID(), xmpp.GetType)
	iq.SetToJID(to)
	query := xmpp.NewElementNamespace("query", discoItemsNamespace)
	if len(node) > 0 {
		query.SetAttribute("node", node)
	}
	iq.AppendElement(query)

	resp, err := di.stm.SendIQ(iq, requestTimeout)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, xmpp.NewStanzaErrorFromElement(resp)
	}
	q := resp.Elements().ChildNamespace("query", discoItemsNamespace)
	if q == nil {
		return nil, xmpp.ErrBadRequest
	}
	var items []Item
	for _, itemEl := range q.Elements().Children("item") {
		items = append(items, Item{
			Jid:  itemEl.Attributes().Get("jid"),
			Name: itemEl.Attributes().Get("name"),
			Node: itemEl.Attributes().Get("node"),
		})
	}
	return items, nil
}

// ServerSupportsFeature tells whether or not the own server
// advertises a feature namespace.
func (di *DiscoInfo) ServerSupportsFeature(feature string) (bool, error) {
	serverJID, err := jid.New("", di.stm.JID().Domain(), "", true)
	if err != nil {
		return false, err
	}
	info, err := di.RequestInfo(serverJID, "")
	if err != nil {
		return false, err
	}
	for _, f := range info.Features {
		if f == feature {
			return true, nil
		}
	}
	return false, nil
}

// InterceptIQ answers disco queries addressed to the local entity.
func (di *DiscoInfo) InterceptIQ(iq *xmpp.IQ) bool {
	q := iq.Elements().Child("query")
	if q == nil || !iq.IsGet() {
		return false
	}
	switch q.Namespace() {
	case discoInfoNamespace:
		di.sendDiscoInfo(iq)
	case discoItemsNamespace:
		di.sendDiscoItems(iq)
	default:
		return false
	}
	return true
}

func (di *DiscoInfo) sendDiscoInfo(iq *xmpp.IQ) {
	result := iq.ResultIQ()
	query := xmpp.NewElementNamespace("query", discoInfoNamespace)

	di.mu.RLock()
	identity := di.identity
	features := make([]string, len(di.features))
	copy(features, di.features)
	di.mu.RUnlock()

	identityEl := xmpp.NewElementName("identity")
	identityEl.SetAttribute("category", identity.Category)
	if len(identity.Type) > 0 {
		identityEl.SetAttribute("type", identity.Type)
	}
	if len(identity.Name) > 0 {
		identityEl.SetAttribute("name", identity.Name)
	}
	query.AppendElement(identityEl)

	for _, feature := range features {
		featureEl := xmpp.NewElementName("feature")
		featureEl.SetAttribute("var", feature)
		query.AppendElement(featureEl)
	}
	result.AppendElement(query)
	di.stm.SendElement(result)
}

func (di *DiscoInfo) sendDiscoItems(iq *xmpp.IQ) {
	result := iq.ResultIQ()
	result.AppendElement(xmpp.NewElementNamespace("query", discoItemsNamespace))
	di.stm.SendElement(result)
}

/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package roster

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/ortuman/mink/log"
	"github.com/ortuman/mink/model/rostermodel"
	"github.com/ortuman/mink/module"
	"github.com/ortuman/mink/storage"
	"github.com/ortuman/mink/xmpp"
	"github.com/ortuman/mink/xmpp/jid"
)

// ModuleID is the roster module registry identifier.
const ModuleID = "roster"

const rosterNamespace = "jabber:iq:roster"

const requestTimeout = time.Minute

// ErrOfflineStatus is returned by SetStatus when passing an Offline
// availability. Going offline is achieved by closing the stream.
var ErrOfflineStatus = errors.New("roster: offline is not a legal status")

// Roster represents the instant messaging session module: roster
// mirror, subscription workflow and presence broadcasting.
type Roster struct {
	stm module.Stream
	str storage.Storage

	mu               sync.RWMutex
	subscribeHandler func(from *jid.JID) bool
	updatedHandlers  []func(rostermodel.Item)
	approvedHandlers []func(*jid.JID)
	refusedHandlers  []func(*jid.JID)
	unsubHandlers    []func(*jid.JID)
	statusHandlers   []func(*jid.JID, *Status)
}

// New returns a roster module instance. The roster is fetched and
// initial presence broadcast once the stream session establishes.
func New(stm module.Stream, str storage.Storage) *Roster {
	r := &Roster{stm: stm, str: str}
	stm.OnSessionEstablished(func() {
		if _, err := r.FetchRoster(); err != nil {
			log.Error(err)
			return
		}
		if err := r.SetStatus(Online, nil, 0); err != nil {
			log.Error(err)
		}
	})
	return r
}

// ID returns the module stable identifier.
func (r *Roster) ID() string {
	return ModuleID
}

// Namespaces returns the module advertised namespaces.
func (r *Roster) Namespaces() []string {
	return nil
}

// Initialize satisfies module interface.
func (r *Roster) Initialize(_ *module.Registry) error {
	return nil
}

// SetSubscribeHandler installs the callback deciding inbound
// subscription requests. Returning true approves the request.
func (r *Roster) SetSubscribeHandler(handler func(from *jid.JID) bool) {
	r.mu.Lock()
	r.subscribeHandler = handler
	r.mu.Unlock()
}

// OnUpdated registers a roster update event handler.
func (r *Roster) OnUpdated(handler func(rostermodel.Item)) {
	r.mu.Lock()
	r.updatedHandlers = append(r.updatedHandlers, handler)
	r.mu.Unlock()
}

// OnSubscriptionApproved registers a subscription approval event handler.
func (r *Roster) OnSubscriptionApproved(handler func(*jid.JID)) {
	r.mu.Lock()
	r.approvedHandlers = append(r.approvedHandlers, handler)
	r.mu.Unlock()
}

// OnSubscriptionRefused registers a subscription refusal event handler.
func (r *Roster) OnSubscriptionRefused(handler func(*jid.JID)) {
	r.mu.Lock()
	r.refusedHandlers = append(r.refusedHandlers, handler)
	r.mu.Unlock()
}

// OnUnsubscribed registers an unsubscription event handler.
func (r *Roster) OnUnsubscribed(handler func(*jid.JID)) {
	r.mu.Lock()
	r.unsubHandlers = append(r.unsubHandlers, handler)
	r.mu.Unlock()
}

// OnStatus registers a contact status event handler.
func (r *Roster) OnStatus(handler func(*jid.JID, *Status)) {
	r.mu.Lock()
	r.statusHandlers = append(r.statusHandlers, handler)
	r.mu.Unlock()
}

// FetchRoster retrieves the server stored roster reconciling the
// local mirror.
func (r *Roster) FetchRoster() ([]rostermodel.Item, error) {
	iq := xmpp.NewIQType(r.stm.NextID(), xmpp.GetType)
	iq.AppendElement(xmpp.NewElementNamespace("query", rosterNamespace))

	resp, err := r.stm.SendIQ(iq, requestTimeout)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, xmpp.NewStanzaErrorFromElement(resp)
	}
	query := resp.Elements().ChildNamespace("query", rosterNamespace)
	if query == nil {
		return nil, nil
	}
	var items []rostermodel.Item
	for _, itemEl := range query.Elements().Children("item") {
		ri, err := rostermodel.NewItemFromElement(itemEl)
		if err != nil {
			log.Error(err)
			continue
		}
		if err := r.str.UpsertRosterItem(ri); err != nil {
			return nil, err
		}
		items = append(items, *ri)
	}
	return items, nil
}

// Items returns a snapshot of the local roster mirror.
func (r *Roster) Items() ([]rostermodel.Item, error) {
	return r.str.FetchRosterItems()
}

// AddContact inserts a contact into the server roster requesting a
// presence subscription afterwards.
func (r *Roster) AddContact(contactJID string, name string, groups ...string) error {
	j, err := jid.NewWithString(contactJID, false)
	if err != nil {
		return err
	}
	ri := rostermodel.Item{
		JID:    j.ToBareJID().String(),
		Name:   name,
		Groups: groups,
	}
	iq := xmpp.NewIQType(r.stm.NextID(), xmpp.SetType)
	query := xmpp.NewElementNamespace("query", rosterNamespace)
	query.AppendElement(ri.Element())
	iq.AppendElement(query)

	resp, err := r.stm.SendIQ(iq, requestTimeout)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return xmpp.NewStanzaErrorFromElement(resp)
	}
	return r.RequestSubscription(contactJID)
}

// RemoveContact removes a contact from the server roster, revoking
// any subscription in both directions.
func (r *Roster) RemoveContact(contactJID string) error {
	j, err := jid.NewWithString(contactJID, false)
	if err != nil {
		return err
	}
	item := xmpp.NewElementName("item")
	item.SetAttribute("jid", j.ToBareJID().String())
	item.SetAttribute("subscription", rostermodel.SubscriptionRemove)

	iq := xmpp.NewIQType(r.stm.NextID(), xmpp.SetType)
	query := xmpp.NewElementNamespace("query", rosterNamespace)
	query.AppendElement(item)
	iq.AppendElement(query)

	resp, err := r.stm.SendIQ(iq, requestTimeout)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return xmpp.NewStanzaErrorFromElement(resp)
	}
	return nil
}

// RequestSubscription sends a presence subscription request to a contact.
func (r *Roster) RequestSubscription(contactJID string) error {
	j, err := jid.NewWithString(contactJID, false)
	if err != nil {
		return err
	}
	presence := xmpp.NewPresence(r.stm.JID(), j.ToBareJID(), xmpp.SubscribeType)
	return r.stm.SendElement(presence)
}

// SetStatus broadcasts the client presence status. Messages maps a
// language tag to its status text, the empty tag being the default.
func (r *Roster) SetStatus(availability Availability, messages map[string]string, priority int8) error {
	if availability == Offline {
		return ErrOfflineStatus
	}
	presence := xmpp.NewPresence(r.stm.JID(), nil, xmpp.AvailableType)
	if show := showValue(availability); len(show) > 0 {
		showEl := xmpp.NewElementName("show")
		showEl.SetText(show)
		presence.AppendElement(showEl)
	}
	if priority != 0 {
		priorityEl := xmpp.NewElementName("priority")
		priorityEl.SetText(strconv.Itoa(int(priority)))
		presence.AppendElement(priorityEl)
	}
	for lang, text := range messages {
		statusEl := xmpp.NewElementName("status")
		if len(lang) > 0 {
			statusEl.SetLanguage(lang)
		}
		statusEl.SetText(text)
		presence.AppendElement(statusEl)
	}
	return r.stm.SendElement(presence)
}

// InterceptIQ processes roster push IQs. A push with no sender or from
// the account bare JID is applied; any other sender leaves the mirror
// unchanged.
func (r *Roster) InterceptIQ(iq *xmpp.IQ) bool {
	query := iq.Elements().ChildNamespace("query", rosterNamespace)
	if query == nil || !iq.IsSet() {
		return false
	}
	if !r.isTrustedPush(iq) {
		log.Warnf("ignored roster push... sender: %s", iq.From())
		return true
	}
	itemEl := query.Elements().Child("item")
	if itemEl == nil {
		r.stm.SendElement(iq.BadRequestError())
		return true
	}
	ri, err := rostermodel.NewItemFromElement(itemEl)
	if err != nil {
		r.stm.SendElement(iq.BadRequestError())
		return true
	}
	if err := r.applyPush(ri); err != nil {
		log.Error(err)
		r.stm.SendElement(iq.InternalServerError())
		return true
	}
	r.stm.SendElement(iq.ResultIQ())

	r.mu.RLock()
	handlers := make([]func(rostermodel.Item), len(r.updatedHandlers))
	copy(handlers, r.updatedHandlers)
	r.mu.RUnlock()
	for _, h := range handlers {
		h(*ri)
	}
	return true
}

// InterceptPresence drives the subscription state machine and
// translates availability presences into Status events.
func (r *Roster) InterceptPresence(presence *xmpp.Presence) bool {
	from := presence.FromJID()
	if from == nil {
		return false
	}
	switch {
	case presence.IsSubscribe():
		r.processSubscribe(from)
	case presence.IsSubscribed():
		r.notifyJID(from, r.snapshotJIDHandlers(&r.approvedHandlers))
	case presence.IsUnsubscribed():
		r.notifyJID(from, r.snapshotJIDHandlers(&r.refusedHandlers))
	case presence.IsUnsubscribe():
		r.notifyJID(from, r.snapshotJIDHandlers(&r.unsubHandlers))
	case presence.IsAvailable(), presence.IsUnavailable():
		st := NewStatusFromPresence(presence)
		r.mu.RLock()
		handlers := make([]func(*jid.JID, *Status), len(r.statusHandlers))
		copy(handlers, r.statusHandlers)
		r.mu.RUnlock()
		for _, h := range handlers {
			h(from, st)
		}
	default:
		return false
	}
	return true
}

func (r *Roster) processSubscribe(from *jid.JID) {
	r.mu.RLock()
	handler := r.subscribeHandler
	r.mu.RUnlock()

	responseType := xmpp.UnsubscribedType
	if handler != nil && handler(from) {
		responseType = xmpp.SubscribedType
	}
	r.stm.SendElement(xmpp.NewPresence(r.stm.JID(), from.ToBareJID(), responseType))
}

func (r *Roster) applyPush(ri *rostermodel.Item) error {
	if ri.Subscription == rostermodel.SubscriptionRemove {
		return r.str.DeleteRosterItem(ri.JID)
	}
	return r.str.UpsertRosterItem(ri)
}

func (r *Roster) isTrustedPush(iq *xmpp.IQ) bool {
	from := iq.FromJID()
	if from == nil {
		return true
	}
	own := r.stm.JID()
	return from.ToBareJID().Matches(own.ToBareJID(), jid.MatchesBare)
}

func (r *Roster) snapshotJIDHandlers(handlers *[]func(*jid.JID)) []func(*jid.JID) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]func(*jid.JID), len(*handlers))
	copy(ret, *handlers)
	return ret
}

func (r *Roster) notifyJID(j *jid.JID, handlers []func(*jid.JID)) {
	for _, h := range handlers {
		h(j.ToBareJID())
	}
}

/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package rostermodel

import (
	"fmt"

	"github.com/ortuman/mink/xmpp"
)

const (
	// SubscriptionNone represents a 'none' subscription state.
	SubscriptionNone = "none"

	// SubscriptionTo represents a 'to' subscription state.
	SubscriptionTo = "to"

	// SubscriptionFrom represents a 'from' subscription state.
	SubscriptionFrom = "from"

	// SubscriptionBoth represents a 'both' subscription state.
	SubscriptionBoth = "both"

	// SubscriptionRemove represents a 'remove' subscription state.
	SubscriptionRemove = "remove"
)

// Item represents a roster item entity.
type Item struct {
	JID          string
	Name         string
	Subscription string
	Ask          bool
	Groups       []string
}

// NewItemFromElement parses an XML element returning a derived roster item instance.
func NewItemFromElement(elem xmpp.XElement) (*Item, error) {
	if elem.Name() != "item" {
		return nil, fmt.Errorf("rostermodel: invalid item element name: %s", elem.Name())
	}
	ri := &Item{}
	if jd := elem.Attributes().Get("jid"); len(jd) > 0 {
		ri.JID = jd
	} else {
		return nil, fmt.Errorf(`rostermodel: item "jid" attribute is required`)
	}
	ri.Name = elem.Attributes().Get("name")

	subscription := elem.Attributes().Get("subscription")
	if len(subscription) > 0 {
		switch subscription {
		case SubscriptionBoth, SubscriptionFrom, SubscriptionTo, SubscriptionNone, SubscriptionRemove:
			break
		default:
			return nil, fmt.Errorf(`rostermodel: unrecognized "subscription" enum type: %s`, subscription)
		}
		ri.Subscription = subscription
	} else {
		ri.Subscription = SubscriptionNone
	}
	ask := elem.Attributes().Get("ask")
	if len(ask) > 0 {
		if ask != "subscribe" {
			return nil, fmt.Errorf(`rostermodel: unrecognized "ask" enum type: %s`, ask)
		}
		ri.Ask = true
	}
	groups := elem.Elements().Children("group")
	for _, group := range groups {
		if text := group.Text(); len(text) > 0 {
			ri.Groups = append(ri.Groups, text)
		}
	}
	return ri, nil
}

// Element returns a roster item XML element.
func (ri *Item) Element() xmpp.XElement {
	item := xmpp.NewElementName("item")
	item.SetAttribute("jid", ri.JID)
	if len(ri.Name) > 0 {
		item.SetAttribute("name", ri.Name)
	}
	if len(ri.Subscription) > 0 {
		item.SetAttribute("subscription", ri.Subscription)
	}
	if ri.Ask {
		item.SetAttribute("ask", "subscribe")
	}
	for _, group := range ri.Groups {
		gr := xmpp.NewElementName("group")
		gr.SetText(group)
		item.AppendElement(gr)
	}
	return item
}

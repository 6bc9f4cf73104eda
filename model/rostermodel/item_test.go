/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package rostermodel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ortuman/mink/xmpp"
)

func TestRosterItemRoundTrip(t *testing.T) {
	ri := Item{
		JID:          "noelia@jackal.im",
		Name:         "Noelia",
		Subscription: SubscriptionBoth,
		Ask:          true,
		Groups:       []string{"friends", "family"},
	}
	parsed, err := NewItemFromElement(ri.Element())
	require.Nil(t, err)
	require.Equal(t, ri, *parsed)
}

func TestRosterItemValidation(t *testing.T) {
	item := xmpp.NewElementName("item")
	_, err := NewItemFromElement(item) // missing jid
	require.NotNil(t, err)

	item.SetAttribute("jid", "noelia@jackal.im")
	ri, err := NewItemFromElement(item)
	require.Nil(t, err)
	require.Equal(t, SubscriptionNone, ri.Subscription)

	item.SetAttribute("subscription", "sometimes")
	_, err = NewItemFromElement(item)
	require.NotNil(t, err)

	item.SetAttribute("subscription", SubscriptionRemove)
	item.SetAttribute("ask", "unsubscribe")
	_, err = NewItemFromElement(item)
	require.NotNil(t, err)
}

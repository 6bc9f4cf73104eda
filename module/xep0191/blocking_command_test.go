/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xep0191

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ortuman/mink/module"
	"github.com/ortuman/mink/module/xep0016"
	"github.com/ortuman/mink/module/xep0030"
	"github.com/ortuman/mink/xmpp"
	"github.com/ortuman/mink/xmpp/jid"
)

func testSetup(t *testing.T) (*BlockingCommand, *module.MockStream) {
	j, _ := jid.New("ortuman", "jackal.im", "balcony", true)
	stm := module.NewMockStream(j)

	reg := module.NewRegistry()
	require.Nil(t, reg.Register(xep0030.New(stm, xep0030.Identity{Category: "client"})))
	require.Nil(t, reg.Register(xep0016.New(stm)))

	bc := New(stm)
	require.Nil(t, reg.Register(bc))
	require.Nil(t, reg.InitializeAll())
	return bc, stm
}

func serverFeaturesResponder(features ...string) func(iq *xmpp.IQ) (*xmpp.IQ, error) {
	return func(iq *xmpp.IQ) (*xmpp.IQ, error) {
		result := iq.ResultIQ()
		query := xmpp.NewElementNamespace("query", "http://jabber.org/protocol/disco#info")
		for _, f := range features {
			featureEl := xmpp.NewElementName("feature")
			featureEl.SetAttribute("var", f)
			query.AppendElement(featureEl)
		}
		result.AppendElement(query)
		return result, nil
	}
}

func TestBlockThroughBlockingCommand(t *testing.T) {
	bc, stm := testSetup(t)

	var blockIQ *xmpp.IQ
	stm.SetIQResponder(func(iq *xmpp.IQ) (*xmpp.IQ, error) {
		if iq.Elements().ChildNamespace("query", "http://jabber.org/protocol/disco#info") != nil {
			return serverFeaturesResponder(blockingCommandNamespace)(iq)
		}
		blockIQ = iq
		return iq.ResultIQ(), nil
	})
	j, _ := jid.NewWithString("mallory@evil/pc", true)
	require.Nil(t, bc.BlockJID(j))

	require.NotNil(t, blockIQ)
	block := blockIQ.Elements().ChildNamespace("block", blockingCommandNamespace)
	require.NotNil(t, block)
	require.Equal(t, "mallory@evil", block.Elements().Child("item").Attributes().Get("jid"))
}

func TestBlockThroughPrivacyListFallback(t *testing.T) {
	bc, stm := testSetup(t)

	var editedList xmpp.XElement
	var defaultSet, activeSet bool

	stm.SetIQResponder(func(iq *xmpp.IQ) (*xmpp.IQ, error) {
		if iq.Elements().ChildNamespace("query", "http://jabber.org/protocol/disco#info") != nil {
			// blocking command not supported
			return serverFeaturesResponder("jabber:iq:privacy")(iq)
		}
		query := iq.Elements().ChildNamespace("query", "jabber:iq:privacy")
		if query == nil {
			return iq.ResultIQ(), nil
		}
		switch {
		case iq.IsGet():
			// no blocklist stored yet
			errIQ := xmpp.NewIQType(iq.ID(), xmpp.ErrorType)
			errIQ.AppendElement(xmpp.ErrItemNotFound.Element())
			return errIQ, nil
		case query.Elements().Child("list") != nil:
			editedList = xmpp.NewElementFromElement(query.Elements().Child("list"))
			return iq.ResultIQ(), nil
		case query.Elements().Child("default") != nil:
			defaultSet = query.Elements().Child("default").Attributes().Get("name") == "blocklist"
			return iq.ResultIQ(), nil
		case query.Elements().Child("active") != nil:
			activeSet = query.Elements().Child("active").Attributes().Get("name") == "blocklist"
			return iq.ResultIQ(), nil
		}
		return iq.ResultIQ(), nil
	})
	j, _ := jid.NewWithString("mallory@evil", true)
	require.Nil(t, bc.BlockJID(j))

	require.NotNil(t, editedList)
	require.Equal(t, "blocklist", editedList.Attributes().Get("name"))
	item := editedList.Elements().Child("item")
	require.NotNil(t, item)
	require.Equal(t, "deny", item.Attributes().Get("action"))
	require.Equal(t, "jid", item.Attributes().Get("type"))
	require.Equal(t, "mallory@evil", item.Attributes().Get("value"))

	require.True(t, defaultSet)
	require.True(t, activeSet)
}

func TestBlockPushAcknowledged(t *testing.T) {
	bc, stm := testSetup(t)

	push := xmpp.NewIQType("push-1", xmpp.SetType)
	block := xmpp.NewElementNamespace("block", blockingCommandNamespace)
	item := xmpp.NewElementName("item")
	item.SetAttribute("jid", "mallory@evil")
	block.AppendElement(item)
	push.AppendElement(block)

	require.True(t, bc.InterceptIQ(push))
	result, ok := stm.FetchElement().(*xmpp.IQ)
	require.True(t, ok)
	require.True(t, result.IsResult())
}

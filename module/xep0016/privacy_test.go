/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xep0016

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ortuman/mink/module"
	"github.com/ortuman/mink/xmpp"
	"github.com/ortuman/mink/xmpp/jid"
)

func testSetup() (*Privacy, *module.MockStream) {
	j, _ := jid.New("ortuman", "jackal.im", "balcony", true)
	stm := module.NewMockStream(j)
	return New(stm), stm
}

func TestPrivacyListValidation(t *testing.T) {
	list := &List{Name: "blocklist"}
	require.NotNil(t, list.Validate()) // no rules

	list.Rules = []Rule{
		{Allow: false, Order: 1, Type: JID, Value: "mallory@evil"},
		{Allow: true, Order: 1},
	}
	require.NotNil(t, list.Validate()) // duplicated order

	list.Rules[1].Order = 2
	require.Nil(t, list.Validate())
}

func TestPrivacyListRoundTrip(t *testing.T) {
	list := &List{
		Name: "work",
		Rules: []Rule{
			{Allow: true, Order: 10, Type: Subscription, Value: "both"},
			{Allow: false, Order: 5, Type: Group, Value: "enemies", Granularity: BlockMessage | BlockPresenceIn},
			{Allow: false, Order: 20},
		},
	}
	parsed, err := NewListFromElement(list.Element())
	require.Nil(t, err)
	require.Equal(t, "work", parsed.Name)
	require.Equal(t, 3, len(parsed.Rules))

	// rules come back in ascending evaluation order
	require.Equal(t, uint32(5), parsed.Rules[0].Order)
	require.Equal(t, uint32(10), parsed.Rules[1].Order)
	require.Equal(t, uint32(20), parsed.Rules[2].Order)

	require.Equal(t, Group, parsed.Rules[0].Type)
	require.Equal(t, "enemies", parsed.Rules[0].Value)
	require.Equal(t, BlockMessage|BlockPresenceIn, parsed.Rules[0].Granularity)
	require.Equal(t, Generic, parsed.Rules[2].Type)
}

func TestPrivacyGetLists(t *testing.T) {
	p, stm := testSetup()

	stm.SetIQResponder(func(iq *xmpp.IQ) (*xmpp.IQ, error) {
		result := iq.ResultIQ()
		query := xmpp.NewElementNamespace("query", privacyNamespace)
		for _, name := range []string{"public", "work"} {
			listEl := xmpp.NewElementName("list")
			listEl.SetAttribute("name", name)
			query.AppendElement(listEl)
		}
		active := xmpp.NewElementName("active")
		active.SetAttribute("name", "work")
		query.AppendElement(active)
		def := xmpp.NewElementName("default")
		def.SetAttribute("name", "public")
		query.AppendElement(def)
		result.AppendElement(query)
		return result, nil
	})
	names, err := p.GetPrivacyLists()
	require.Nil(t, err)
	require.Equal(t, []string{"public", "work"}, names.Names)
	require.Equal(t, "work", names.Active)
	require.Equal(t, "public", names.Default)
}

func TestPrivacyEditRejectsEmptyList(t *testing.T) {
	p, _ := testSetup()
	err := p.EditPrivacyList(&List{Name: "empty"})
	require.NotNil(t, err)
}

func TestPrivacySetActive(t *testing.T) {
	p, stm := testSetup()

	require.Nil(t, p.SetActivePrivacyList("work"))
	iq, ok := stm.FetchElement().(*xmpp.IQ)
	require.True(t, ok)
	active := iq.Elements().ChildNamespace("query", privacyNamespace).Elements().Child("active")
	require.NotNil(t, active)
	require.Equal(t, "work", active.Attributes().Get("name"))

	// declining the active list omits the name attribute
	require.Nil(t, p.SetActivePrivacyList(""))
	iq, ok = stm.FetchElement().(*xmpp.IQ)
	require.True(t, ok)
	active = iq.Elements().ChildNamespace("query", privacyNamespace).Elements().Child("active")
	require.NotNil(t, active)
	require.Equal(t, "", active.Attributes().Get("name"))
}

func TestPrivacyPushAcknowledged(t *testing.T) {
	p, stm := testSetup()

	push := xmpp.NewIQType("push-1", xmpp.SetType)
	query := xmpp.NewElementNamespace("query", privacyNamespace)
	listEl := xmpp.NewElementName("list")
	listEl.SetAttribute("name", "work")
	query.AppendElement(listEl)
	push.AppendElement(query)

	require.True(t, p.InterceptIQ(push))
	result, ok := stm.FetchElement().(*xmpp.IQ)
	require.True(t, ok)
	require.True(t, result.IsResult())
}

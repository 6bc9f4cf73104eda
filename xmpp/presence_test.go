/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xmpp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ortuman/mink/xmpp/jid"
)

func TestPresenceBuild(t *testing.T) {
	j, _ := jid.New("ortuman", "jackal.im", "balcony", true)

	elem := NewElementName("message")
	_, err := NewPresenceFromElement(elem, j, j) // wrong name...
	require.NotNil(t, err)

	elem.SetName("presence")
	elem.SetType("invalid")
	_, err = NewPresenceFromElement(elem, j, j) // invalid type...
	require.NotNil(t, err)

	elem.SetType(SubscribeType)
	prs, err := NewPresenceFromElement(elem, j, j)
	require.Nil(t, err)
	require.True(t, prs.IsSubscribe())
}

func TestPresenceShowAndPriority(t *testing.T) {
	j, _ := jid.New("ortuman", "jackal.im", "balcony", true)

	elem := NewElementName("presence")
	show := NewElementName("show")
	show.SetText("dnd")
	elem.AppendElement(show)
	priority := NewElementName("priority")
	priority.SetText("64")
	elem.AppendElement(priority)

	prs, err := NewPresenceFromElement(elem, j, j)
	require.Nil(t, err)
	require.True(t, prs.IsAvailable())
	require.Equal(t, DoNotDisturbShowState, prs.ShowState())
	require.Equal(t, int8(64), prs.Priority())
}

func TestPresenceInvalidPriority(t *testing.T) {
	j, _ := jid.New("ortuman", "jackal.im", "balcony", true)

	elem := NewElementName("presence")
	priority := NewElementName("priority")
	priority.SetText("256")
	elem.AppendElement(priority)

	_, err := NewPresenceFromElement(elem, j, j)
	require.NotNil(t, err)
}

func TestPresenceStatusAlternates(t *testing.T) {
	j, _ := jid.New("ortuman", "jackal.im", "balcony", true)

	elem := NewElementName("presence")
	st1 := NewElementName("status")
	st1.SetText("busy")
	elem.AppendElement(st1)
	st2 := NewElementName("status")
	st2.SetLanguage("es")
	st2.SetText("ocupado")
	elem.AppendElement(st2)

	prs, err := NewPresenceFromElement(elem, j, j)
	require.Nil(t, err)
	require.Equal(t, "busy", prs.Status())
	require.Equal(t, "ocupado", prs.StatusIn("es"))
	require.Equal(t, "busy", prs.StatusIn("de"))
}

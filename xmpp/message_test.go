/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xmpp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ortuman/mink/xmpp/jid"
)

func TestMessageBuild(t *testing.T) {
	j, _ := jid.New("ortuman", "jackal.im", "balcony", true)

	elem := NewElementName("iq")
	_, err := NewMessageFromElement(elem, j, j) // wrong name...
	require.NotNil(t, err)

	elem.SetName("message")
	elem.SetType("invalid")
	_, err = NewMessageFromElement(elem, j, j) // invalid type...
	require.NotNil(t, err)

	elem.SetType(ChatType)
	msg, err := NewMessageFromElement(elem, j, j)
	require.Nil(t, err)
	require.True(t, msg.IsChat())
	require.False(t, msg.IsMessageWithBody())
}

func TestMessageLanguageAlternates(t *testing.T) {
	msg := NewMessageType("m-1", ChatType)
	msg.SetBody("", "hello")
	msg.SetBody("es", "hola")
	msg.SetSubject("", "greeting")

	require.Equal(t, "hello", msg.Body(""))
	require.Equal(t, "hola", msg.Body("es"))
	require.Equal(t, "hello", msg.Body("de")) // fallback to default
	require.Equal(t, "greeting", msg.Subject(""))

	// replacing an alternate must not duplicate it
	msg.SetBody("es", "buenas")
	require.Equal(t, "buenas", msg.Body("es"))
	require.Equal(t, 2, len(msg.Elements().Children("body")))
}

func TestMessageThread(t *testing.T) {
	msg := NewMessageType("m-1", ChatType)
	require.Equal(t, "", msg.Thread())

	msg.SetThread("th-1234")
	require.Equal(t, "th-1234", msg.Thread())
}

func TestMessageDelayedTimestamp(t *testing.T) {
	j, _ := jid.New("ortuman", "jackal.im", "balcony", true)

	elem := NewElementName("message")
	elem.SetType(ChatType)
	delay := NewElementNamespace("delay", "urn:xmpp:delay")
	delay.SetAttribute("stamp", "2019-04-22T09:30:00Z")
	elem.AppendElement(delay)

	msg, err := NewMessageFromElement(elem, j, j)
	require.Nil(t, err)

	expected, _ := time.Parse(time.RFC3339, "2019-04-22T09:30:00Z")
	require.Equal(t, expected, msg.Timestamp())
}

func TestMessageLocalTimestamp(t *testing.T) {
	j, _ := jid.New("ortuman", "jackal.im", "balcony", true)

	elem := NewElementName("message")
	elem.SetType(ChatType)

	before := time.Now()
	msg, err := NewMessageFromElement(elem, j, j)
	require.Nil(t, err)
	require.False(t, msg.Timestamp().Before(before))
}

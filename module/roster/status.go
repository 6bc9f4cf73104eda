/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package roster

import (
	"github.com/ortuman/mink/xmpp"
)

// Availability represents a contact availability state.
type Availability int

const (
	// Offline represents an unavailable contact. It is not a legal
	// argument to SetStatus.
	Offline Availability = iota

	// Online represents a plain available contact.
	Online

	// Chat represents a contact actively interested in chatting.
	Chat

	// Away represents a temporarily absent contact.
	Away

	// ExtendedAway represents a contact away for an extended period.
	ExtendedAway

	// DoNotDisturb represents a busy contact.
	DoNotDisturb
)

// Status represents a contact presence status.
type Status struct {
	Availability Availability
	Priority     int8
	Messages     map[string]string
}

// NewStatusFromPresence derives a Status value from an available
// or unavailable presence stanza.
func NewStatusFromPresence(presence *xmpp.Presence) *Status {
	st := &Status{Priority: presence.Priority()}
	if presence.IsUnavailable() {
		return st
	}
	switch presence.ShowState() {
	case xmpp.ChatShowState:
		st.Availability = Chat
	case xmpp.AwayShowState:
		st.Availability = Away
	case xmpp.XAShowState:
		st.Availability = ExtendedAway
	case xmpp.DoNotDisturbShowState:
		st.Availability = DoNotDisturb
	default:
		st.Availability = Online
	}
	st.Messages = map[string]string{}
	for _, status := range presence.Elements().Children("status") {
		st.Messages[status.Language()] = status.Text()
	}
	return st
}

func showValue(availability Availability) string {
	switch availability {
	case Chat:
		return "chat"
	case Away:
		return "away"
	case ExtendedAway:
		return "xa"
	case DoNotDisturb:
		return "dnd"
	default:
		return ""
	}
}

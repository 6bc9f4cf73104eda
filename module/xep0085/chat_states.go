/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xep0085

import (
	"sync"

	"github.com/ortuman/mink/module"
	"github.com/ortuman/mink/xmpp"
	"github.com/ortuman/mink/xmpp/jid"
)

// ModuleID is the chat state notifications module registry identifier.
const ModuleID = "chat_states"

const chatStatesNamespace = "http://jabber.org/protocol/chatstates"

// State represents a chat state notification.
type State string

const (
	// Active represents an 'active' chat state.
	Active State = "active"

	// Composing represents a 'composing' chat state.
	Composing State = "composing"

	// Paused represents a 'paused' chat state.
	Paused State = "paused"

	// Inactive represents an 'inactive' chat state.
	Inactive State = "inactive"

	// Gone represents a 'gone' chat state.
	Gone State = "gone"
)

// ChatStates represents a chat state notifications module. Outgoing
// chat messages carry an 'active' marker, and peer state changes
// surface through an event.
type ChatStates struct {
	stm module.Stream

	mu       sync.RWMutex
	handlers []func(from *jid.JID, state State)
}

// New returns a chat state notifications module instance.
func New(stm module.Stream) *ChatStates {
	return &ChatStates{stm: stm}
}

// ID returns the module stable identifier.
func (x *ChatStates) ID() string {
	return ModuleID
}

// Namespaces returns the module advertised namespaces.
func (x *ChatStates) Namespaces() []string {
	return []string{chatStatesNamespace}
}

// Initialize satisfies module interface.
func (x *ChatStates) Initialize(_ *module.Registry) error {
	return nil
}

// OnStateChanged registers a peer chat state event handler.
func (x *ChatStates) OnStateChanged(handler func(from *jid.JID, state State)) {
	x.mu.Lock()
	x.handlers = append(x.handlers, handler)
	x.mu.Unlock()
}

// SendState notifies a chat state to a remote entity.
func (x *ChatStates) SendState(to *jid.JID, state State) error {
	msg := xmpp.NewMessageType(x.stm.NextID(), xmpp.ChatType)
	msg.SetToJID(to)
	msg.AppendElement(xmpp.NewElementNamespace(string(state), chatStatesNamespace))
	return x.stm.SendElement(msg)
}

// FilterOutMessage stamps outgoing chat messages carrying a body
// with an 'active' chat state marker.
func (x *ChatStates) FilterOutMessage(message *xmpp.Message) {
	if !message.IsChat() || !message.IsMessageWithBody() {
		return
	}
	for _, state := range []State{Active, Composing, Paused, Inactive, Gone} {
		if message.Elements().ChildNamespace(string(state), chatStatesNamespace) != nil {
			return
		}
	}
	message.AppendElement(xmpp.NewElementNamespace(string(Active), chatStatesNamespace))
}

// InterceptMessage observes peer chat state markers. The message is
// left for remaining filters and handlers unless it carries nothing
// but the state marker.
func (x *ChatStates) InterceptMessage(message *xmpp.Message) bool {
	from := message.FromJID()
	if from == nil {
		return false
	}
	var state State
	for _, candidate := range []State{Active, Composing, Paused, Inactive, Gone} {
		if message.Elements().ChildNamespace(string(candidate), chatStatesNamespace) != nil {
			state = candidate
			break
		}
	}
	if len(state) == 0 {
		return false
	}
	x.mu.RLock()
	handlers := make([]func(*jid.JID, State), len(x.handlers))
	copy(handlers, x.handlers)
	x.mu.RUnlock()
	for _, h := range handlers {
		h(from, state)
	}
	// a bare notification carries no payload worth dispatching
	return !message.IsMessageWithBody()
}
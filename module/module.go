/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package module

import (
	"fmt"
	"sync"
	"time"

	"github.com/ortuman/mink/xmpp"
	"github.com/ortuman/mink/xmpp/jid"
)

// Stream represents the engine surface exposed to modules.
type Stream interface {
	// JID returns the stream bound JID.
	JID() *jid.JID

	// DefaultLanguage returns the server advertised default language.
	DefaultLanguage() string

	// NextID generates a unique stanza identifier.
	NextID() string

	// SendElement writes an XML element to the stream.
	SendElement(elem xmpp.XElement) error

	// SendIQ sends an IQ request blocking until its response arrives,
	// the timeout expires or the stream closes.
	SendIQ(iq *xmpp.IQ, timeout time.Duration) (*xmpp.IQ, error)

	// SendIQAsync sends an IQ request registering a response callback.
	SendIQAsync(iq *xmpp.IQ, timeout time.Duration, callback func(*xmpp.IQ, error)) error

	// OnSessionEstablished registers a handler invoked once the
	// stream session has been established.
	OnSessionEstablished(handler func())
}

// Module represents a generic engine extension.
type Module interface {
	// ID returns the module stable identifier.
	ID() string

	// Namespaces returns the XML namespaces implemented by the
	// module, advertised through service discovery.
	Namespaces() []string

	// Initialize is invoked once after every module has been
	// registered. Cross module dependencies are resolved here.
	Initialize(reg *Registry) error
}

// IQInputFilter is implemented by modules intercepting incoming IQs.
// Returning true short-circuits any remaining filter and the
// default dispatcher.
type IQInputFilter interface {
	InterceptIQ(iq *xmpp.IQ) bool
}

// MessageInputFilter is implemented by modules intercepting incoming messages.
type MessageInputFilter interface {
	InterceptMessage(message *xmpp.Message) bool
}

// PresenceInputFilter is implemented by modules intercepting incoming presences.
type PresenceInputFilter interface {
	InterceptPresence(presence *xmpp.Presence) bool
}

// IQOutputFilter is implemented by modules mutating outgoing IQs.
// Every registered output filter runs.
type IQOutputFilter interface {
	FilterOutIQ(iq *xmpp.IQ)
}

// MessageOutputFilter is implemented by modules mutating outgoing messages.
type MessageOutputFilter interface {
	FilterOutMessage(message *xmpp.Message)
}

// PresenceOutputFilter is implemented by modules mutating outgoing presences.
type PresenceOutputFilter interface {
	FilterOutPresence(presence *xmpp.Presence)
}

// Registry holds every registered module keyed by its identifier.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
	ordered []Module
}

// NewRegistry returns an empty module registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]Module)}
}

// Register adds a module to the registry.
func (r *Registry) Register(mod Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.modules[mod.ID()]; ok {
		return fmt.Errorf("module: identifier already registered: %s", mod.ID())
	}
	r.modules[mod.ID()] = mod
	r.ordered = append(r.ordered, mod)
	return nil
}

// Lookup resolves a previously registered module by identifier.
func (r *Registry) Lookup(id string) (Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mod, ok := r.modules[id]
	if !ok {
		return nil, fmt.Errorf("module: identifier not registered: %s", id)
	}
	return mod, nil
}

// Modules returns every registered module in registration order.
func (r *Registry) Modules() []Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]Module, len(r.ordered))
	copy(ret, r.ordered)
	return ret
}

// Features returns the namespaces advertised by every registered module.
func (r *Registry) Features() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ret []string
	for _, mod := range r.ordered {
		ret = append(ret, mod.Namespaces()...)
	}
	return ret
}

// InitializeAll invokes every module initialization hook in
// registration order.
func (r *Registry) InitializeAll() error {
	for _, mod := range r.Modules() {
		if err := mod.Initialize(r); err != nil {
			return err
		}
	}
	return nil
}

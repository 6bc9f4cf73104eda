/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package module

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ortuman/mink/xmpp"
	"github.com/ortuman/mink/xmpp/jid"
)

// MockStream represents an in process stream used from module tests.
type MockStream struct {
	mu           sync.RWMutex
	jd           *jid.JID
	counter      uint64
	elemCh       chan xmpp.XElement
	iqResponder  func(iq *xmpp.IQ) (*xmpp.IQ, error)
	sessHandlers []func()
}

// NewMockStream returns a new mocked stream instance.
func NewMockStream(jd *jid.JID) *MockStream {
	return &MockStream{
		jd:     jd,
		elemCh: make(chan xmpp.XElement, 64),
	}
}

// JID returns the stream bound JID.
func (m *MockStream) JID() *jid.JID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jd
}

// SetJID rebinds the mocked stream JID.
func (m *MockStream) SetJID(jd *jid.JID) {
	m.mu.Lock()
	m.jd = jd
	m.mu.Unlock()
}

// DefaultLanguage returns the server default language.
func (m *MockStream) DefaultLanguage() string {
	return "en"
}

// NextID generates a unique stanza identifier.
func (m *MockStream) NextID() string {
	return "iq-" + strconv.FormatUint(atomic.AddUint64(&m.counter, 1), 10)
}

// SendElement records an outgoing element.
func (m *MockStream) SendElement(elem xmpp.XElement) error {
	m.elemCh <- elem
	return nil
}

// SetIQResponder installs the function computing IQ request responses.
func (m *MockStream) SetIQResponder(responder func(iq *xmpp.IQ) (*xmpp.IQ, error)) {
	m.mu.Lock()
	m.iqResponder = responder
	m.mu.Unlock()
}

// SendIQ records the request element and returns the responder result.
func (m *MockStream) SendIQ(iq *xmpp.IQ, _ time.Duration) (*xmpp.IQ, error) {
	if len(iq.ID()) == 0 {
		iq.SetID(m.NextID())
	}
	m.elemCh <- iq
	m.mu.RLock()
	responder := m.iqResponder
	m.mu.RUnlock()
	if responder == nil {
		return iq.ResultIQ(), nil
	}
	return responder(iq)
}

// SendIQAsync records the request element invoking the callback with
// the responder result.
func (m *MockStream) SendIQAsync(iq *xmpp.IQ, timeout time.Duration, callback func(*xmpp.IQ, error)) error {
	resp, err := m.SendIQ(iq, timeout)
	callback(resp, err)
	return nil
}

// OnSessionEstablished records a session establishment handler.
func (m *MockStream) OnSessionEstablished(handler func()) {
	m.mu.Lock()
	m.sessHandlers = append(m.sessHandlers, handler)
	m.mu.Unlock()
}

// EstablishSession invokes every recorded session establishment handler.
func (m *MockStream) EstablishSession() {
	m.mu.RLock()
	handlers := make([]func(), len(m.sessHandlers))
	copy(handlers, m.sessHandlers)
	m.mu.RUnlock()
	for _, h := range handlers {
		h()
	}
}

// FetchElement returns the next recorded element, or nil when none
// arrives in a reasonable time.
func (m *MockStream) FetchElement() xmpp.XElement {
	select {
	case elem := <-m.elemCh:
		return elem
	case <-time.After(time.Second):
		return nil
	}
}

/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xep0095

import (
	"fmt"
	"sync"
	"time"

	"github.com/pborman/uuid"

	"github.com/ortuman/mink/module"
	"github.com/ortuman/mink/module/xep0020"
	"github.com/ortuman/mink/xmpp"
	"github.com/ortuman/mink/xmpp/jid"
)

// ModuleID is the stream initiation module registry identifier.
const ModuleID = "si"

const (
	siNamespace = "http://jabber.org/protocol/si"

	streamMethodVar = "stream-method"
)

const requestTimeout = 3 * time.Minute

// Result carries the outcome of a stream initiation offer.
type Result struct {
	SID    string
	Method string
}

// ProfileHandler processes inbound stream initiation offers for a
// registered profile, returning either the '<si/>' response element
// or a stanza error.
type ProfileHandler interface {
	ProcessStreamInitiation(iq *xmpp.IQ, si xmpp.XElement) (xmpp.XElement, *xmpp.StanzaError)
}

// StreamInitiation represents the stream initiation module. It
// negotiates a profile, a mime type and a stream method between two
// entities through an IQ carried feature negotiation form.
type StreamInitiation struct {
	stm module.Stream

	mu       sync.RWMutex
	profiles map[string]ProfileHandler
}

// New returns a stream initiation module instance.
func New(stm module.Stream) *StreamInitiation {
	return &StreamInitiation{
		stm:      stm,
		profiles: make(map[string]ProfileHandler),
	}
}

// ID returns the module stable identifier.
func (s *StreamInitiation) ID() string {
	return ModuleID
}

// Namespaces returns the module advertised namespaces.
func (s *StreamInitiation) Namespaces() []string {
	return []string{siNamespace}
}

// Initialize satisfies module interface.
func (s *StreamInitiation) Initialize(_ *module.Registry) error {
	return nil
}

// RegisterProfile associates a handler to a stream initiation profile.
func (s *StreamInitiation) RegisterProfile(profile string, handler ProfileHandler) {
	s.mu.Lock()
	s.profiles[profile] = handler
	s.mu.Unlock()
}

// InitiateStream offers a stream to a remote entity blocking until
// it selects a method or rejects the offer.
func (s *StreamInitiation) InitiateStream(to *jid.JID, mimeType, profile string, methods []string, extra xmpp.XElement) (*Result, error) {
	iq, sid := s.buildOffer(to, mimeType, profile, methods, extra)
	resp, err := s.stm.SendIQ(iq, requestTimeout)
	if err != nil {
		return nil, err
	}
	return parseOfferResponse(resp, sid)
}

// InitiateStreamAsync offers a stream to a remote entity invoking
// the callback once it selects a method or rejects the offer.
func (s *StreamInitiation) InitiateStreamAsync(to *jid.JID, mimeType, profile string, methods []string, extra xmpp.XElement, callback func(*Result, error)) error {
	iq, sid := s.buildOffer(to, mimeType, profile, methods, extra)
	return s.stm.SendIQAsync(iq, requestTimeout, func(resp *xmpp.IQ, err error) {
		if err != nil {
			callback(nil, err)
			return
		}
		callback(parseOfferResponse(resp, sid))
	})
}

// InterceptIQ routes inbound stream initiation offers to the
// registered profile handler.
func (s *StreamInitiation) InterceptIQ(iq *xmpp.IQ) bool {
	si := iq.Elements().ChildNamespace("si", siNamespace)
	if si == nil || !iq.IsSet() {
		return false
	}
	profile := si.Attributes().Get("profile")

	s.mu.RLock()
	handler := s.profiles[profile]
	s.mu.RUnlock()

	if handler == nil {
		badProfile := xmpp.NewElementNamespace("bad-profile", siNamespace)
		s.stm.SendElement(xmpp.NewErrorElementFromElement(iq, xmpp.ErrBadRequest, []xmpp.XElement{badProfile}))
		return true
	}
	response, stanzaErr := handler.ProcessStreamInitiation(iq, si)
	if stanzaErr != nil {
		s.stm.SendElement(xmpp.NewErrorElementFromElement(iq, stanzaErr, nil))
		return true
	}
	result := iq.ResultIQ()
	result.AppendElement(response)
	s.stm.SendElement(result)
	return true
}

func (s *StreamInitiation) buildOffer(to *jid.JID, mimeType, profile string, methods []string, extra xmpp.XElement) (*xmpp.IQ, string) {
	sid := uuid.New()

	si := xmpp.NewElementNamespace("si", siNamespace)
	si.SetAttribute("id", sid)
	if len(mimeType) > 0 {
		si.SetAttribute("mime-type", mimeType)
	}
	si.SetAttribute("profile", profile)
	if extra != nil {
		si.AppendElement(extra)
	}
	si.AppendElement(xep0020.OfferElement(streamMethodVar, methods))

	iq := xmpp.NewIQType(s.stm.NextID(), xmpp.SetType)
	iq.SetToJID(to)
	iq.AppendElement(si)
	return iq, sid
}

// SubmitResponse builds the '<si/>' element a profile handler
// returns when accepting an offer with the selected stream method.
func SubmitResponse(method string) xmpp.XElement {
	si := xmpp.NewElementNamespace("si", siNamespace)
	si.AppendElement(xep0020.SubmitElement(streamMethodVar, method))
	return si
}

// OfferedMethods extracts the offered stream methods from an
// inbound '<si/>' element.
func OfferedMethods(si xmpp.XElement) ([]string, error) {
	feature := si.Elements().ChildNamespace("feature", xep0020.FeatureNegNamespace)
	if feature == nil {
		return nil, fmt.Errorf("xep0095: missing feature negotiation element")
	}
	return xep0020.OfferedOptions(feature, streamMethodVar)
}

func parseOfferResponse(resp *xmpp.IQ, sid string) (*Result, error) {
	if resp.IsError() {
		return nil, xmpp.NewStanzaErrorFromElement(resp)
	}
	si := resp.Elements().ChildNamespace("si", siNamespace)
	if si == nil {
		return nil, fmt.Errorf("xep0095: missing si response element")
	}
	feature := si.Elements().ChildNamespace("feature", xep0020.FeatureNegNamespace)
	if feature == nil {
		return nil, fmt.Errorf("xep0095: missing feature negotiation element")
	}
	method, err := xep0020.SelectedValue(feature, streamMethodVar)
	if err != nil {
		return nil, err
	}
	return &Result{SID: sid, Method: method}, nil
}

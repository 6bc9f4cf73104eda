/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package stream

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ortuman/mink/auth"
	"github.com/ortuman/mink/log"
	"github.com/ortuman/mink/module"
	"github.com/ortuman/mink/streamerror"
	"github.com/ortuman/mink/transport"
	"github.com/ortuman/mink/xmpp"
	"github.com/ortuman/mink/xmpp/jid"
)

const (
	// Disconnected represents a disconnected stream state.
	Disconnected uint32 = iota

	// Connecting represents a connecting stream state.
	Connecting

	// Connected represents a connected stream state.
	Connected

	// Securing represents a securing stream state.
	Securing

	// Authenticating represents an authenticating stream state.
	Authenticating

	// Binding represents a resource binding stream state.
	Binding

	// SessionEstablished represents an established session stream state.
	SessionEstablished
)

const (
	jabberClientNamespace = "jabber:client"
	streamNamespace       = "http://etherx.jabber.org/streams"
	tlsNamespace          = "urn:ietf:params:xml:ns:xmpp-tls"
	saslNamespace         = "urn:ietf:params:xml:ns:xmpp-sasl"
	bindNamespace         = "urn:ietf:params:xml:ns:xmpp-bind"
	sessionNamespace      = "urn:ietf:params:xml:ns:xmpp-session"
)

const (
	streamMailboxSize     = 256
	defaultRequestTimeout = 30 * time.Second
)

var (
	// ErrNotConnected is returned when interacting with a stream
	// whose session has not been established.
	ErrNotConnected = errors.New("stream: not connected")

	// ErrAlreadyConnected is returned by Connect on a stream whose
	// session is already established.
	ErrAlreadyConnected = errors.New("stream: already connected")

	// ErrStreamClosed is returned by pending requests when the
	// stream closes underneath them.
	ErrStreamClosed = errors.New("stream: closed by peer or local end")

	// ErrTimeout is returned when an IQ request deadline expires.
	ErrTimeout = errors.New("stream: request timeout")

	// ErrTLSRequired is returned when the server requires STARTTLS
	// and TLS has been disabled by configuration.
	ErrTLSRequired = errors.New("stream: TLS required by server but disabled")

	// ErrNoSupportedMechanism is returned when no server SASL
	// mechanism is locally implemented.
	ErrNoSupportedMechanism = errors.New("stream: no supported SASL mechanism")
)

type pendingRequest struct {
	once     sync.Once
	callback func(*xmpp.IQ, error)
}

func (p *pendingRequest) deliver(iq *xmpp.IQ, err error) {
	p.once.Do(func() { p.callback(iq, err) })
}

// Engine represents the client-to-server XMPP stream engine.
type Engine struct {
	cfg     *Config
	reg     *module.Registry
	tr      transport.Transport
	parser  *xmpp.Parser
	state   uint32
	secured uint32

	jd          atomic.Value // *jid.JID
	defaultLang string

	idCounter uint64
	writeMu   sync.Mutex

	pendingReqs sync.Map // id -> *pendingRequest

	dispatchCh chan xmpp.Stanza
	doneCh     chan struct{}
	closeOnce  sync.Once
	lastErr    atomic.Value // error

	handlerMu    sync.RWMutex
	sessHandlers []func()
	errHandlers  []func(error)
	iqHandlers   []func(*xmpp.IQ)
	msgHandlers  []func(*xmpp.Message)
	prsHandlers  []func(*xmpp.Presence)
}

// New creates a stream engine associated to a module registry.
// Modules must be registered before calling Connect.
func New(cfg *Config, reg *module.Registry) *Engine {
	cfg.applyDefaults()
	e := &Engine{
		cfg:        cfg,
		reg:        reg,
		dispatchCh: make(chan xmpp.Stanza, streamMailboxSize),
		doneCh:     make(chan struct{}),
	}
	j, _ := jid.New(cfg.Username, cfg.Domain, "", true)
	e.jd.Store(j)
	return e
}

// Registry returns the engine associated module registry.
func (e *Engine) Registry() *module.Registry {
	return e.reg
}

// JID returns the stream bound JID.
func (e *Engine) JID() *jid.JID {
	return e.jd.Load().(*jid.JID)
}

// DefaultLanguage returns the server advertised default language.
func (e *Engine) DefaultLanguage() string {
	return e.defaultLang
}

// IsSecured returns whether or not the stream has been secured with TLS.
func (e *Engine) IsSecured() bool {
	return atomic.LoadUint32(&e.secured) == 1
}

// NextID generates a unique stanza identifier.
func (e *Engine) NextID() string {
	return "iq-" + strconv.FormatUint(atomic.AddUint64(&e.idCounter, 1), 10)
}

// OnSessionEstablished registers a handler invoked once the stream
// session has been established.
func (e *Engine) OnSessionEstablished(handler func()) {
	e.handlerMu.Lock()
	e.sessHandlers = append(e.sessHandlers, handler)
	e.handlerMu.Unlock()
}

// OnError registers a handler for the stream terminal error.
func (e *Engine) OnError(handler func(error)) {
	e.handlerMu.Lock()
	e.errHandlers = append(e.errHandlers, handler)
	e.handlerMu.Unlock()
}

// OnIQ registers a handler for incoming IQ requests not intercepted
// by any module.
func (e *Engine) OnIQ(handler func(*xmpp.IQ)) {
	e.handlerMu.Lock()
	e.iqHandlers = append(e.iqHandlers, handler)
	e.handlerMu.Unlock()
}

// OnMessage registers a handler for incoming messages not intercepted
// by any module.
func (e *Engine) OnMessage(handler func(*xmpp.Message)) {
	e.handlerMu.Lock()
	e.msgHandlers = append(e.msgHandlers, handler)
	e.handlerMu.Unlock()
}

// OnPresence registers a handler for incoming presences not
// intercepted by any module.
func (e *Engine) OnPresence(handler func(*xmpp.Presence)) {
	e.handlerMu.Lock()
	e.prsHandlers = append(e.prsHandlers, handler)
	e.handlerMu.Unlock()
}

// Connect establishes the XMPP session: TCP connection, stream
// opening, optional STARTTLS negotiation, SASL authentication,
// resource binding and session establishment. Blocks until the
// session is established or negotiation fails.
func (e *Engine) Connect() error {
	if !atomic.CompareAndSwapUint32(&e.state, Disconnected, Connecting) {
		return ErrAlreadyConnected
	}
	if err := e.reg.InitializeAll(); err != nil {
		return e.abort(err)
	}
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(e.cfg.Hostname, strconv.Itoa(e.cfg.Port)), e.cfg.ConnectTimeout)
	if err != nil {
		return e.abort(err)
	}
	e.tr = transport.NewSocketTransport(conn, e.cfg.KeepAlive)

	features, err := e.restartStream()
	if err != nil {
		return e.abort(err)
	}
	e.setState(Connected)

	// secure stream
	features, err = e.negotiateTLS(features)
	if err != nil {
		return e.abort(err)
	}
	// authenticate
	features, err = e.authenticate(features)
	if err != nil {
		return e.abort(err)
	}
	e.setState(Binding)

	// bind resource
	if err := e.bindResource(); err != nil {
		return e.abort(err)
	}
	// establish session
	if err := e.establishSession(features); err != nil {
		return e.abort(err)
	}
	e.setState(SessionEstablished)

	go e.readLoop()
	go e.dispatchLoop()

	log.Infof("session established... jid: %s", e.JID().String())

	e.handlerMu.RLock()
	handlers := make([]func(), len(e.sessHandlers))
	copy(handlers, e.sessHandlers)
	e.handlerMu.RUnlock()
	for _, h := range handlers {
		h()
	}
	return nil
}

// Close closes the stream sending the closing element and releasing
// every pending request.
func (e *Engine) Close() error {
	if e.getState() == Disconnected {
		return ErrNotConnected
	}
	e.writeMu.Lock()
	if e.tr != nil {
		e.tr.Write([]byte("</stream:stream>"))
	}
	e.writeMu.Unlock()
	e.terminate(nil)
	return nil
}

// Done signals stream termination.
func (e *Engine) Done() <-chan struct{} {
	return e.doneCh
}

// Error returns the stream latched terminal error, if any.
func (e *Engine) Error() error {
	err, _ := e.lastErr.Load().(error)
	return err
}

// SendElement writes an XML element to the stream. Outgoing stanzas
// run through every registered output filter before serialization.
func (e *Engine) SendElement(elem xmpp.XElement) error {
	if e.getState() == Disconnected {
		return ErrNotConnected
	}
	switch stanza := elem.(type) {
	case *xmpp.IQ:
		for _, mod := range e.reg.Modules() {
			if f, ok := mod.(module.IQOutputFilter); ok {
				f.FilterOutIQ(stanza)
			}
		}
	case *xmpp.Message:
		for _, mod := range e.reg.Modules() {
			if f, ok := mod.(module.MessageOutputFilter); ok {
				f.FilterOutMessage(stanza)
			}
		}
	case *xmpp.Presence:
		for _, mod := range e.reg.Modules() {
			if f, ok := mod.(module.PresenceOutputFilter); ok {
				f.FilterOutPresence(stanza)
			}
		}
	}
	return e.writeElement(elem)
}

// SendIQ sends an IQ request blocking until its response arrives,
// the timeout expires or the stream closes.
func (e *Engine) SendIQ(iq *xmpp.IQ, timeout time.Duration) (*xmpp.IQ, error) {
	if e.getState() != SessionEstablished {
		return nil, ErrNotConnected
	}
	type result struct {
		iq  *xmpp.IQ
		err error
	}
	resCh := make(chan result, 1)
	err := e.sendRequest(iq, func(resp *xmpp.IQ, err error) {
		resCh <- result{iq: resp, err: err}
	})
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	tm := time.NewTimer(timeout)
	defer tm.Stop()
	select {
	case res := <-resCh:
		return res.iq, res.err
	case <-tm.C:
		e.releaseRequest(iq.ID())
		return nil, ErrTimeout
	case <-e.doneCh:
		return nil, ErrStreamClosed
	}
}

// SendIQAsync sends an IQ request registering a response callback.
func (e *Engine) SendIQAsync(iq *xmpp.IQ, timeout time.Duration, callback func(*xmpp.IQ, error)) error {
	if e.getState() != SessionEstablished {
		return ErrNotConnected
	}
	if err := e.sendRequest(iq, callback); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	id := iq.ID()
	time.AfterFunc(timeout, func() {
		if req, ok := e.pendingReqs.Load(id); ok {
			e.pendingReqs.Delete(id)
			req.(*pendingRequest).deliver(nil, ErrTimeout)
		}
	})
	return nil
}

func (e *Engine) sendRequest(iq *xmpp.IQ, callback func(*xmpp.IQ, error)) error {
	if !iq.IsGet() && !iq.IsSet() {
		return fmt.Errorf("stream: IQ request type expected: %s", iq.Type())
	}
	if len(iq.ID()) == 0 {
		iq.SetID(e.NextID())
	}
	req := &pendingRequest{callback: callback}
	e.pendingReqs.Store(iq.ID(), req)
	if err := e.SendElement(iq); err != nil {
		e.pendingReqs.Delete(iq.ID())
		return err
	}
	return nil
}

func (e *Engine) releaseRequest(id string) {
	e.pendingReqs.Delete(id)
}

func (e *Engine) writeElement(elem xmpp.XElement) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if e.tr == nil {
		return ErrNotConnected
	}
	log.Debugf("SEND: %v", elem)
	_, err := e.tr.Write([]byte(elem.String()))
	return err
}

// runs on its own goroutine
func (e *Engine) readLoop() {
	for {
		elem, err := e.parser.ParseElement()
		if err != nil {
			e.terminate(mapReadError(err))
			return
		}
		if e.getState() == Disconnected {
			return
		}
		log.Debugf("RECV: %v", elem)
		if !e.processElement(elem) {
			return
		}
	}
}

func (e *Engine) processElement(elem xmpp.XElement) bool {
	switch elem.Name() {
	case "iq":
		iq, err := e.buildIQ(elem)
		if err != nil {
			e.terminate(streamerror.ErrInvalidXML)
			return false
		}
		if iq.IsResponse() {
			// short-circuit the dispatcher: deliver straight to the waiter
			if req, ok := e.pendingReqs.Load(iq.ID()); ok {
				e.pendingReqs.Delete(iq.ID())
				go req.(*pendingRequest).deliver(iq, nil)
			}
			return true
		}
		e.enqueue(iq)

	case "message":
		msg, err := xmpp.NewMessageFromElement(elem, e.senderJID(elem), e.JID())
		if err != nil {
			e.terminate(streamerror.ErrInvalidXML)
			return false
		}
		e.enqueue(msg)

	case "presence":
		prs, err := xmpp.NewPresenceFromElement(elem, e.senderJID(elem), e.JID())
		if err != nil {
			e.terminate(streamerror.ErrInvalidXML)
			return false
		}
		e.enqueue(prs)

	case "stream:error":
		e.terminate(streamerror.NewErrorFromElement(elem))
		return false

	default:
		e.terminate(streamerror.ErrUnsupportedStanzaType)
		return false
	}
	return true
}

func (e *Engine) buildIQ(elem xmpp.XElement) (*xmpp.IQ, error) {
	return xmpp.NewIQFromElement(elem, e.senderJID(elem), e.JID())
}

func (e *Engine) senderJID(elem xmpp.XElement) *jid.JID {
	if from := elem.From(); len(from) > 0 {
		if j, err := jid.NewWithString(from, true); err == nil {
			return j
		}
	}
	return nil
}

func (e *Engine) enqueue(stanza xmpp.Stanza) {
	select {
	case e.dispatchCh <- stanza:
	case <-e.doneCh:
	}
}

// runs on its own goroutine
func (e *Engine) dispatchLoop() {
	for {
		select {
		case stanza := <-e.dispatchCh:
			e.dispatch(stanza)
		case <-e.doneCh:
			return
		}
	}
}

func (e *Engine) dispatch(stanza xmpp.Stanza) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("dispatch panic: %v", r)
		}
	}()
	switch stanza := stanza.(type) {
	case *xmpp.IQ:
		for _, mod := range e.reg.Modules() {
			if f, ok := mod.(module.IQInputFilter); ok && f.InterceptIQ(stanza) {
				return
			}
		}
		e.handlerMu.RLock()
		handlers := make([]func(*xmpp.IQ), len(e.iqHandlers))
		copy(handlers, e.iqHandlers)
		e.handlerMu.RUnlock()
		for _, h := range handlers {
			h(stanza)
		}
		if len(handlers) == 0 && (stanza.IsGet() || stanza.IsSet()) {
			e.SendElement(stanza.ServiceUnavailableError())
		}

	case *xmpp.Message:
		for _, mod := range e.reg.Modules() {
			if f, ok := mod.(module.MessageInputFilter); ok && f.InterceptMessage(stanza) {
				return
			}
		}
		e.handlerMu.RLock()
		handlers := make([]func(*xmpp.Message), len(e.msgHandlers))
		copy(handlers, e.msgHandlers)
		e.handlerMu.RUnlock()
		for _, h := range handlers {
			h(stanza)
		}

	case *xmpp.Presence:
		for _, mod := range e.reg.Modules() {
			if f, ok := mod.(module.PresenceInputFilter); ok && f.InterceptPresence(stanza) {
				return
			}
		}
		e.handlerMu.RLock()
		handlers := make([]func(*xmpp.Presence), len(e.prsHandlers))
		copy(handlers, e.prsHandlers)
		e.handlerMu.RUnlock()
		for _, h := range handlers {
			h(stanza)
		}
	}
}

func (e *Engine) terminate(err error) {
	e.closeOnce.Do(func() {
		e.setState(Disconnected)
		if err != nil {
			e.lastErr.Store(err)
		}
		close(e.doneCh)

		// release pending requests so no caller blocks forever
		e.pendingReqs.Range(func(key, value interface{}) bool {
			e.pendingReqs.Delete(key)
			value.(*pendingRequest).deliver(nil, ErrStreamClosed)
			return true
		})
		if e.tr != nil {
			e.tr.Close()
		}
		if err != nil {
			log.Errorf("stream terminated: %v", err)
			e.handlerMu.RLock()
			handlers := make([]func(error), len(e.errHandlers))
			copy(handlers, e.errHandlers)
			e.handlerMu.RUnlock()
			for _, h := range handlers {
				h(err)
			}
		}
	})
}

func (e *Engine) abort(err error) error {
	e.terminate(err)
	return err
}

// restartStream opens a fresh XML stream over the current transport
// returning the server advertised features.
func (e *Engine) restartStream() (xmpp.XElement, error) {
	e.parser = xmpp.NewParser(e.tr, e.cfg.MaxStanzaSize)

	e.writeMu.Lock()
	_, err := e.tr.Write([]byte(fmt.Sprintf(
		`<?xml version="1.0"?><stream:stream to="%s" xmlns="%s" xmlns:stream="%s" version="1.0">`,
		e.cfg.Domain, jabberClientNamespace, streamNamespace)))
	e.writeMu.Unlock()
	if err != nil {
		return nil, err
	}
	header, err := e.parser.ParseElement()
	if err != nil {
		return nil, mapReadError(err)
	}
	if header.Name() != "stream:stream" {
		return nil, streamerror.ErrUnsupportedStanzaType
	}
	if lang := header.Language(); len(lang) > 0 {
		e.defaultLang = lang
	}
	features, err := e.readElement()
	if err != nil {
		return nil, err
	}
	if features.Name() != "stream:features" {
		return nil, streamerror.ErrUnsupportedStanzaType
	}
	return features, nil
}

func (e *Engine) readElement() (xmpp.XElement, error) {
	elem, err := e.parser.ParseElement()
	if err != nil {
		return nil, mapReadError(err)
	}
	if elem.Name() == "stream:error" {
		return nil, streamerror.NewErrorFromElement(elem)
	}
	return elem, nil
}

func (e *Engine) negotiateTLS(features xmpp.XElement) (xmpp.XElement, error) {
	startTLS := features.Elements().ChildNamespace("starttls", tlsNamespace)
	if startTLS == nil {
		return features, nil
	}
	if !e.cfg.UseTLS {
		if startTLS.Elements().Child("required") != nil {
			return nil, ErrTLSRequired
		}
		return features, nil
	}
	e.setState(Securing)

	if err := e.writeElement(xmpp.NewElementNamespace("starttls", tlsNamespace)); err != nil {
		return nil, err
	}
	elem, err := e.readElement()
	if err != nil {
		return nil, err
	}
	if elem.Name() != "proceed" {
		return nil, fmt.Errorf("stream: STARTTLS rejected: %s", elem.Name())
	}
	if err := e.tr.StartTLS(e.cfg.tlsConfig()); err != nil {
		return nil, err
	}
	atomic.StoreUint32(&e.secured, 1)

	log.Infof("secured stream... domain: %s", e.cfg.Domain)
	return e.restartStream()
}

func (e *Engine) authenticate(features xmpp.XElement) (xmpp.XElement, error) {
	mechanisms := features.Elements().ChildNamespace("mechanisms", saslNamespace)
	if mechanisms == nil {
		return features, nil
	}
	offered := map[string]bool{}
	for _, m := range mechanisms.Elements().Children("mechanism") {
		offered[m.Text()] = true
	}
	var authr auth.Authenticator
	for _, candidate := range []auth.Authenticator{
		auth.NewScram(e.cfg.Username, e.cfg.Password),
		auth.NewDigestMD5(e.cfg.Username, e.cfg.Password, e.cfg.Domain),
		auth.NewPlain(e.cfg.Username, e.cfg.Password),
	} {
		if offered[candidate.Mechanism()] {
			authr = candidate
			break
		}
	}
	if authr == nil {
		return nil, ErrNoSupportedMechanism
	}
	e.setState(Authenticating)

	initial, err := authr.InitialResponse()
	if err != nil {
		return nil, err
	}
	authElem := xmpp.NewElementNamespace("auth", saslNamespace)
	authElem.SetAttribute("mechanism", authr.Mechanism())
	switch {
	case initial == nil:
		break
	case len(initial) == 0:
		authElem.SetText("=")
	default:
		authElem.SetText(base64.StdEncoding.EncodeToString(initial))
	}
	if err := e.writeElement(authElem); err != nil {
		return nil, err
	}
	for {
		elem, err := e.readElement()
		if err != nil {
			return nil, err
		}
		switch elem.Name() {
		case "challenge":
			payload, err := base64.StdEncoding.DecodeString(elem.Text())
			if err != nil {
				return nil, auth.ErrSASLMalformedRequest
			}
			response, err := authr.ProcessChallenge(payload)
			if err != nil {
				return nil, err
			}
			respElem := xmpp.NewElementNamespace("response", saslNamespace)
			if len(response) > 0 {
				respElem.SetText(base64.StdEncoding.EncodeToString(response))
			}
			if err := e.writeElement(respElem); err != nil {
				return nil, err
			}

		case "success":
			var payload []byte
			if text := elem.Text(); len(text) > 0 {
				payload, err = base64.StdEncoding.DecodeString(text)
				if err != nil {
					return nil, auth.ErrSASLMalformedRequest
				}
			}
			if err := authr.ProcessSuccess(payload); err != nil {
				return nil, err
			}
			log.Infof("authenticated... username: %s, mechanism: %s", e.cfg.Username, authr.Mechanism())
			return e.restartStream()

		case "failure":
			reason := "not-authorized"
			if children := elem.Elements().All(); len(children) > 0 {
				reason = children[0].Name()
			}
			return nil, &auth.SASLError{Reason: reason}

		default:
			return nil, streamerror.ErrUnsupportedStanzaType
		}
	}
}

func (e *Engine) bindResource() error {
	iq := xmpp.NewIQType(e.NextID(), xmpp.SetType)
	bind := xmpp.NewElementNamespace("bind", bindNamespace)
	if len(e.cfg.Resource) > 0 {
		res := xmpp.NewElementName("resource")
		res.SetText(e.cfg.Resource)
		bind.AppendElement(res)
	}
	iq.AppendElement(bind)

	resp, err := e.request(iq)
	if err != nil {
		return err
	}
	binded := resp.Elements().ChildNamespace("bind", bindNamespace)
	if binded == nil || binded.Elements().Child("jid") == nil {
		return streamerror.ErrUnsupportedStanzaType
	}
	j, err := jid.NewWithString(binded.Elements().Child("jid").Text(), true)
	if err != nil {
		return err
	}
	e.jd.Store(j)
	return nil
}

func (e *Engine) establishSession(features xmpp.XElement) error {
	if features.Elements().ChildNamespace("session", sessionNamespace) == nil {
		return nil
	}
	iq := xmpp.NewIQType(e.NextID(), xmpp.SetType)
	iq.AppendElement(xmpp.NewElementNamespace("session", sessionNamespace))
	_, err := e.request(iq)
	return err
}

// request writes an IQ during stream negotiation, reading its
// response synchronously. The reader loop is not running yet.
func (e *Engine) request(iq *xmpp.IQ) (xmpp.XElement, error) {
	if err := e.writeElement(iq); err != nil {
		return nil, err
	}
	resp, err := e.readElement()
	if err != nil {
		return nil, err
	}
	if resp.Name() != "iq" || resp.ID() != iq.ID() {
		return nil, streamerror.ErrUnsupportedStanzaType
	}
	if resp.Type() != xmpp.ResultType {
		return nil, xmpp.NewStanzaErrorFromElement(resp)
	}
	return resp, nil
}

func mapReadError(err error) error {
	switch err {
	case xmpp.ErrStreamClosedByPeer:
		return ErrStreamClosed
	case xmpp.ErrTooLargeStanza:
		return streamerror.ErrPolicyViolation
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return streamerror.ErrConnectionTimeout
	}
	return err
}

func (e *Engine) setState(state uint32) {
	atomic.StoreUint32(&e.state, state)
}

func (e *Engine) getState() uint32 {
	return atomic.LoadUint32(&e.state)
}

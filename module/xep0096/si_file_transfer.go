/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xep0096

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/ortuman/mink/log"
	"github.com/ortuman/mink/module"
	"github.com/ortuman/mink/module/xep0095"
	"github.com/ortuman/mink/transfer"
	"github.com/ortuman/mink/xmpp"
	"github.com/ortuman/mink/xmpp/jid"
)

// ModuleID is the SI file transfer module registry identifier.
const ModuleID = "si_filetransfer"

// ProfileNamespace specifies the SI file transfer profile namespace.
const ProfileNamespace = "http://jabber.org/protocol/si/profile/file-transfer"

const octetStreamMimeType = "application/octet-stream"

// Config represents SI file transfer configuration.
type Config struct {
	// ForceIBB restricts offered stream methods to in-band
	// bytestreams.
	ForceIBB bool `yaml:"force_in_band"`
}

// FileTransfer describes an inbound file offer handed to the
// request handler.
type FileTransfer struct {
	SID         string
	From        *jid.JID
	Name        string
	Size        uint64
	Description string
	MimeType    string
}

// RequestHandler decides inbound file offers returning the local
// save path, or an empty string to reject the offer.
type RequestHandler func(ft *FileTransfer) string

// SIFileTransfer represents the SI file transfer module, mapping
// file offers onto stream initiation and driving the negotiated
// bytestream.
type SIFileTransfer struct {
	stm      module.Stream
	sessions *transfer.Registry
	cfg      *Config
	streams  []transfer.Bytestream

	si *xep0095.StreamInitiation

	mu               sync.RWMutex
	requestHandler   RequestHandler
	progressHandlers []func(sid string, transferred, total uint64)
	abortedHandlers  []func(sid string, err error)

	openSink func(path string) (io.WriteCloser, error)
}

// New returns a SI file transfer module instance driving the given
// bytestream implementations, in preference order.
func New(stm module.Stream, sessions *transfer.Registry, cfg *Config, streams ...transfer.Bytestream) *SIFileTransfer {
	return &SIFileTransfer{
		stm:      stm,
		sessions: sessions,
		cfg:      cfg,
		streams:  streams,
		openSink: func(path string) (io.WriteCloser, error) { return os.Create(path) },
	}
}

// ID returns the module stable identifier.
func (x *SIFileTransfer) ID() string {
	return ModuleID
}

// Namespaces returns the module advertised namespaces.
func (x *SIFileTransfer) Namespaces() []string {
	return []string{ProfileNamespace}
}

// Initialize resolves the stream initiation module dependency
// registering the file transfer profile.
func (x *SIFileTransfer) Initialize(reg *module.Registry) error {
	mod, err := reg.Lookup(xep0095.ModuleID)
	if err != nil {
		return err
	}
	si, ok := mod.(*xep0095.StreamInitiation)
	if !ok {
		return fmt.Errorf("xep0096: unexpected si module type")
	}
	x.si = si
	si.RegisterProfile(ProfileNamespace, x)
	return nil
}

// SetRequestHandler installs the callback deciding inbound file offers.
func (x *SIFileTransfer) SetRequestHandler(handler RequestHandler) {
	x.mu.Lock()
	x.requestHandler = handler
	x.mu.Unlock()
}

// OnProgress registers a transfer progress event handler.
func (x *SIFileTransfer) OnProgress(handler func(sid string, transferred, total uint64)) {
	x.mu.Lock()
	x.progressHandlers = append(x.progressHandlers, handler)
	x.mu.Unlock()
}

// OnAborted registers a transfer abortion event handler.
func (x *SIFileTransfer) OnAborted(handler func(sid string, err error)) {
	x.mu.Lock()
	x.abortedHandlers = append(x.abortedHandlers, handler)
	x.mu.Unlock()
}

// SendFile offers a file to a remote entity. Once the target accepts
// the negotiation the transfer proceeds on its own task, reporting
// through progress and aborted events. Returns the session stream
// identifier.
func (x *SIFileTransfer) SendFile(to *jid.JID, name string, size uint64, description string, src io.ReadCloser) (string, error) {
	fileEl := xmpp.NewElementNamespace("file", ProfileNamespace)
	fileEl.SetAttribute("name", name)
	fileEl.SetAttribute("size", strconv.FormatUint(size, 10))
	if len(description) > 0 {
		desc := xmpp.NewElementName("desc")
		desc.SetText(description)
		fileEl.AppendElement(desc)
	}
	result, err := x.si.InitiateStream(to, octetStreamMimeType, ProfileNamespace, x.methodNamespaces(), fileEl)
	if err != nil {
		return "", err
	}
	bs := x.streamForNamespace(result.Method)
	if bs == nil {
		return "", fmt.Errorf("xep0096: unsupported stream method selected: %s", result.Method)
	}
	sess := &transfer.Session{
		SID:    result.SID,
		From:   x.stm.JID(),
		To:     to,
		Size:   size,
		Source: src,
		Method: result.Method,
	}
	x.watchSession(sess)
	if err := x.sessions.Add(sess); err != nil {
		return "", err
	}
	go func() {
		sess.Finish(bs.Transfer(sess))
	}()
	return result.SID, nil
}

// Cancel aborts an active transfer session.
func (x *SIFileTransfer) Cancel(sid string) error {
	sess := x.sessions.Get(sid)
	if sess == nil {
		return fmt.Errorf("xep0096: unknown session: %s", sid)
	}
	sess.Cancel()
	sess.Finish(transfer.ErrAborted)
	return nil
}

// ProcessStreamInitiation handles inbound file offers for the SI
// file transfer profile.
func (x *SIFileTransfer) ProcessStreamInitiation(iq *xmpp.IQ, si xmpp.XElement) (xmpp.XElement, *xmpp.StanzaError) {
	sid := si.Attributes().Get("id")
	if len(sid) == 0 {
		return nil, xmpp.ErrBadRequest
	}
	if x.sessions.Get(sid) != nil {
		return nil, xmpp.ErrConflict
	}
	fileEl := si.Elements().ChildNamespace("file", ProfileNamespace)
	if fileEl == nil {
		return nil, xmpp.ErrBadRequest
	}
	size, err := strconv.ParseUint(fileEl.Attributes().Get("size"), 10, 64)
	if err != nil {
		return nil, xmpp.ErrBadRequest
	}
	offered, err := xep0095.OfferedMethods(si)
	if err != nil {
		return nil, xmpp.ErrBadRequest
	}
	method := x.selectMethod(offered)
	if len(method) == 0 {
		return nil, xmpp.ErrBadRequest
	}
	ft := &FileTransfer{
		SID:      sid,
		From:     iq.FromJID(),
		Name:     fileEl.Attributes().Get("name"),
		Size:     size,
		MimeType: si.Attributes().Get("mime-type"),
	}
	if desc := fileEl.Elements().Child("desc"); desc != nil {
		ft.Description = desc.Text()
	}
	x.mu.RLock()
	handler := x.requestHandler
	x.mu.RUnlock()

	var path string
	if handler != nil {
		path = handler(ft)
	}
	if len(path) == 0 {
		return nil, xmpp.ErrNotAcceptable
	}
	sink, err := x.openSink(path)
	if err != nil {
		log.Error(err)
		return nil, xmpp.ErrInternalServerError
	}
	sess := &transfer.Session{
		SID:       sid,
		From:      iq.FromJID(),
		To:        x.stm.JID(),
		Size:      size,
		Sink:      sink,
		Receiving: true,
		Method:    method,
	}
	x.watchSession(sess)
	if err := x.sessions.Add(sess); err != nil {
		sink.Close()
		return nil, xmpp.ErrConflict
	}
	return xep0095.SubmitResponse(method), nil
}

func (x *SIFileTransfer) watchSession(sess *transfer.Session) {
	sess.SetCallbacks(
		func(s *transfer.Session) {
			x.mu.RLock()
			handlers := make([]func(string, uint64, uint64), len(x.progressHandlers))
			copy(handlers, x.progressHandlers)
			x.mu.RUnlock()
			for _, h := range handlers {
				h(s.SID, s.Count(), s.Size)
			}
		},
		func(s *transfer.Session, err error) {
			x.sessions.Remove(s.SID)
			if err == nil && s.Completed() {
				log.Infof("transfer completed... sid: %s", s.SID)
				return
			}
			if err == nil {
				err = transfer.ErrAborted
			}
			x.mu.RLock()
			handlers := make([]func(string, error), len(x.abortedHandlers))
			copy(handlers, x.abortedHandlers)
			x.mu.RUnlock()
			for _, h := range handlers {
				h(s.SID, err)
			}
		},
	)
}

func (x *SIFileTransfer) methodNamespaces() []string {
	var ret []string
	for _, bs := range x.streams {
		if x.cfg.ForceIBB && bs.Namespace() != "http://jabber.org/protocol/ibb" {
			continue
		}
		ret = append(ret, bs.Namespace())
	}
	return ret
}

func (x *SIFileTransfer) selectMethod(offered []string) string {
	for _, ns := range x.methodNamespaces() {
		for _, offer := range offered {
			if ns == offer {
				return ns
			}
		}
	}
	return ""
}

func (x *SIFileTransfer) streamForNamespace(ns string) transfer.Bytestream {
	for _, bs := range x.streams {
		if bs.Namespace() == ns {
			return bs
		}
	}
	return nil
}

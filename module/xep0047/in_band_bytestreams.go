/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xep0047

import (
	"encoding/base64"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/ortuman/mink/log"
	"github.com/ortuman/mink/module"
	"github.com/ortuman/mink/transfer"
	"github.com/ortuman/mink/xmpp"
)

// ModuleID is the in-band bytestreams module registry identifier.
const ModuleID = "ibb"

// Namespace specifies the in-band bytestreams namespace.
const Namespace = "http://jabber.org/protocol/ibb"

// BlockSize is the raw chunk size carried on every data stanza.
const BlockSize = 4096

const requestTimeout = time.Minute

// InBandBytestreams represents an in-band bytestreams module: the
// IQ carried fallback data path. Message mode is disallowed.
type InBandBytestreams struct {
	stm      module.Stream
	sessions *transfer.Registry

	mu   sync.Mutex
	seqs map[string]uint16
}

// New returns an in-band bytestreams module instance.
func New(stm module.Stream, sessions *transfer.Registry) *InBandBytestreams {
	return &InBandBytestreams{
		stm:      stm,
		sessions: sessions,
		seqs:     make(map[string]uint16),
	}
}

// ID returns the module stable identifier.
func (x *InBandBytestreams) ID() string {
	return ModuleID
}

// Namespaces returns the module advertised namespaces.
func (x *InBandBytestreams) Namespaces() []string {
	return []string{Namespace}
}

// Initialize satisfies module interface.
func (x *InBandBytestreams) Initialize(_ *module.Registry) error {
	return nil
}

// Namespace returns the stream method namespace offered on
// stream initiation.
func (x *InBandBytestreams) Namespace() string {
	return Namespace
}

// Transfer moves session bytes on the initiating side: an open
// element, base64 data chunks with a 16 bit wrapping sequence, and
// a final close element.
func (x *InBandBytestreams) Transfer(sess *transfer.Session) error {
	openIQ := xmpp.NewIQType(x.stm.NextID(), xmpp.SetType)
	openIQ.SetToJID(sess.To)
	open := xmpp.NewElementNamespace("open", Namespace)
	open.SetAttribute("sid", sess.SID)
	open.SetAttribute("block-size", strconv.Itoa(BlockSize))
	open.SetAttribute("stanza", "iq")
	openIQ.AppendElement(open)

	if err := x.requestResult(openIQ); err != nil {
		return err
	}
	block := make([]byte, BlockSize)
	var seq uint16
	for sess.Count() < sess.Size {
		if sess.Cancelled() {
			return transfer.ErrAborted
		}
		buf := block
		if remaining := sess.Size - sess.Count(); remaining < BlockSize {
			buf = block[:remaining]
		}
		n, err := io.ReadFull(sess.Source, buf)
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			err = nil
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return transfer.ErrAborted
		}
		dataIQ := xmpp.NewIQType(x.stm.NextID(), xmpp.SetType)
		dataIQ.SetToJID(sess.To)
		data := xmpp.NewElementNamespace("data", Namespace)
		data.SetAttribute("sid", sess.SID)
		data.SetAttribute("seq", strconv.FormatUint(uint64(seq), 10))
		data.SetText(base64.StdEncoding.EncodeToString(buf[:n]))
		dataIQ.AppendElement(data)

		if err := x.requestResult(dataIQ); err != nil {
			return err
		}
		sess.AddCount(uint64(n))
		seq++ // wraps at 2^16
	}
	closeIQ := xmpp.NewIQType(x.stm.NextID(), xmpp.SetType)
	closeIQ.SetToJID(sess.To)
	closeEl := xmpp.NewElementNamespace("close", Namespace)
	closeEl.SetAttribute("sid", sess.SID)
	closeIQ.AppendElement(closeEl)

	if err := x.requestResult(closeIQ); err != nil {
		log.Warnf("IBB close failed... sid: %s, err: %v", sess.SID, err)
	}
	return nil
}

// InterceptIQ processes inbound open, data and close elements on
// the receiving side.
func (x *InBandBytestreams) InterceptIQ(iq *xmpp.IQ) bool {
	if !iq.IsSet() {
		return false
	}
	if open := iq.Elements().ChildNamespace("open", Namespace); open != nil {
		x.processOpen(iq, open)
		return true
	}
	if data := iq.Elements().ChildNamespace("data", Namespace); data != nil {
		x.processData(iq, data)
		return true
	}
	if closeEl := iq.Elements().ChildNamespace("close", Namespace); closeEl != nil {
		x.processClose(iq, closeEl)
		return true
	}
	return false
}

func (x *InBandBytestreams) processOpen(iq *xmpp.IQ, open xmpp.XElement) {
	sid := open.Attributes().Get("sid")
	sess := x.sessions.Get(sid)
	if sess == nil || !sess.Receiving {
		x.stm.SendElement(iq.NotAcceptableError())
		return
	}
	if open.Attributes().Get("stanza") == "message" {
		x.stm.SendElement(iq.NotAcceptableError())
		return
	}
	if blockSize, err := strconv.Atoi(open.Attributes().Get("block-size")); err != nil || blockSize > BlockSize {
		x.stm.SendElement(iq.ResourceConstraintError())
		return
	}
	x.mu.Lock()
	x.seqs[sid] = 0
	x.mu.Unlock()
	x.stm.SendElement(iq.ResultIQ())
}

func (x *InBandBytestreams) processData(iq *xmpp.IQ, data xmpp.XElement) {
	sid := data.Attributes().Get("sid")
	sess := x.sessions.Get(sid)
	if sess == nil || !sess.Receiving {
		x.stm.SendElement(iq.ItemNotFoundError())
		return
	}
	seq, err := strconv.ParseUint(data.Attributes().Get("seq"), 10, 16)
	if err != nil {
		x.stm.SendElement(iq.BadRequestError())
		return
	}
	x.mu.Lock()
	expected := x.seqs[sid]
	x.mu.Unlock()
	if uint16(seq) != expected {
		x.stm.SendElement(iq.NotAcceptableError())
		x.abort(sess)
		return
	}
	payload, err := base64.StdEncoding.DecodeString(data.Text())
	if err != nil {
		x.stm.SendElement(iq.BadRequestError())
		x.abort(sess)
		return
	}
	if sess.Count()+uint64(len(payload)) > sess.Size {
		x.stm.SendElement(iq.NotAcceptableError())
		x.abort(sess)
		return
	}
	if _, err := sess.Sink.Write(payload); err != nil {
		x.stm.SendElement(iq.InternalServerError())
		x.abort(sess)
		return
	}
	sess.AddCount(uint64(len(payload)))

	x.mu.Lock()
	x.seqs[sid] = expected + 1 // wraps at 2^16
	x.mu.Unlock()
	x.stm.SendElement(iq.ResultIQ())
}

func (x *InBandBytestreams) processClose(iq *xmpp.IQ, closeEl xmpp.XElement) {
	sid := closeEl.Attributes().Get("sid")
	sess := x.sessions.Get(sid)
	if sess == nil {
		x.stm.SendElement(iq.ItemNotFoundError())
		return
	}
	x.stm.SendElement(iq.ResultIQ())

	x.mu.Lock()
	delete(x.seqs, sid)
	x.mu.Unlock()

	if sess.Completed() {
		sess.Finish(nil)
	} else {
		sess.Finish(transfer.ErrAborted)
	}
}

func (x *InBandBytestreams) abort(sess *transfer.Session) {
	x.mu.Lock()
	delete(x.seqs, sess.SID)
	x.mu.Unlock()
	sess.Finish(transfer.ErrAborted)
}

func (x *InBandBytestreams) requestResult(iq *xmpp.IQ) error {
	resp, err := x.stm.SendIQ(iq, requestTimeout)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return xmpp.NewStanzaErrorFromElement(resp)
	}
	return nil
}

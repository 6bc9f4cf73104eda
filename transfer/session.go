/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package transfer

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/ortuman/mink/xmpp/jid"
)

// ErrAborted is reported when a transfer ends before every byte
// has been moved.
var ErrAborted = errors.New("transfer: aborted before completion")

// Bytestream is the contract every negotiable data channel
// implements: SOCKS5 bytestreams and in-band bytestreams.
type Bytestream interface {
	// Namespace returns the stream method namespace offered on
	// stream initiation.
	Namespace() string

	// Transfer moves session bytes on the initiating side,
	// blocking until completion or failure.
	Transfer(sess *Session) error
}

// PortMapper requests router port mappings on behalf of a local
// listener. Implementations are typically UPnP backed and owned by
// the caller, never process-wide.
type PortMapper interface {
	AddPortMapping(port int) error
	DeletePortMapping(port int) error
}

// AddressResolver discovers the externally visible addresses of
// this host, e.g. through STUN or a server IP check.
type AddressResolver interface {
	ExternalAddresses() []net.IP
}

// Session represents an active stream initiation session.
type Session struct {
	SID       string
	From      *jid.JID
	To        *jid.JID
	Size      uint64
	Receiving bool
	Method    string

	// Source supplies the bytes on the sending side.
	Source io.ReadCloser

	// Sink receives the bytes on the receiving side.
	Sink io.WriteCloser

	count     uint64
	cancelled int32

	progressFn func(sess *Session)
	doneFn     func(sess *Session, err error)
	doneOnce   sync.Once
}

// SetCallbacks installs the progress and completion observers.
func (s *Session) SetCallbacks(progress func(*Session), done func(*Session, error)) {
	s.progressFn = progress
	s.doneFn = done
}

// Count returns the number of transferred bytes.
func (s *Session) Count() uint64 {
	return atomic.LoadUint64(&s.count)
}

// AddCount accounts n transferred bytes notifying the progress observer.
func (s *Session) AddCount(n uint64) {
	atomic.AddUint64(&s.count, n)
	if s.progressFn != nil {
		s.progressFn(s)
	}
}

// Cancel flags the session as cancelled. Transfer tasks check the
// flag between chunks.
func (s *Session) Cancel() {
	atomic.StoreInt32(&s.cancelled, 1)
}

// Cancelled returns whether or not the session has been cancelled.
func (s *Session) Cancelled() bool {
	return atomic.LoadInt32(&s.cancelled) == 1
}

// Completed returns whether or not every session byte has been moved.
func (s *Session) Completed() bool {
	return s.Count() == s.Size
}

// Finish closes the session stream notifying the completion
// observer exactly once.
func (s *Session) Finish(err error) {
	s.doneOnce.Do(func() {
		if s.Source != nil {
			s.Source.Close()
		}
		if s.Sink != nil {
			s.Sink.Close()
		}
		if s.doneFn != nil {
			s.doneFn(s, err)
		}
	})
}

/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package transport

import (
	"crypto/tls"
	"net"
	"time"
)

type socketTransport struct {
	conn      net.Conn
	keepAlive time.Duration
	secured   bool
}

// NewSocketTransport creates a socket transport instance over
// an established TCP connection.
func NewSocketTransport(conn net.Conn, keepAlive time.Duration) Transport {
	return &socketTransport{
		conn:      conn,
		keepAlive: keepAlive,
	}
}

func (s *socketTransport) Read(p []byte) (n int, err error) {
	if s.keepAlive > 0 {
		s.conn.SetReadDeadline(time.Now().Add(s.keepAlive))
	}
	return s.conn.Read(p)
}

func (s *socketTransport) Write(p []byte) (n int, err error) {
	return s.conn.Write(p)
}

func (s *socketTransport) Close() error {
	return s.conn.Close()
}

func (s *socketTransport) StartTLS(cfg *tls.Config) error {
	if s.secured {
		return nil
	}
	tlsConn := tls.Client(s.conn, cfg)
	if err := tlsConn.Handshake(); err != nil {
		return err
	}
	s.conn = tlsConn
	s.secured = true
	return nil
}

func (s *socketTransport) IsSecured() bool {
	return s.secured
}

func (s *socketTransport) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

func (s *socketTransport) ConnectionState() tls.ConnectionState {
	if tlsConn, ok := s.conn.(*tls.Conn); ok {
		return tlsConn.ConnectionState()
	}
	return tls.ConnectionState{}
}

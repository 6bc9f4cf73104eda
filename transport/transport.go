/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package transport

import (
	"crypto/tls"
	"io"
	"time"
)

// Transport represents a stream transport mechanism.
type Transport interface {
	io.ReadWriteCloser

	// StartTLS secures the transport performing a TLS handshake
	// on the underlying connection.
	StartTLS(cfg *tls.Config) error

	// IsSecured returns whether or not the transport has been secured.
	IsSecured() bool

	// SetReadDeadline sets the deadline for future read calls.
	SetReadDeadline(t time.Time) error

	// ConnectionState returns the TLS connection state, when secured.
	ConnectionState() tls.ConnectionState
}

/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xep0065

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
)

const socksVersion = 0x05

// AuthMethod identifies a SOCKS5 authentication method.
type AuthMethod byte

const (
	// AuthNone represents the 'no authentication' method.
	AuthNone AuthMethod = 0x00

	// AuthNoAcceptable signals that no offered method is acceptable.
	AuthNoAcceptable AuthMethod = 0xFF
)

// Command identifies a SOCKS5 request command.
type Command byte

// Connect represents the CONNECT command. It is the only command
// bytestreams ever issue.
const Connect Command = 0x01

// ReplyStatus identifies a SOCKS5 reply status.
type ReplyStatus byte

const (
	// Succeeded represents a successful request.
	Succeeded ReplyStatus = iota

	// GeneralFailure represents a general SOCKS server failure.
	GeneralFailure

	// NotAllowed represents a ruleset rejection.
	NotAllowed

	// NetworkUnreachable represents an unreachable network.
	NetworkUnreachable

	// HostUnreachable represents an unreachable host.
	HostUnreachable

	// ConnectionRefused represents a refused connection.
	ConnectionRefused

	// TTLExpired represents an expired TTL.
	TTLExpired

	// CommandNotSupported represents an unsupported command.
	CommandNotSupported

	// AddressTypeNotSupported represents an unsupported address type.
	AddressTypeNotSupported
)

const (
	atypIPv4   = 0x01
	atypDomain = 0x03
	atypIPv6   = 0x04
)

var errMalformedMessage = errors.New("xep0065: malformed SOCKS5 message")

// Addr is a SOCKS5 address: an IPv4 address, an IPv6 address or a
// domain name up to 255 bytes.
type Addr interface {
	serialize(w io.Writer) error
	String() string
}

// IPv4Addr represents a 4 byte IPv4 SOCKS5 address.
type IPv4Addr [4]byte

// IPv6Addr represents a 16 byte IPv6 SOCKS5 address.
type IPv6Addr [16]byte

// DomainAddr represents a domain name SOCKS5 address. Bytestreams
// carry the hostname hash here.
type DomainAddr string

func (a IPv4Addr) serialize(w io.Writer) error {
	if _, err := w.Write([]byte{atypIPv4}); err != nil {
		return err
	}
	_, err := w.Write(a[:])
	return err
}

func (a IPv4Addr) String() string { return net.IP(a[:]).String() }

func (a IPv6Addr) serialize(w io.Writer) error {
	if _, err := w.Write([]byte{atypIPv6}); err != nil {
		return err
	}
	_, err := w.Write(a[:])
	return err
}

func (a IPv6Addr) String() string { return net.IP(a[:]).String() }

func (a DomainAddr) serialize(w io.Writer) error {
	if len(a) > 255 {
		return fmt.Errorf("xep0065: domain address too long: %d", len(a))
	}
	if _, err := w.Write([]byte{atypDomain, byte(len(a))}); err != nil {
		return err
	}
	_, err := io.WriteString(w, string(a))
	return err
}

func (a DomainAddr) String() string { return string(a) }

// NewAddrFromIP derives a SOCKS5 address from a net.IP value.
func NewAddrFromIP(ip net.IP) Addr {
	if ip4 := ip.To4(); ip4 != nil {
		var a IPv4Addr
		copy(a[:], ip4)
		return a
	}
	var a IPv6Addr
	copy(a[:], ip.To16())
	return a
}

func parseAddr(r io.Reader) (Addr, error) {
	var atyp [1]byte
	if _, err := io.ReadFull(r, atyp[:]); err != nil {
		return nil, err
	}
	switch atyp[0] {
	case atypIPv4:
		var a IPv4Addr
		if _, err := io.ReadFull(r, a[:]); err != nil {
			return nil, err
		}
		return a, nil
	case atypIPv6:
		var a IPv6Addr
		if _, err := io.ReadFull(r, a[:]); err != nil {
			return nil, err
		}
		return a, nil
	case atypDomain:
		var length [1]byte
		if _, err := io.ReadFull(r, length[:]); err != nil {
			return nil, err
		}
		domain := make([]byte, length[0])
		if _, err := io.ReadFull(r, domain); err != nil {
			return nil, err
		}
		return DomainAddr(domain), nil
	default:
		return nil, errMalformedMessage
	}
}

// AuthRequest represents the SOCKS5 client greeting.
type AuthRequest struct {
	Methods []AuthMethod
}

// Serialize writes the greeting wire bytes.
func (m *AuthRequest) Serialize(w io.Writer) error {
	buf := make([]byte, 0, 2+len(m.Methods))
	buf = append(buf, socksVersion, byte(len(m.Methods)))
	for _, method := range m.Methods {
		buf = append(buf, byte(method))
	}
	_, err := w.Write(buf)
	return err
}

// DeserializeAuthRequest reads a greeting from its wire bytes.
func DeserializeAuthRequest(r io.Reader) (*AuthRequest, error) {
	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	if header[0] != socksVersion {
		return nil, errMalformedMessage
	}
	methods := make([]byte, header[1])
	if _, err := io.ReadFull(r, methods); err != nil {
		return nil, err
	}
	ret := &AuthRequest{}
	for _, method := range methods {
		ret.Methods = append(ret.Methods, AuthMethod(method))
	}
	return ret, nil
}

// AuthResponse represents the SOCKS5 server method selection.
type AuthResponse struct {
	Method AuthMethod
}

// Serialize writes the method selection wire bytes.
func (m *AuthResponse) Serialize(w io.Writer) error {
	_, err := w.Write([]byte{socksVersion, byte(m.Method)})
	return err
}

// DeserializeAuthResponse reads a method selection from its wire bytes.
func DeserializeAuthResponse(r io.Reader) (*AuthResponse, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}
	if buf[0] != socksVersion {
		return nil, errMalformedMessage
	}
	return &AuthResponse{Method: AuthMethod(buf[1])}, nil
}

// SocksRequest represents a SOCKS5 request.
type SocksRequest struct {
	Command Command
	Addr    Addr
	Port    uint16
}

// Serialize writes the request wire bytes.
func (m *SocksRequest) Serialize(w io.Writer) error {
	if _, err := w.Write([]byte{socksVersion, byte(m.Command), 0x00}); err != nil {
		return err
	}
	if err := m.Addr.serialize(w); err != nil {
		return err
	}
	var port [2]byte
	binary.BigEndian.PutUint16(port[:], m.Port)
	_, err := w.Write(port[:])
	return err
}

// DeserializeSocksRequest reads a request from its wire bytes.
func DeserializeSocksRequest(r io.Reader) (*SocksRequest, error) {
	var header [3]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	if header[0] != socksVersion || header[2] != 0x00 {
		return nil, errMalformedMessage
	}
	addr, err := parseAddr(r)
	if err != nil {
		return nil, err
	}
	var port [2]byte
	if _, err := io.ReadFull(r, port[:]); err != nil {
		return nil, err
	}
	return &SocksRequest{
		Command: Command(header[1]),
		Addr:    addr,
		Port:    binary.BigEndian.Uint16(port[:]),
	}, nil
}

// SocksReply represents a SOCKS5 reply.
type SocksReply struct {
	Status ReplyStatus
	Addr   Addr
	Port   uint16
}

// Serialize writes the reply wire bytes.
func (m *SocksReply) Serialize(w io.Writer) error {
	if _, err := w.Write([]byte{socksVersion, byte(m.Status), 0x00}); err != nil {
		return err
	}
	if err := m.Addr.serialize(w); err != nil {
		return err
	}
	var port [2]byte
	binary.BigEndian.PutUint16(port[:], m.Port)
	_, err := w.Write(port[:])
	return err
}

// DeserializeSocksReply reads a reply from its wire bytes.
func DeserializeSocksReply(r io.Reader) (*SocksReply, error) {
	var header [3]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	if header[0] != socksVersion || header[2] != 0x00 {
		return nil, errMalformedMessage
	}
	addr, err := parseAddr(r)
	if err != nil {
		return nil, err
	}
	var port [2]byte
	if _, err := io.ReadFull(r, port[:]); err != nil {
		return nil, err
	}
	return &SocksReply{
		Status: ReplyStatus(header[1]),
		Addr:   addr,
		Port:   binary.BigEndian.Uint16(port[:]),
	}, nil
}

/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xep0065

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuthRequestRoundTrip(t *testing.T) {
	req := &AuthRequest{Methods: []AuthMethod{AuthNone}}

	buf := new(bytes.Buffer)
	require.Nil(t, req.Serialize(buf))
	require.Equal(t, []byte{0x05, 0x01, 0x00}, buf.Bytes())

	parsed, err := DeserializeAuthRequest(buf)
	require.Nil(t, err)
	require.Equal(t, req, parsed)
}

func TestAuthResponseRoundTrip(t *testing.T) {
	resp := &AuthResponse{Method: AuthNone}

	buf := new(bytes.Buffer)
	require.Nil(t, resp.Serialize(buf))
	require.Equal(t, []byte{0x05, 0x00}, buf.Bytes())

	parsed, err := DeserializeAuthResponse(buf)
	require.Nil(t, err)
	require.Equal(t, resp, parsed)
}

func TestSocksRequestRoundTrip(t *testing.T) {
	hash := "0123456789abcdef0123456789abcdef01234567"
	req := &SocksRequest{Command: Connect, Addr: DomainAddr(hash), Port: 0}

	buf := new(bytes.Buffer)
	require.Nil(t, req.Serialize(buf))

	// 05 01 00 03 L [hash] 00 00
	raw := buf.Bytes()
	require.Equal(t, byte(0x05), raw[0])
	require.Equal(t, byte(0x01), raw[1])
	require.Equal(t, byte(0x03), raw[3])
	require.Equal(t, byte(40), raw[4])
	require.Equal(t, []byte{0x00, 0x00}, raw[len(raw)-2:])

	parsed, err := DeserializeSocksRequest(buf)
	require.Nil(t, err)
	require.Equal(t, req, parsed)
}

func TestSocksReplyRoundTrip(t *testing.T) {
	replies := []*SocksReply{
		{Status: Succeeded, Addr: DomainAddr("proxy.jackal.im"), Port: 7777},
		{Status: ConnectionRefused, Addr: IPv4Addr{192, 168, 1, 10}, Port: 1080},
		{Status: HostUnreachable, Addr: IPv6Addr{0xfe, 0x80, 15: 0x01}, Port: 443},
	}
	for _, reply := range replies {
		buf := new(bytes.Buffer)
		require.Nil(t, reply.Serialize(buf))

		parsed, err := DeserializeSocksReply(buf)
		require.Nil(t, err)
		require.Equal(t, reply, parsed)
	}
}

func TestSocksMalformedMessages(t *testing.T) {
	_, err := DeserializeAuthRequest(bytes.NewReader([]byte{0x04, 0x01, 0x00}))
	require.NotNil(t, err)

	_, err = DeserializeSocksRequest(bytes.NewReader([]byte{0x05, 0x01, 0x00, 0x09}))
	require.NotNil(t, err)

	_, err = DeserializeSocksReply(bytes.NewReader([]byte{0x05, 0x00}))
	require.NotNil(t, err)
}

func TestDomainAddrTooLong(t *testing.T) {
	long := make([]byte, 256)
	for i := range long {
		long[i] = 'a'
	}
	buf := new(bytes.Buffer)
	req := &SocksRequest{Command: Connect, Addr: DomainAddr(long), Port: 0}
	require.NotNil(t, req.Serialize(buf))
}

/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xep0065

import (
	"bytes"
	"io"
	"io/ioutil"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ortuman/mink/module"
	"github.com/ortuman/mink/transfer"
	"github.com/ortuman/mink/xmpp"
	"github.com/ortuman/mink/xmpp/jid"
)

func testModule() (*Bytestreams, *transfer.Registry) {
	j, _ := jid.New("ortuman", "jackal.im", "balcony", true)
	stm := module.NewMockStream(j)
	sessions := transfer.NewRegistry()
	return New(stm, sessions, &Config{}, nil, nil), sessions
}

func TestConfigPortRange(t *testing.T) {
	valid := []Config{
		{PortRangeFrom: 0, PortRangeTo: 0},
		{PortRangeFrom: 0, PortRangeTo: 65535},
		{PortRangeFrom: 52000, PortRangeTo: 52010},
	}
	for _, cfg := range valid {
		require.Nil(t, cfg.validate())
	}
	invalid := []Config{
		{PortRangeFrom: -1, PortRangeTo: 1024},
		{PortRangeFrom: 0, PortRangeTo: 65536},
		{PortRangeFrom: 52010, PortRangeTo: 52000},
	}
	for _, cfg := range invalid {
		require.NotNil(t, cfg.validate())
	}
}

func TestHostnameHash(t *testing.T) {
	from, _ := jid.NewWithString("alice@xmpp.example/balcony", true)
	to, _ := jid.NewWithString("bob@xmpp.example/garden", true)

	h1 := hostnameHash("sid-1", from, to)
	require.Equal(t, 40, len(h1))
	require.Equal(t, h1, hostnameHash("sid-1", from, to))
	require.NotEqual(t, h1, hostnameHash("sid-2", from, to))
	require.NotEqual(t, h1, hostnameHash("sid-1", to, from))
}

func newTestSession(payload []byte) *transfer.Session {
	from, _ := jid.NewWithString("alice@xmpp.example/balcony", true)
	to, _ := jid.NewWithString("bob@xmpp.example/garden", true)
	return &transfer.Session{
		SID:    "sid-1234",
		From:   from,
		To:     to,
		Size:   uint64(len(payload)),
		Source: ioutil.NopCloser(bytes.NewReader(payload)),
		Method: Namespace,
	}
}

func TestDirectServe(t *testing.T) {
	x, _ := testModule()

	payload := bytes.Repeat([]byte{0xAB}, 10000)
	sess := newTestSession(payload)
	hash := hostnameHash(sess.SID, sess.From, sess.To)

	server, client := net.Pipe()
	defer client.Close()

	servedCh := make(chan error, 1)
	go func() {
		ok, err := x.serveConn(server, sess, hash)
		require.True(t, ok)
		server.Close()
		servedCh <- err
	}()
	require.Nil(t, clientHandshake(client, hash))

	received, err := ioutil.ReadAll(client)
	require.Nil(t, err)
	require.Equal(t, payload, received)

	require.Nil(t, <-servedCh)
	require.Equal(t, uint64(len(payload)), sess.Count())
	require.True(t, sess.Completed())
}

func TestDirectServeHashMismatch(t *testing.T) {
	x, _ := testModule()

	payload := []byte("secret content")
	sess := newTestSession(payload)
	hash := hostnameHash(sess.SID, sess.From, sess.To)

	server, client := net.Pipe()
	defer client.Close()

	servedCh := make(chan bool, 1)
	go func() {
		ok, _ := x.serveConn(server, sess, hash)
		server.Close()
		servedCh <- ok
	}()
	authReq := AuthRequest{Methods: []AuthMethod{AuthNone}}
	require.Nil(t, authReq.Serialize(client))
	_, err := DeserializeAuthResponse(client)
	require.Nil(t, err)

	req := SocksRequest{Command: Connect, Addr: DomainAddr("deadbeefdeadbeefdeadbeefdeadbeefdeadbeef"), Port: 0}
	require.Nil(t, req.Serialize(client))

	reply, err := DeserializeSocksReply(client)
	require.Nil(t, err)
	require.Equal(t, ConnectionRefused, reply.Status)

	// the connection was rejected: nothing got transferred
	require.False(t, <-servedCh)
	require.Equal(t, uint64(0), sess.Count())
}

func TestReceiverUnknownSessionRejected(t *testing.T) {
	x, sessions := testModule()
	require.Nil(t, sessions.Add(&transfer.Session{SID: "other"}))

	iq := buildStreamhostsIQ("unknown-sid", "tcp")
	stm := x.stm.(*module.MockStream)

	require.True(t, x.InterceptIQ(iq))
	response := stm.FetchElement()
	require.Equal(t, "error", response.Type())
	require.Equal(t, "not-acceptable", response.Error().Elements().All()[0].Name())
}

func TestReceiverUDPModeRejected(t *testing.T) {
	x, sessions := testModule()

	w := nopWriteCloser{new(bytes.Buffer)}
	require.Nil(t, sessions.Add(&transfer.Session{SID: "sid-1234", Receiving: true, Sink: w}))

	iq := buildStreamhostsIQ("sid-1234", "udp")
	stm := x.stm.(*module.MockStream)

	require.True(t, x.InterceptIQ(iq))
	response := stm.FetchElement()
	require.Equal(t, "error", response.Type())
}

func buildStreamhostsIQ(sid, mode string) *xmpp.IQ {
	from, _ := jid.NewWithString("alice@xmpp.example/balcony", true)
	iq := xmpp.NewIQType("s5b-1", xmpp.SetType)
	iq.SetFromJID(from)
	query := xmpp.NewElementNamespace("query", Namespace)
	query.SetAttribute("sid", sid)
	if len(mode) > 0 {
		query.SetAttribute("mode", mode)
	}
	host := xmpp.NewElementName("streamhost")
	host.SetAttribute("jid", "alice@xmpp.example/balcony")
	host.SetAttribute("host", "192.0.2.1")
	host.SetAttribute("port", "52000")
	query.AppendElement(host)
	iq.AppendElement(query)
	return iq
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

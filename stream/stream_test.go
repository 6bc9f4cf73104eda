/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package stream

import (
	"encoding/base64"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ortuman/mink/module"
	"github.com/ortuman/mink/module/roster"
	"github.com/ortuman/mink/storage/memstorage"
	"github.com/ortuman/mink/xmpp"
)

const testResource = "server-resource"

type serverBehavior struct {
	tlsRequired  bool
	afterSession func(conn net.Conn, parser *xmpp.Parser)
}

type testServer struct {
	ln       net.Listener
	behavior serverBehavior
}

func startTestServer(t *testing.T, behavior serverBehavior) (*testServer, int) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)

	srv := &testServer{ln: ln, behavior: behavior}
	go srv.acceptLoop()
	return srv, ln.Addr().(*net.TCPAddr).Port
}

func (s *testServer) acceptLoop() {
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	s.serve(conn)
}

func (s *testServer) close() {
	s.ln.Close()
}

func (s *testServer) writeHeader(conn net.Conn) {
	conn.Write([]byte(`<?xml version="1.0"?><stream:stream xmlns="jabber:client" xmlns:stream="http://etherx.jabber.org/streams" id="s-1" from="xmpp.example" xml:lang="en" version="1.0">`))
}

func (s *testServer) serve(conn net.Conn) {
	defer conn.Close()

	parser := xmpp.NewParser(conn, 0)
	if header, err := parser.ParseElement(); err != nil || header.Name() != "stream:stream" {
		return
	}
	s.writeHeader(conn)

	if s.behavior.tlsRequired {
		conn.Write([]byte(`<stream:features><starttls xmlns="urn:ietf:params:xml:ns:xmpp-tls"><required/></starttls></stream:features>`))
		return
	}
	conn.Write([]byte(`<stream:features><mechanisms xmlns="urn:ietf:params:xml:ns:xmpp-sasl"><mechanism>PLAIN</mechanism></mechanisms></stream:features>`))

	auth, err := parser.ParseElement()
	if err != nil || auth.Name() != "auth" {
		return
	}
	payload, _ := base64.StdEncoding.DecodeString(auth.Text())
	if string(payload) != "\x00alice\x00s3cret" {
		conn.Write([]byte(`<failure xmlns="urn:ietf:params:xml:ns:xmpp-sasl"><not-authorized/></failure>`))
		return
	}
	conn.Write([]byte(`<success xmlns="urn:ietf:params:xml:ns:xmpp-sasl"/>`))

	if header, err := parser.ParseElement(); err != nil || header.Name() != "stream:stream" {
		return
	}
	s.writeHeader(conn)
	conn.Write([]byte(`<stream:features><bind xmlns="urn:ietf:params:xml:ns:xmpp-bind"/><session xmlns="urn:ietf:params:xml:ns:xmpp-session"/></stream:features>`))

	bindIQ, err := parser.ParseElement()
	if err != nil || bindIQ.Name() != "iq" {
		return
	}
	conn.Write([]byte(fmt.Sprintf(
		`<iq id="%s" type="result"><bind xmlns="urn:ietf:params:xml:ns:xmpp-bind"><jid>alice@xmpp.example/%s</jid></bind></iq>`,
		bindIQ.ID(), testResource)))

	sessIQ, err := parser.ParseElement()
	if err != nil || sessIQ.Name() != "iq" {
		return
	}
	conn.Write([]byte(fmt.Sprintf(`<iq id="%s" type="result"/>`, sessIQ.ID())))

	if s.behavior.afterSession != nil {
		s.behavior.afterSession(conn, parser)
	}
}

func testConfig(port int) *Config {
	return &Config{
		Hostname: "127.0.0.1",
		Port:     port,
		Domain:   "xmpp.example",
		Username: "alice",
		Password: "s3cret",
		UseTLS:   false,
	}
}

func TestEngineConnectAndLogin(t *testing.T) {
	srv, port := startTestServer(t, serverBehavior{
		afterSession: func(conn net.Conn, parser *xmpp.Parser) {
			for {
				elem, err := parser.ParseElement()
				if err != nil {
					return
				}
				switch {
				case elem.Name() == "iq" && elem.Elements().ChildNamespace("query", "jabber:iq:roster") != nil:
					conn.Write([]byte(fmt.Sprintf(
						`<iq id="%s" type="result"><query xmlns="jabber:iq:roster"><item jid="bob@xmpp.example" subscription="both"/></query></iq>`,
						elem.ID())))
				case elem.Name() == "presence":
					// initial presence broadcast: nothing to answer
				}
			}
		},
	})
	defer srv.close()

	reg := module.NewRegistry()
	engine := New(testConfig(port), reg)
	str := memstorage.New()
	r := roster.New(engine, str)
	require.Nil(t, reg.Register(r))

	require.Nil(t, engine.Connect())
	defer engine.Close()

	require.Equal(t, "alice@xmpp.example/"+testResource, engine.JID().String())
	require.Equal(t, "en", engine.DefaultLanguage())
	require.False(t, engine.IsSecured())

	// the roster got fetched on session establishment
	items, err := r.Items()
	require.Nil(t, err)
	require.Equal(t, 1, len(items))
	require.Equal(t, "bob@xmpp.example", items[0].JID)
}

func TestEngineIQCorrelation(t *testing.T) {
	srv, port := startTestServer(t, serverBehavior{
		afterSession: func(conn net.Conn, parser *xmpp.Parser) {
			for {
				elem, err := parser.ParseElement()
				if err != nil {
					return
				}
				if elem.Name() != "iq" {
					continue
				}
				if elem.Elements().ChildNamespace("ping", "urn:xmpp:ping") != nil {
					conn.Write([]byte(fmt.Sprintf(`<iq id="%s" type="result"/>`, elem.ID())))
				}
				// anything else is deliberately left unanswered
			}
		},
	})
	defer srv.close()

	engine := New(testConfig(port), module.NewRegistry())
	require.Nil(t, engine.Connect())
	defer engine.Close()

	iq := xmpp.NewIQType(engine.NextID(), xmpp.GetType)
	iq.AppendElement(xmpp.NewElementNamespace("ping", "urn:xmpp:ping"))

	resp, err := engine.SendIQ(iq, time.Second)
	require.Nil(t, err)
	require.True(t, resp.IsResult())
	require.Equal(t, iq.ID(), resp.ID())

	// unanswered request expires
	silent := xmpp.NewIQType(engine.NextID(), xmpp.GetType)
	silent.AppendElement(xmpp.NewElementNamespace("query", "jabber:iq:version"))

	_, err = engine.SendIQ(silent, 100*time.Millisecond)
	require.Equal(t, ErrTimeout, err)
}

func TestEngineStreamClosedReleasesWaiters(t *testing.T) {
	srv, port := startTestServer(t, serverBehavior{
		afterSession: func(conn net.Conn, parser *xmpp.Parser) {
			// read the request, then slam the connection shut
			parser.ParseElement()
			conn.Close()
		},
	})
	defer srv.close()

	engine := New(testConfig(port), module.NewRegistry())
	require.Nil(t, engine.Connect())

	iq := xmpp.NewIQType(engine.NextID(), xmpp.GetType)
	iq.AppendElement(xmpp.NewElementNamespace("query", "jabber:iq:roster"))

	_, err := engine.SendIQ(iq, 10*time.Second)
	require.Equal(t, ErrStreamClosed, err)

	// subsequent requests fail fast
	_, err = engine.SendIQ(iq, time.Second)
	require.Equal(t, ErrNotConnected, err)
}

func TestEngineTLSRequiredButDisabled(t *testing.T) {
	srv, port := startTestServer(t, serverBehavior{tlsRequired: true})
	defer srv.close()

	engine := New(testConfig(port), module.NewRegistry())
	require.Equal(t, ErrTLSRequired, engine.Connect())
}

func TestEngineRejectsSecondConnect(t *testing.T) {
	srv, port := startTestServer(t, serverBehavior{
		afterSession: func(conn net.Conn, parser *xmpp.Parser) {
			for {
				if _, err := parser.ParseElement(); err != nil {
					return
				}
			}
		},
	})
	defer srv.close()

	engine := New(testConfig(port), module.NewRegistry())
	require.Nil(t, engine.Connect())
	defer engine.Close()

	require.Equal(t, ErrAlreadyConnected, engine.Connect())
}

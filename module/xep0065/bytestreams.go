/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xep0065

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sony/gobreaker"

	"github.com/ortuman/mink/log"
	"github.com/ortuman/mink/module"
	"github.com/ortuman/mink/module/xep0030"
	"github.com/ortuman/mink/transfer"
	"github.com/ortuman/mink/xmpp"
	"github.com/ortuman/mink/xmpp/jid"
)

// ModuleID is the SOCKS5 bytestreams module registry identifier.
const ModuleID = "bytestreams"

// Namespace specifies the SOCKS5 bytestreams namespace.
const Namespace = "http://jabber.org/protocol/bytestreams"

const (
	acceptTimeout    = 3 * time.Minute
	handshakeTimeout = 10 * time.Second
	dialTimeout      = 10 * time.Second
	negotiateTimeout = 5 * time.Minute

	chunkSize = 32768
)

type streamhost struct {
	jid  string
	host string
	port uint16
}

// Bytestreams represents a SOCKS5 bytestreams module implementing
// direct and mediated transfers.
type Bytestreams struct {
	stm      module.Stream
	sessions *transfer.Registry
	cfg      *Config
	mapper   transfer.PortMapper
	resolver transfer.AddressResolver

	disco *xep0030.DiscoInfo

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// New returns a SOCKS5 bytestreams module instance. The port mapper
// and address resolver collaborators may be nil, disabling UPnP
// mappings and external address discovery respectively.
func New(stm module.Stream, sessions *transfer.Registry, cfg *Config, mapper transfer.PortMapper, resolver transfer.AddressResolver) *Bytestreams {
	cfg.applyDefaults()
	return &Bytestreams{
		stm:      stm,
		sessions: sessions,
		cfg:      cfg,
		mapper:   mapper,
		resolver: resolver,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// ID returns the module stable identifier.
func (x *Bytestreams) ID() string {
	return ModuleID
}

// Namespaces returns the module advertised namespaces.
func (x *Bytestreams) Namespaces() []string {
	return []string{Namespace}
}

// Initialize resolves the service discovery module dependency.
func (x *Bytestreams) Initialize(reg *module.Registry) error {
	mod, err := reg.Lookup(xep0030.ModuleID)
	if err != nil {
		return err
	}
	disco, ok := mod.(*xep0030.DiscoInfo)
	if !ok {
		return fmt.Errorf("xep0065: unexpected disco module type")
	}
	x.disco = disco
	return nil
}

// Namespace returns the stream method namespace offered on
// stream initiation.
func (x *Bytestreams) Namespace() string {
	return Namespace
}

// Transfer moves session bytes on the initiating side: a local
// SOCKS5 server serves direct connections while the streamhost
// offer is negotiated, falling back to a mediated proxy when the
// target picks one.
func (x *Bytestreams) Transfer(sess *transfer.Session) error {
	hash := hostnameHash(sess.SID, sess.From, sess.To)
	directJID := sess.From.String()

	var hosts []streamhost
	var mappedPort int

	ln, port, err := x.bindListener()
	if err != nil {
		log.Warnf("could not bind local streamhost listener: %v", err)
	} else {
		defer ln.Close()

		local := upInterfaceAddresses()
		for _, ip := range local {
			hosts = append(hosts, streamhost{jid: directJID, host: ip.String(), port: port})
		}
		for _, ext := range x.externalAddresses(local) {
			if x.cfg.UseUPnP && x.mapper != nil {
				// best effort: a failed mapping just leaves the
				// external candidate unreachable
				if err := x.mapper.AddPortMapping(int(port)); err != nil {
					log.Warnf("UPnP port mapping failed: %v", err)
				} else {
					mappedPort = int(port)
				}
			}
			hosts = append(hosts, streamhost{jid: directJID, host: ext.String(), port: port})
		}
	}
	if mappedPort > 0 {
		defer x.mapper.DeletePortMapping(mappedPort)
	}
	proxies := x.collectProxies()
	hosts = append(hosts, proxies...)

	if len(hosts) == 0 {
		return errors.New("xep0065: no candidate streamhosts")
	}
	directCh := make(chan error, 1)
	if ln != nil {
		go x.serveDirect(ln, sess, hash, directCh)
	}
	used, err := x.offerStreamhosts(sess, hosts)
	if err != nil {
		return err
	}
	if used == directJID {
		return <-directCh
	}
	var proxyHost *streamhost
	for i, h := range proxies {
		if h.jid == used {
			proxyHost = &proxies[i]
			break
		}
	}
	if proxyHost == nil {
		return fmt.Errorf("xep0065: unknown streamhost used: %s", used)
	}
	return x.transferMediated(sess, proxyHost, hash)
}

// InterceptIQ processes inbound streamhost offers on the receiving side.
func (x *Bytestreams) InterceptIQ(iq *xmpp.IQ) bool {
	query := iq.Elements().ChildNamespace("query", Namespace)
	if query == nil || !iq.IsSet() {
		return false
	}
	sid := query.Attributes().Get("sid")
	sess := x.sessions.Get(sid)
	if sess == nil || !sess.Receiving {
		x.stm.SendElement(iq.NotAcceptableError())
		return true
	}
	if query.Attributes().Get("mode") == "udp" {
		x.stm.SendElement(iq.NotAcceptableError())
		return true
	}
	var hosts []streamhost
	for _, hostEl := range query.Elements().Children("streamhost") {
		port, _ := strconv.ParseUint(hostEl.Attributes().Get("port"), 10, 16)
		hosts = append(hosts, streamhost{
			jid:  hostEl.Attributes().Get("jid"),
			host: hostEl.Attributes().Get("host"),
			port: uint16(port),
		})
	}
	// connection attempts must not block the dispatcher
	go x.receive(iq, sess, hosts)
	return true
}

func (x *Bytestreams) receive(iq *xmpp.IQ, sess *transfer.Session, hosts []streamhost) {
	hash := hostnameHash(sess.SID, sess.From, sess.To)
	for _, host := range hosts {
		conn, err := net.DialTimeout("tcp", net.JoinHostPort(host.host, strconv.Itoa(int(host.port))), dialTimeout)
		if err != nil {
			log.Debugf("streamhost unreachable... host: %s, err: %v", host.host, err)
			continue
		}
		if err := clientHandshake(conn, hash); err != nil {
			log.Debugf("streamhost handshake failed... host: %s, err: %v", host.host, err)
			conn.Close()
			continue
		}
		result := iq.ResultIQ()
		query := xmpp.NewElementNamespace("query", Namespace)
		query.SetAttribute("sid", sess.SID)
		used := xmpp.NewElementName("streamhost-used")
		used.SetAttribute("jid", host.jid)
		query.AppendElement(used)
		result.AppendElement(query)
		x.stm.SendElement(result)

		sess.Finish(x.pumpIn(conn, sess))
		conn.Close()
		return
	}
	x.stm.SendElement(iq.ItemNotFoundError())
	sess.Finish(transfer.ErrAborted)
}

func (x *Bytestreams) bindListener() (net.Listener, uint16, error) {
	for port := x.cfg.PortRangeFrom; port <= x.cfg.PortRangeTo; port++ {
		ln, err := net.Listen("tcp", ":"+strconv.Itoa(port))
		if err == nil {
			return ln, uint16(port), nil
		}
	}
	return nil, 0, fmt.Errorf("xep0065: no free port in range [%d, %d]", x.cfg.PortRangeFrom, x.cfg.PortRangeTo)
}

// serveDirect accepts SOCKS5 clients verifying the hostname hash
// before streaming the session bytes.
func (x *Bytestreams) serveDirect(ln net.Listener, sess *transfer.Session, hash string, doneCh chan<- error) {
	deadline := time.Now().Add(acceptTimeout)
	if tcpLn, ok := ln.(*net.TCPListener); ok {
		tcpLn.SetDeadline(deadline)
	}
	for {
		conn, err := ln.Accept()
		if err != nil {
			doneCh <- errors.Wrap(err, "xep0065: accepting direct connection")
			return
		}
		ok, err := x.serveConn(conn, sess, hash)
		conn.Close()
		if ok {
			doneCh <- err
			return
		}
		// rejected client: keep accepting until the deadline
	}
}

func (x *Bytestreams) serveConn(conn net.Conn, sess *transfer.Session, hash string) (bool, error) {
	conn.SetDeadline(time.Now().Add(handshakeTimeout))

	authReq, err := DeserializeAuthRequest(conn)
	if err != nil {
		return false, nil
	}
	var noAuth bool
	for _, method := range authReq.Methods {
		if method == AuthNone {
			noAuth = true
			break
		}
	}
	authResp := AuthResponse{Method: AuthNone}
	if !noAuth {
		authResp.Method = AuthNoAcceptable
	}
	if err := authResp.Serialize(conn); err != nil || !noAuth {
		return false, nil
	}
	req, err := DeserializeSocksRequest(conn)
	if err != nil {
		return false, nil
	}
	domain, isDomain := req.Addr.(DomainAddr)
	if req.Command != Connect || !isDomain {
		reply := SocksReply{Status: CommandNotSupported, Addr: DomainAddr("")}
		reply.Serialize(conn)
		return false, nil
	}
	if string(domain) != hash {
		reply := SocksReply{Status: ConnectionRefused, Addr: DomainAddr("")}
		reply.Serialize(conn)
		log.Warnf("SOCKS5 hostname hash mismatch... sid: %s", sess.SID)
		return false, nil
	}
	reply := SocksReply{Status: Succeeded, Addr: domain}
	if err := reply.Serialize(conn); err != nil {
		return false, nil
	}
	conn.SetDeadline(time.Time{})
	return true, x.pumpOut(conn, sess)
}

func (x *Bytestreams) offerStreamhosts(sess *transfer.Session, hosts []streamhost) (string, error) {
	iq := xmpp.NewIQType(x.stm.NextID(), xmpp.SetType)
	iq.SetToJID(sess.To)
	query := xmpp.NewElementNamespace("query", Namespace)
	query.SetAttribute("sid", sess.SID)
	query.SetAttribute("mode", "tcp")
	for _, host := range hosts {
		hostEl := xmpp.NewElementName("streamhost")
		hostEl.SetAttribute("jid", host.jid)
		hostEl.SetAttribute("host", host.host)
		hostEl.SetAttribute("port", strconv.Itoa(int(host.port)))
		query.AppendElement(hostEl)
	}
	iq.AppendElement(query)

	resp, err := x.stm.SendIQ(iq, negotiateTimeout)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", xmpp.NewStanzaErrorFromElement(resp)
	}
	q := resp.Elements().ChildNamespace("query", Namespace)
	if q == nil || q.Elements().Child("streamhost-used") == nil {
		return "", fmt.Errorf("xep0065: missing streamhost-used element")
	}
	return q.Elements().Child("streamhost-used").Attributes().Get("jid"), nil
}

func (x *Bytestreams) transferMediated(sess *transfer.Session, proxy *streamhost, hash string) error {
	conn, err := x.dialProxy(proxy, hash)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := x.activateProxy(sess, proxy.jid); err != nil {
		return err
	}
	return x.pumpOut(conn, sess)
}

// dialProxy opens and handshakes a proxy connection behind a per
// proxy circuit breaker, so a dead proxy is skipped fast on
// subsequent transfers.
func (x *Bytestreams) dialProxy(proxy *streamhost, hash string) (net.Conn, error) {
	breaker := x.proxyBreaker(proxy.jid)
	ret, err := breaker.Execute(func() (interface{}, error) {
		conn, err := net.DialTimeout("tcp", net.JoinHostPort(proxy.host, strconv.Itoa(int(proxy.port))), dialTimeout)
		if err != nil {
			return nil, err
		}
		if err := clientHandshake(conn, hash); err != nil {
			conn.Close()
			return nil, err
		}
		return conn, nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "xep0065: connecting proxy %s", proxy.jid)
	}
	return ret.(net.Conn), nil
}

func (x *Bytestreams) proxyBreaker(proxyJID string) *gobreaker.CircuitBreaker {
	x.mu.Lock()
	defer x.mu.Unlock()
	breaker, ok := x.breakers[proxyJID]
	if !ok {
		breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: proxyJID})
		x.breakers[proxyJID] = breaker
	}
	return breaker
}

func (x *Bytestreams) activateProxy(sess *transfer.Session, proxyJID string) error {
	to, err := jid.NewWithString(proxyJID, true)
	if err != nil {
		return err
	}
	iq := xmpp.NewIQType(x.stm.NextID(), xmpp.SetType)
	iq.SetToJID(to)
	query := xmpp.NewElementNamespace("query", Namespace)
	query.SetAttribute("sid", sess.SID)
	activate := xmpp.NewElementName("activate")
	activate.SetText(sess.To.String())
	query.AppendElement(activate)
	iq.AppendElement(query)

	resp, err := x.stm.SendIQ(iq, time.Minute)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return xmpp.NewStanzaErrorFromElement(resp)
	}
	return nil
}

// collectProxies gathers candidate proxies: the user configured
// ones plus every proxy/bytestreams item discovered on the server.
func (x *Bytestreams) collectProxies() []streamhost {
	if !x.cfg.ProxyAllowed || x.disco == nil {
		return nil
	}
	proxyJIDs := append([]string{}, x.cfg.Proxies...)

	serverJID, err := jid.New("", x.stm.JID().Domain(), "", true)
	if err == nil {
		items, err := x.disco.RequestItems(serverJID, "")
		if err != nil {
			log.Warnf("proxy discovery failed: %v", err)
		}
		for _, item := range items {
			itemJID, err := jid.NewWithString(item.Jid, true)
			if err != nil {
				continue
			}
			info, err := x.disco.RequestInfo(itemJID, "")
			if err != nil {
				continue
			}
			for _, identity := range info.Identities {
				if identity.Category == "proxy" && identity.Type == "bytestreams" {
					proxyJIDs = append(proxyJIDs, item.Jid)
					break
				}
			}
		}
	}
	var ret []streamhost
	for _, proxyJID := range proxyJIDs {
		host, err := x.queryStreamhost(proxyJID)
		if err != nil {
			log.Warnf("streamhost query failed... proxy: %s, err: %v", proxyJID, err)
			continue
		}
		ret = append(ret, *host)
	}
	return ret
}

func (x *Bytestreams) queryStreamhost(proxyJID string) (*streamhost, error) {
	to, err := jid.NewWithString(proxyJID, true)
	if err != nil {
		return nil, err
	}
	iq := xmpp.NewIQType(x.stm.NextID(), xmpp.GetType)
	iq.SetToJID(to)
	iq.AppendElement(xmpp.NewElementNamespace("query", Namespace))

	resp, err := x.stm.SendIQ(iq, time.Minute)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, xmpp.NewStanzaErrorFromElement(resp)
	}
	query := resp.Elements().ChildNamespace("query", Namespace)
	if query == nil || query.Elements().Child("streamhost") == nil {
		return nil, fmt.Errorf("xep0065: missing streamhost element")
	}
	hostEl := query.Elements().Child("streamhost")
	port, _ := strconv.ParseUint(hostEl.Attributes().Get("port"), 10, 16)
	return &streamhost{
		jid:  hostEl.Attributes().Get("jid"),
		host: hostEl.Attributes().Get("host"),
		port: uint16(port),
	}, nil
}

// externalAddresses resolves the externally visible addresses not
// already present on an up interface. An address missing from the
// local set means this host sits behind NAT.
func (x *Bytestreams) externalAddresses(local []net.IP) []net.IP {
	if x.resolver == nil {
		return nil
	}
	localSet := make(map[string]struct{}, len(local))
	for _, ip := range local {
		localSet[ip.String()] = struct{}{}
	}
	var ret []net.IP
	for _, ext := range x.resolver.ExternalAddresses() {
		if _, ok := localSet[ext.String()]; ok {
			continue
		}
		ret = append(ret, ext)
	}
	return ret
}

func (x *Bytestreams) pumpOut(w io.Writer, sess *transfer.Session) error {
	buf := make([]byte, chunkSize)
	for sess.Count() < sess.Size {
		if sess.Cancelled() {
			return transfer.ErrAborted
		}
		n, err := sess.Source.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			sess.AddCount(uint64(n))
		}
		if err != nil {
			if err == io.EOF && sess.Completed() {
				return nil
			}
			return err
		}
	}
	return nil
}

func (x *Bytestreams) pumpIn(r io.Reader, sess *transfer.Session) error {
	buf := make([]byte, chunkSize)
	for sess.Count() < sess.Size {
		if sess.Cancelled() {
			return transfer.ErrAborted
		}
		remaining := sess.Size - sess.Count()
		if remaining < chunkSize {
			buf = buf[:remaining]
		}
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := sess.Sink.Write(buf[:n]); werr != nil {
				return werr
			}
			sess.AddCount(uint64(n))
		}
		if err != nil {
			if err == io.EOF && sess.Completed() {
				return nil
			}
			return err
		}
	}
	return nil
}

func clientHandshake(conn net.Conn, hash string) error {
	conn.SetDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetDeadline(time.Time{})

	authReq := AuthRequest{Methods: []AuthMethod{AuthNone}}
	if err := authReq.Serialize(conn); err != nil {
		return err
	}
	authResp, err := DeserializeAuthResponse(conn)
	if err != nil {
		return err
	}
	if authResp.Method != AuthNone {
		return fmt.Errorf("xep0065: unacceptable authentication method: %d", authResp.Method)
	}
	req := SocksRequest{Command: Connect, Addr: DomainAddr(hash), Port: 0}
	if err := req.Serialize(conn); err != nil {
		return err
	}
	reply, err := DeserializeSocksReply(conn)
	if err != nil {
		return err
	}
	if reply.Status != Succeeded {
		return fmt.Errorf("xep0065: connect rejected: status %d", reply.Status)
	}
	return nil
}

// hostnameHash derives the SOCKS5 destination hostname proving both
// parties belong to the negotiated session.
func hostnameHash(sid string, from, to *jid.JID) string {
	h := sha1.New()
	io.WriteString(h, sid)
	io.WriteString(h, from.String())
	io.WriteString(h, to.String())
	return hex.EncodeToString(h.Sum(nil))
}

func upInterfaceAddresses() []net.IP {
	var ret []net.IP
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipNet.IP.To4(); ip4 != nil {
				ret = append(ret, ip4)
			}
		}
	}
	return ret
}

/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xep0115

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ortuman/mink/log"
	"github.com/ortuman/mink/module"
	"github.com/ortuman/mink/module/xep0030"
	"github.com/ortuman/mink/storage"
	"github.com/ortuman/mink/xmpp"
	"github.com/ortuman/mink/xmpp/jid"
)

// ModuleID is the entity capabilities module registry identifier.
const ModuleID = "caps"

const capsNamespace = "http://jabber.org/protocol/caps"

// EntityCaps represents an entity capabilities module. Outgoing
// presences get annotated with the client verification hash, and
// remote feature sets are resolved through a cache keyed by 'ver'.
type EntityCaps struct {
	stm  module.Stream
	str  storage.Storage
	node string

	disco *xep0030.DiscoInfo

	mu       sync.RWMutex
	peerVers map[string]string
}

// New returns an entity capabilities module instance. The node
// argument identifies the client software URI.
func New(stm module.Stream, str storage.Storage, node string) *EntityCaps {
	return &EntityCaps{
		stm:      stm,
		str:      str,
		node:     node,
		peerVers: make(map[string]string),
	}
}

// ID returns the module stable identifier.
func (c *EntityCaps) ID() string {
	return ModuleID
}

// Namespaces returns the module advertised namespaces.
func (c *EntityCaps) Namespaces() []string {
	return []string{capsNamespace}
}

// Initialize resolves the service discovery module dependency.
func (c *EntityCaps) Initialize(reg *module.Registry) error {
	mod, err := reg.Lookup(xep0030.ModuleID)
	if err != nil {
		return err
	}
	disco, ok := mod.(*xep0030.DiscoInfo)
	if !ok {
		return fmt.Errorf("xep0115: unexpected disco module type")
	}
	c.disco = disco
	return nil
}

// FilterOutPresence annotates outgoing available presences with
// the '<c/>' capabilities element.
func (c *EntityCaps) FilterOutPresence(presence *xmpp.Presence) {
	if !presence.IsAvailable() || c.disco == nil {
		return
	}
	presence.RemoveElementsNamespace("c", capsNamespace)

	ce := xmpp.NewElementNamespace("c", capsNamespace)
	ce.SetAttribute("hash", "sha-1")
	ce.SetAttribute("node", c.node)
	ce.SetAttribute("ver", ComputeVerification(c.disco.Identity(), c.disco.Features()))
	presence.AppendElement(ce)
}

// InterceptPresence records the capabilities verification string
// advertised by remote presences. The presence is left untouched so
// remaining filters keep running.
func (c *EntityCaps) InterceptPresence(presence *xmpp.Presence) bool {
	from := presence.FromJID()
	if from == nil {
		return false
	}
	ce := presence.Elements().ChildNamespace("c", capsNamespace)
	if ce == nil {
		return false
	}
	if ver := ce.Attributes().Get("ver"); len(ver) > 0 {
		c.mu.Lock()
		c.peerVers[from.String()] = ver
		c.mu.Unlock()
	}
	return false
}

// GetExtensions returns the feature set advertised by a remote
// entity. Discovery is performed once per distinct 'ver' value; a
// peer that never advertised capabilities gets queried directly.
func (c *EntityCaps) GetExtensions(j *jid.JID) ([]string, error) {
	c.mu.RLock()
	ver := c.peerVers[j.String()]
	c.mu.RUnlock()

	if len(ver) == 0 {
		info, err := c.disco.RequestInfo(j, "")
		if err != nil {
			return nil, err
		}
		return info.Features, nil
	}
	cached, err := c.str.FetchCapabilities(ver)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}
	info, err := c.disco.RequestInfo(j, c.nodeFor(ver))
	if err != nil {
		return nil, err
	}
	// recompute the hash before caching so a spoofed 'ver' cannot
	// poison the cache
	if len(info.Identities) > 0 && ComputeVerification(info.Identities[0], info.Features) == ver {
		if err := c.str.UpsertCapabilities(ver, info.Features); err != nil {
			return nil, err
		}
	} else {
		log.Warnf("capabilities hash mismatch... jid: %s, ver: %s", j.String(), ver)
	}
	return info.Features, nil
}

// ComputeVerification derives the capabilities verification hash
// from an identity and its advertised features. Same inputs always
// yield the same base64 encoded SHA-1 digest.
func ComputeVerification(identity xep0030.Identity, features []string) string {
	sorted := make([]string, len(features))
	copy(sorted, features)
	sort.Strings(sorted)

	b := strings.Builder{}
	b.WriteString(identity.Category)
	b.WriteString("/")
	b.WriteString(identity.Type)
	b.WriteString("//")
	b.WriteString(identity.Name)
	b.WriteString("<")
	for _, feature := range sorted {
		b.WriteString(feature)
		b.WriteString("<")
	}
	sum := sha1.Sum([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func (c *EntityCaps) nodeFor(ver string) string {
	return c.node + "#" + ver
}

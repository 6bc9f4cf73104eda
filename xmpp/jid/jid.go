/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package jid

import (
	"errors"
	"fmt"
	"strings"
)

// MatchingOptions represents a matching jid mask.
type MatchingOptions int8

const (
	// MatchesNode indicates that left and right operand has same node value.
	MatchesNode = MatchingOptions(1)

	// MatchesDomain indicates that left and right operand has same domain value.
	MatchesDomain = MatchingOptions(2)

	// MatchesResource indicates that left and right operand has same resource value.
	MatchesResource = MatchingOptions(4)

	// MatchesBare indicates that left and right operand has same node and domain value.
	MatchesBare = MatchesNode | MatchesDomain

	// MatchesFull indicates that left and right operand has same node, domain and resource value.
	MatchesFull = MatchesNode | MatchesDomain | MatchesResource
)

// JID represents an XMPP address (JID).
// A JID is made up of a node (generally a username), a domain,
// and a resource. The node and resource are optional; domain is required.
// Instances are immutable once constructed.
type JID struct {
	node     string
	domain   string
	resource string
}

// New constructs a JID given a user, domain, and resource.
// This construction allows the caller to specify if stringprep should be applied or not.
func New(node, domain, resource string, skipStringPrep bool) (*JID, error) {
	if len(domain) == 0 {
		return nil, errors.New("jid: empty domain")
	}
	if skipStringPrep {
		return &JID{
			node:     node,
			domain:   domain,
			resource: resource,
		}, nil
	}
	prepNode, err := nodeprep(node)
	if err != nil {
		return nil, err
	}
	prepDomain, err := domainprep(domain)
	if err != nil {
		return nil, err
	}
	prepResource, err := resourceprep(resource)
	if err != nil {
		return nil, err
	}
	return &JID{
		node:     prepNode,
		domain:   prepDomain,
		resource: prepResource,
	}, nil
}

// NewWithString constructs a JID from it's string representation.
func NewWithString(str string, skipStringPrep bool) (*JID, error) {
	if len(str) == 0 {
		return nil, errors.New("jid: empty jid")
	}
	var node, domain, resource string

	atIndex := strings.Index(str, "@")
	slashIndex := strings.Index(str, "/")

	// node
	if atIndex > 0 {
		node = str[0:atIndex]
	}

	// domain
	if atIndex+1 == len(str) {
		return nil, errors.New("jid: missing domain")
	}
	if slashIndex > 0 {
		domain = str[atIndex+1 : slashIndex]
	} else {
		domain = str[atIndex+1:]
	}

	// resource
	if slashIndex > 0 && slashIndex+1 < len(str) {
		resource = str[slashIndex+1:]
	}
	return New(node, domain, resource, skipStringPrep)
}

// Node returns the node, or empty string if this JID does not contain node information.
func (j *JID) Node() string {
	return j.node
}

// Domain returns the domain.
func (j *JID) Domain() string {
	return j.domain
}

// Resource returns the resource, or empty string if this JID does not contain resource information.
func (j *JID) Resource() string {
	return j.resource
}

// ToBareJID returns the JID equivalent of the bare JID, which is the JID with no resource.
func (j *JID) ToBareJID() *JID {
	if len(j.node) == 0 {
		return &JID{node: "", domain: j.domain, resource: ""}
	}
	return &JID{node: j.node, domain: j.domain, resource: ""}
}

// IsServer returns true if instance is a server JID.
func (j *JID) IsServer() bool {
	return len(j.node) == 0
}

// IsBare returns true if instance is a bare JID.
func (j *JID) IsBare() bool {
	return len(j.node) > 0 && len(j.resource) == 0
}

// IsFull returns true if instance is a full JID.
func (j *JID) IsFull() bool {
	return len(j.resource) > 0
}

// IsFullWithServer returns true if instance is a full server JID.
func (j *JID) IsFullWithServer() bool {
	return len(j.node) == 0 && len(j.resource) > 0
}

// IsFullWithUser returns true if instance is a full client JID.
func (j *JID) IsFullWithUser() bool {
	return len(j.node) > 0 && len(j.resource) > 0
}

// Matches tells whether or not j2 matches j JID, according to matching options.
func (j *JID) Matches(j2 *JID, options MatchingOptions) bool {
	if (options&MatchesNode) > 0 && j.node != j2.node {
		return false
	}
	if (options&MatchesDomain) > 0 && j.domain != j2.domain {
		return false
	}
	if (options&MatchesResource) > 0 && j.resource != j2.resource {
		return false
	}
	return true
}

// String returns a string representation of the JID.
func (j *JID) String() string {
	buf := new(strings.Builder)
	if len(j.node) > 0 {
		buf.WriteString(j.node)
		buf.WriteString("@")
	}
	buf.WriteString(j.domain)
	if len(j.resource) > 0 {
		buf.WriteString("/")
		buf.WriteString(j.resource)
	}
	return buf.String()
}

func nodeprep(in string) (string, error) {
	out := strings.ToLower(strings.TrimSpace(in))
	if len(out) > 1023 {
		return "", fmt.Errorf("jid: node too long: %s", out)
	}
	if strings.ContainsAny(out, "\"&'/:<>@") {
		return "", fmt.Errorf("jid: invalid node: %s", in)
	}
	return out, nil
}

func domainprep(in string) (string, error) {
	out := strings.ToLower(strings.TrimSpace(in))
	if len(out) == 0 || len(out) > 1023 {
		return "", fmt.Errorf("jid: invalid domain: %s", in)
	}
	return out, nil
}

func resourceprep(in string) (string, error) {
	if len(in) > 1023 {
		return "", fmt.Errorf("jid: resource too long: %s", in)
	}
	return in, nil
}

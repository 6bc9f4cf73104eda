/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xep0016

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/ortuman/mink/xmpp"
)

// RuleType identifies the entity class a privacy rule matches.
type RuleType int

const (
	// Generic represents a rule matching every stanza.
	Generic RuleType = iota

	// JID represents a rule matching a JID.
	JID

	// Group represents a rule matching a roster group.
	Group

	// Subscription represents a rule matching a subscription state.
	Subscription
)

// Granularity is the set of stanza classes a rule applies to.
// A zero granularity blocks every class.
type Granularity int

const (
	// BlockMessage applies the rule to message stanzas.
	BlockMessage Granularity = 1 << iota

	// BlockIQ applies the rule to IQ stanzas.
	BlockIQ

	// BlockPresenceIn applies the rule to incoming presences.
	BlockPresenceIn

	// BlockPresenceOut applies the rule to outgoing presences.
	BlockPresenceOut
)

// Rule represents a single privacy list rule.
type Rule struct {
	Allow       bool
	Order       uint32
	Granularity Granularity
	Type        RuleType
	Value       string
}

// List represents an ordered privacy rule sequence.
type List struct {
	Name  string
	Rules []Rule
}

// Validate checks list integrity: at least one rule, and no two
// rules sharing the same evaluation order.
func (l *List) Validate() error {
	if len(l.Name) == 0 {
		return fmt.Errorf("xep0016: list name must be set")
	}
	if len(l.Rules) == 0 {
		return fmt.Errorf("xep0016: list %s must contain at least one rule", l.Name)
	}
	orders := make(map[uint32]struct{}, len(l.Rules))
	for _, rule := range l.Rules {
		if _, ok := orders[rule.Order]; ok {
			return fmt.Errorf("xep0016: list %s contains duplicated order value: %d", l.Name, rule.Order)
		}
		orders[rule.Order] = struct{}{}
	}
	return nil
}

// Element returns the privacy list XML representation, rules in
// ascending order.
func (l *List) Element() xmpp.XElement {
	listEl := xmpp.NewElementName("list")
	listEl.SetAttribute("name", l.Name)

	rules := make([]Rule, len(l.Rules))
	copy(rules, l.Rules)
	sort.Slice(rules, func(i, j int) bool { return rules[i].Order < rules[j].Order })

	for _, rule := range rules {
		listEl.AppendElement(rule.element())
	}
	return listEl
}

// NewListFromElement parses a privacy list XML element.
func NewListFromElement(elem xmpp.XElement) (*List, error) {
	if elem.Name() != "list" {
		return nil, fmt.Errorf("xep0016: invalid list element name: %s", elem.Name())
	}
	l := &List{Name: elem.Attributes().Get("name")}
	for _, itemEl := range elem.Elements().Children("item") {
		rule, err := newRuleFromElement(itemEl)
		if err != nil {
			return nil, err
		}
		l.Rules = append(l.Rules, *rule)
	}
	sort.Slice(l.Rules, func(i, j int) bool { return l.Rules[i].Order < l.Rules[j].Order })
	return l, nil
}

func (r *Rule) element() xmpp.XElement {
	itemEl := xmpp.NewElementName("item")
	if r.Allow {
		itemEl.SetAttribute("action", "allow")
	} else {
		itemEl.SetAttribute("action", "deny")
	}
	itemEl.SetAttribute("order", strconv.FormatUint(uint64(r.Order), 10))
	switch r.Type {
	case JID:
		itemEl.SetAttribute("type", "jid")
		itemEl.SetAttribute("value", r.Value)
	case Group:
		itemEl.SetAttribute("type", "group")
		itemEl.SetAttribute("value", r.Value)
	case Subscription:
		itemEl.SetAttribute("type", "subscription")
		itemEl.SetAttribute("value", r.Value)
	}
	if r.Granularity&BlockMessage > 0 {
		itemEl.AppendElement(xmpp.NewElementName("message"))
	}
	if r.Granularity&BlockIQ > 0 {
		itemEl.AppendElement(xmpp.NewElementName("iq"))
	}
	if r.Granularity&BlockPresenceIn > 0 {
		itemEl.AppendElement(xmpp.NewElementName("presence-in"))
	}
	if r.Granularity&BlockPresenceOut > 0 {
		itemEl.AppendElement(xmpp.NewElementName("presence-out"))
	}
	return itemEl
}

func newRuleFromElement(elem xmpp.XElement) (*Rule, error) {
	rule := &Rule{}
	switch elem.Attributes().Get("action") {
	case "allow":
		rule.Allow = true
	case "deny":
		rule.Allow = false
	default:
		return nil, fmt.Errorf("xep0016: unrecognized rule action: %s", elem.Attributes().Get("action"))
	}
	order, err := strconv.ParseUint(elem.Attributes().Get("order"), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("xep0016: invalid rule order: %v", err)
	}
	rule.Order = uint32(order)

	switch elem.Attributes().Get("type") {
	case "jid":
		rule.Type = JID
	case "group":
		rule.Type = Group
	case "subscription":
		rule.Type = Subscription
	case "":
		rule.Type = Generic
	default:
		return nil, fmt.Errorf("xep0016: unrecognized rule type: %s", elem.Attributes().Get("type"))
	}
	rule.Value = elem.Attributes().Get("value")

	if elem.Elements().Child("message") != nil {
		rule.Granularity |= BlockMessage
	}
	if elem.Elements().Child("iq") != nil {
		rule.Granularity |= BlockIQ
	}
	if elem.Elements().Child("presence-in") != nil {
		rule.Granularity |= BlockPresenceIn
	}
	if elem.Elements().Child("presence-out") != nil {
		rule.Granularity |= BlockPresenceOut
	}
	return rule, nil
}

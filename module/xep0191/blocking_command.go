/*
 * Copyright (c) 2019 Miguel Ángel Ortuño.
 * See the LICENSE file for more information.
 */

package xep0191

import (
	"fmt"
	"time"

	"github.com/ortuman/mink/log"
	"github.com/ortuman/mink/module"
	"github.com/ortuman/mink/module/xep0016"
	"github.com/ortuman/mink/module/xep0030"
	"github.com/ortuman/mink/xmpp"
	"github.com/ortuman/mink/xmpp/jid"
)

// ModuleID is the blocking command module registry identifier.
const ModuleID = "blocking_command"

const blockingCommandNamespace = "urn:xmpp:blocking"

// fallbackListName names the privacy list edited when the server
// does not implement the blocking command.
const fallbackListName = "blocklist"

const requestTimeout = time.Minute

// BlockingCommand represents a blocking command module. Servers
// lacking the blocking command get the block applied through a
// privacy list named "blocklist", made default and active.
type BlockingCommand struct {
	stm     module.Stream
	disco   *xep0030.DiscoInfo
	privacy *xep0016.Privacy
}

// New returns a blocking command module instance.
func New(stm module.Stream) *BlockingCommand {
	return &BlockingCommand{stm: stm}
}

// ID returns the module stable identifier.
func (x *BlockingCommand) ID() string {
	return ModuleID
}

// Namespaces returns the module advertised namespaces.
func (x *BlockingCommand) Namespaces() []string {
	return []string{blockingCommandNamespace}
}

// Initialize resolves disco and privacy module dependencies.
func (x *BlockingCommand) Initialize(reg *module.Registry) error {
	discoMod, err := reg.Lookup(xep0030.ModuleID)
	if err != nil {
		return err
	}
	disco, ok := discoMod.(*xep0030.DiscoInfo)
	if !ok {
		return fmt.Errorf("xep0191: unexpected disco module type")
	}
	privacyMod, err := reg.Lookup(xep0016.ModuleID)
	if err != nil {
		return err
	}
	privacy, ok := privacyMod.(*xep0016.Privacy)
	if !ok {
		return fmt.Errorf("xep0191: unexpected privacy module type")
	}
	x.disco = disco
	x.privacy = privacy
	return nil
}

// BlockJID blocks stanza delivery from and to a JID.
func (x *BlockingCommand) BlockJID(j *jid.JID) error {
	supported, err := x.disco.ServerSupportsFeature(blockingCommandNamespace)
	if err != nil {
		return err
	}
	if supported {
		return x.sendBlockIQ("block", j)
	}
	return x.blockThroughPrivacyList(j)
}

// UnblockJID removes a JID block.
func (x *BlockingCommand) UnblockJID(j *jid.JID) error {
	supported, err := x.disco.ServerSupportsFeature(blockingCommandNamespace)
	if err != nil {
		return err
	}
	if supported {
		return x.sendBlockIQ("unblock", j)
	}
	return x.unblockThroughPrivacyList(j)
}

// InterceptIQ acknowledges block list push notifications.
func (x *BlockingCommand) InterceptIQ(iq *xmpp.IQ) bool {
	if !iq.IsSet() {
		return false
	}
	block := iq.Elements().ChildNamespace("block", blockingCommandNamespace)
	unblock := iq.Elements().ChildNamespace("unblock", blockingCommandNamespace)
	if block == nil && unblock == nil {
		return false
	}
	x.stm.SendElement(iq.ResultIQ())
	return true
}

func (x *BlockingCommand) sendBlockIQ(action string, j *jid.JID) error {
	iq := xmpp.NewIQType(x.stm.NextID(), xmpp.SetType)
	actionEl := xmpp.NewElementNamespace(action, blockingCommandNamespace)
	itemEl := xmpp.NewElementName("item")
	itemEl.SetAttribute("jid", j.ToBareJID().String())
	actionEl.AppendElement(itemEl)
	iq.AppendElement(actionEl)

	resp, err := x.stm.SendIQ(iq, requestTimeout)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return xmpp.NewStanzaErrorFromElement(resp)
	}
	return nil
}

func (x *BlockingCommand) blockThroughPrivacyList(j *jid.JID) error {
	list, err := x.privacy.GetPrivacyList(fallbackListName)
	if err != nil {
		if se, ok := err.(*xmpp.StanzaError); !ok || se.Error() != xmpp.ErrItemNotFound.Error() {
			return err
		}
		list = &xep0016.List{Name: fallbackListName}
	}
	blockedJID := j.ToBareJID().String()
	for _, rule := range list.Rules {
		if rule.Type == xep0016.JID && rule.Value == blockedJID && !rule.Allow {
			return nil // already blocked
		}
	}
	list.Rules = append(list.Rules, xep0016.Rule{
		Allow: false,
		Order: nextRuleOrder(list),
		Type:  xep0016.JID,
		Value: blockedJID,
	})
	if err := x.privacy.EditPrivacyList(list); err != nil {
		return err
	}
	if err := x.privacy.SetDefaultPrivacyList(fallbackListName); err != nil {
		return err
	}
	return x.privacy.SetActivePrivacyList(fallbackListName)
}

func (x *BlockingCommand) unblockThroughPrivacyList(j *jid.JID) error {
	list, err := x.privacy.GetPrivacyList(fallbackListName)
	if err != nil {
		return err
	}
	blockedJID := j.ToBareJID().String()
	var kept []xep0016.Rule
	for _, rule := range list.Rules {
		if rule.Type == xep0016.JID && rule.Value == blockedJID && !rule.Allow {
			continue
		}
		kept = append(kept, rule)
	}
	if len(kept) == len(list.Rules) {
		return nil // nothing to unblock
	}
	if len(kept) == 0 {
		if err := x.privacy.SetActivePrivacyList(""); err != nil {
			log.Error(err)
		}
		if err := x.privacy.SetDefaultPrivacyList(""); err != nil {
			log.Error(err)
		}
		return x.privacy.RemovePrivacyList(fallbackListName)
	}
	list.Rules = kept
	return x.privacy.EditPrivacyList(list)
}

func nextRuleOrder(list *xep0016.List) uint32 {
	var max uint32
	for _, rule := range list.Rules {
		if rule.Order > max {
			max = rule.Order
		}
	}
	return max + 1
}

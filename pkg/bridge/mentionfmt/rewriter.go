// Copyright 2020-2026 The Vanguard Campaign Corps Mods (vanguardcampaign.org)

// Package mentionfmt translates mention tokens between their platform-native
// form and a portable display-name form.
//
// Outbound (toward the other workspace), native <@U123ABC> tokens become
// `@Display Name` — the backticks keep the destination platform from
// re-notifying by accident. Inbound, delimited `@Display Name` tokens are
// resolved against the destination's roster and become native mentions
// again. Tokens that cannot be resolved are left verbatim and reported so
// the caller can warn the sender.
package mentionfmt

import (
	"regexp"
	"strings"
)

var (
	nativeRe   = regexp.MustCompile(`<@([A-Z0-9]+)>`)
	portableRe = regexp.MustCompile("`@([^`]*)`")
	// An @ not preceded by < or ` is a mention attempt the sender forgot
	// to delimit.
	bareRe = regexp.MustCompile("[^<`]@")
)

// UserLookup resolves a platform user ID to a display name.
type UserLookup func(id string) (name string, ok bool)

// NameLookup resolves a display name to a platform user ID. It returns
// ok=false when the name is unknown or ambiguous in the destination scope.
type NameLookup func(name string) (id string, ok bool)

// OutboundResult is the rewritten text plus what the rewrite learned about
// the message.
type OutboundResult struct {
	Text string
	// Locals holds the display names that resolved from native mentions.
	// Names that already worked natively are excluded from "unknown name"
	// warnings downstream.
	Locals map[string]bool
	// Undelimited is set when the message contains a mention-like token
	// outside backticks; the sender gets a one-time formatting hint.
	Undelimited bool
}

// Outbound rewrites native mention tokens into portable display-name tokens.
// Unresolvable IDs are left verbatim.
func Outbound(text string, lookup UserLookup) OutboundResult {
	res := OutboundResult{Locals: make(map[string]bool)}
	res.Undelimited = strings.HasPrefix(text, "@") || bareRe.MatchString(text)
	res.Text = nativeRe.ReplaceAllStringFunc(text, func(tok string) string {
		id := nativeRe.FindStringSubmatch(tok)[1]
		name, ok := lookup(id)
		if !ok {
			return tok
		}
		res.Locals[name] = true
		return "`@" + name + "`"
	})
	return res
}

// InboundResult is the rewritten text plus the names that did not resolve.
type InboundResult struct {
	Text string
	// Missing holds display names with zero or multiple matches in the
	// destination scope, in order of appearance.
	Missing []string
}

// Inbound rewrites portable display-name tokens into native mentions for the
// destination scope. Unknown and ambiguous names stay verbatim.
func Inbound(text string, lookup NameLookup) InboundResult {
	var res InboundResult
	res.Text = portableRe.ReplaceAllStringFunc(text, func(tok string) string {
		name := portableRe.FindStringSubmatch(tok)[1]
		id, ok := lookup(name)
		if !ok {
			res.Missing = append(res.Missing, name)
			return tok
		}
		return "<@" + id + ">"
	})
	return res
}

// FixedRecipient builds a NameLookup over a single known recipient, used
// when the destination is a direct message rather than a channel roster.
func FixedRecipient(name, id string) NameLookup {
	return func(candidate string) (string, bool) {
		if candidate == name {
			return id, true
		}
		return "", false
	}
}

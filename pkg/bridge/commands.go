// Copyright 2020-2026 The Vanguard Campaign Corps Mods (vanguardcampaign.org)

package bridge

import (
	"context"
	_ "embed"
	"regexp"
	"strings"

	"github.com/slack-go/slack"
)

//go:embed manual.md
var manualText string

// manualHeading marks the manual section shown by the manual command.
const manualHeading = "User instructions"

var (
	channelTokenRe = regexp.MustCompile(`<#([^|>]*)(\|[^>]*)?>`)
	hashTokenRe    = regexp.MustCompile(`#(\S*)`)
	userTokenRe    = regexp.MustCompile(`<@([^|>]*)(\|[^>]*)?>`)
	bareUserRe     = regexp.MustCompile("`?@([^`]*)`?")
)

// handleCommand answers a slash command synchronously with response text.
// An empty return means the command will answer out of band (dm pairing
// posts its confirmation into the user's DM).
func (b *Bridge) handleCommand(ctx context.Context, cmd *slack.SlashCommand) string {
	command, args := splitCommand(cmd.Text)

	var channel string
	if cmd.ChannelName == "directmessage" {
		// Commands issued from the bridge DM infer the channel that
		// licensed the user's session.
		channel = b.sessions.Get(cmd.UserID).Channel
	} else {
		channel = b.resolver.ChannelName(ctx, cmd.ChannelID, cmd.TeamDomain)
	}
	args = b.processArgs(ctx, cmd.TeamDomain, channel, args)

	switch command {
	case "dm", "list":
		return b.handleTargeted(ctx, cmd, command, channel, args)
	case "manual":
		return manualSection()
	case "help":
		return helpText(cmd.Command)
	default:
		return "*Error:* Unrecognized command: '" + command + "'\n" + helpText(cmd.Command)
	}
}

// handleTargeted implements list and dm, which share their channel
// inference and validation.
func (b *Bridge) handleTargeted(ctx context.Context, cmd *slack.SlashCommand, command, channel, args string) string {
	var explicitChannel string
	if command == "dm" {
		if idx := strings.LastIndex(args, " - "); idx != -1 {
			explicitChannel = channel
			channel = args[idx+len(" - "):]
			args = args[:idx]
		}
	}
	if command == "list" && args != "" {
		channel = args
	}
	if channel == "" {
		return "*Error:* You must specify a bridged channel (could not infer it)!\n" +
			"_See_ *" + cmd.Command + " help*."
	}

	paired := b.lines.Pair(cmd.TeamDomain, channel, true)
	if paired == nil && explicitChannel != "" {
		// Maybe the user has a ' - ' in their name? Fall back to channel
		// inference.
		args += " - " + channel
		channel = explicitChannel
		paired = b.lines.Pair(cmd.TeamDomain, channel, true)
	}
	if paired == nil {
		if command == "dm" {
			b.abandonSession(ctx, cmd.TeamDomain, cmd.UserID)
		}
		return "*Error:* The channel '" + channel + "' is not bridged!"
	}
	if !b.resolver.IsMember(ctx, cmd.UserID, channel, cmd.TeamDomain) {
		if command == "dm" {
			b.abandonSession(ctx, cmd.TeamDomain, cmd.UserID)
		}
		return "*Error:* You are not a member of channel '" + channel + "'!"
	}

	if command == "list" {
		return "Members bridged with channel '" + channel + "':\n" +
			b.listUsers(paired.Workspace, paired.Channel)
	}

	if args == "" {
		b.abandonSession(ctx, cmd.TeamDomain, cmd.UserID)
		return "*Error:* You must specify a user to direct message!\n" +
			"_See_ *" + cmd.Command + " help* (on the *dm* command)."
	}

	uid, _ := b.resolver.FindByName(args, paired.Channel, paired.Workspace)
	if uid == "" {
		b.abandonSession(ctx, cmd.TeamDomain, cmd.UserID)
		return "*Error:* Could not find anyone by the name '" + args +
			"' bridged with channel '" + channel + "'!" +
			"\nMaybe you meant one of these people:\n" +
			b.listUsers(paired.Workspace, paired.Channel)
	}

	go b.selectUser(context.WithoutCancel(ctx), cmd.UserID, cmd.TeamDomain, channel,
		paired.Workspace, uid, cmd.Command)
	return ""
}

// abandonSession drops the user's DM pairing and cleans up the bridge's
// ephemeral chatter from their DM, used whenever pairing fails validation.
func (b *Bridge) abandonSession(ctx context.Context, workspace, userID string) {
	b.sessions.Unpair(userID)
	b.cleanChannel(ctx, workspace, userID)
}

// processArgs reduces platform-escaped argument tokens (<#C123|name>,
// <@U123|name>, #name, `@name`) to plain names so command handling can work
// with what the user sees.
func (b *Bridge) processArgs(ctx context.Context, workspace, channel, args string) string {
	args = replaceFirst(channelTokenRe, args, func(m []string) string {
		if name := b.resolver.ChannelName(ctx, m[1], workspace); name != "" {
			channel = name
			return name
		}
		return strings.TrimPrefix(m[2], "|")
	})
	args = replaceFirst(hashTokenRe, args, func(m []string) string {
		channel = m[1]
		return m[1]
	})
	if channel == "" {
		return args
	}

	args = userTokenRe.ReplaceAllStringFunc(args, func(tok string) string {
		m := userTokenRe.FindStringSubmatch(tok)
		if user := b.resolver.User(ctx, m[1], channel, workspace, false); user != nil {
			return user.Name
		}
		return strings.TrimPrefix(m[2], "|")
	})
	return bareUserRe.ReplaceAllStringFunc(args, func(tok string) string {
		return bareUserRe.FindStringSubmatch(tok)[1]
	})
}

// listUsers renders the bridged roster of a remote channel as delimited
// mention tokens, one per line.
func (b *Bridge) listUsers(workspace, channel string) string {
	names := b.resolver.Names(channel, workspace)
	return "`@" + strings.Join(names, "`\n`@") + "`"
}

func splitCommand(text string) (command, args string) {
	command, args, _ = strings.Cut(strings.TrimSpace(text), " ")
	return command, strings.TrimLeft(args, " ")
}

// replaceFirst rewrites only the first match of re in s.
func replaceFirst(re *regexp.Regexp, s string, fn func(groups []string) string) string {
	loc := re.FindStringSubmatchIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + fn(re.FindStringSubmatch(s)) + s[loc[1]:]
}

// manualSection extracts the user-facing section of the embedded manual.
func manualSection() string {
	blocks := strings.Split(manualText, "\n\n")
	for i, block := range blocks {
		if strings.HasPrefix(block, manualHeading) && i+1 < len(blocks) {
			return blocks[i+1]
		}
	}
	return manualText
}

func helpText(invocation string) string {
	return "Supported commands:" +
		"\n>" + invocation + " help\n\tShow this help" +
		"\n>" + invocation + " manual\n\tShow detailed user documentation" +
		"\n>" + invocation + " list [channel]\n\tList bridged members of current channel (or specified [channel])" +
		"\n>" + invocation + " dm <user> [- channel]\n\tDirect message specified <user> (bridged via [channel])" +
		"\n\n_Note: In the above commands, <word> and [word] are not part of the command;" +
		" rather, each <word> is a required argument that you must replace," +
		" and each [word] is an optional argument that you may either omit or replace._"
}

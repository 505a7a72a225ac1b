// Copyright 2020-2026 The Vanguard Campaign Corps Mods (vanguardcampaign.org)

package bridge

import (
	"context"
	"strings"

	"github.com/slack-go/slack/slackevents"

	"github.com/orgvanize/slackline/pkg/bridge/correlate"
	"github.com/orgvanize/slackline/pkg/bridge/mentionfmt"
)

const (
	fileWarning = "*Warning:* File uploads are currently unsupported.\n" +
		"_If you want the other channel to see, link to cloud storage instead!_"
	reactionWarning = "*Warning:* Emoji reactions are currently unsupported.\n" +
		"_If you want the other channel to see, send an emoji message!_"
	delimiterWarning = "*Warning:* If you want to tag someone in the bridged channel," +
		" you must enclose the mention in backticks (e.g., `@Their Name`).\n" +
		"_Edit your message if you wish to notify people!_"
	unpairedError = "*Error:* You must either reply in a thread or specify a user to direct message!\n" +
		"_For help: click my avatar, choose an option beginning with '/', and hit send._"
)

func (b *Bridge) handleEvent(ctx context.Context, event *slackevents.EventsAPIEvent) {
	switch data := event.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		b.handleMessage(ctx, event.TeamID, data)
	case *slackevents.MemberJoinedChannelEvent:
		b.handleJoin(ctx, data)
	case *slackevents.MemberLeftChannelEvent:
		b.handleLeave(ctx, data)
	case *slackevents.ReactionAddedEvent:
		b.handleReaction(ctx, data)
	default:
		b.log.Info().Str("event_type", event.InnerEvent.Type).Msg("Unhandled type in event")
	}
}

func (b *Bridge) handleJoin(ctx context.Context, event *slackevents.MemberJoinedChannelEvent) {
	workspace := b.resolver.WorkspaceDomain(event.Team)
	if workspace == "" {
		return
	}
	channel := b.resolver.ChannelName(ctx, event.Channel, workspace)
	if channel == "" {
		return
	}
	b.resolver.User(ctx, event.User, channel, workspace, true)
}

func (b *Bridge) handleLeave(ctx context.Context, event *slackevents.MemberLeftChannelEvent) {
	workspace := b.resolver.WorkspaceDomain(event.Team)
	if workspace == "" {
		return
	}
	channel := b.resolver.ChannelName(ctx, event.Channel, workspace)
	b.resolver.ForgetUser(ctx, event.User, channel, workspace)

	// If the leaver was DM'ing through this channel, their pairing is no
	// longer licensed.
	if sess := b.sessions.Get(event.User); sess.Channel == channel {
		b.sessions.Unpair(event.User)
		b.cleanChannel(ctx, workspace, event.User)
		b.warn(ctx, workspace, event.User, event.User,
			"You can no longer DM this person because you have been removed from the '"+
				channel+"' channel.")
	}

	// Anyone paired with the leaver loses their session too.
	for _, dmer := range b.sessions.PairedWith(event.User) {
		sess := b.sessions.Get(dmer)
		b.sessions.Unpair(dmer)
		paired := b.lines.Pair(workspace, channel, false)
		if paired == nil {
			continue
		}
		b.cleanChannel(ctx, paired.Workspace, dmer)
		b.warn(ctx, paired.Workspace, dmer, dmer,
			"You can no longer DM this person because they have been unbridged from the '"+
				sess.Channel+"' channel.")
	}
}

func (b *Bridge) handleReaction(ctx context.Context, event *slackevents.ReactionAddedEvent) {
	copied, err := b.store.Get(ctx, event.Item.Timestamp)
	if err != nil {
		b.log.Err(err).Str("ts", event.Item.Timestamp).Msg("Failed to look up reacted message")
		return
	}
	if copied == nil {
		return
	}
	workspace := b.resolver.WorkspaceDomain(b.resolver.TeamOf(event.Item.Channel))
	b.warn(ctx, workspace, event.Item.Channel, event.User, reactionWarning)
}

func (b *Bridge) handleMessage(ctx context.Context, teamID string, event *slackevents.MessageEvent) {
	if event.SubType == "file_share" {
		workspace := b.resolver.WorkspaceDomain(b.resolver.TeamOf(event.Channel))
		b.warn(ctx, workspace, event.Channel, event.User, fileWarning)
	}
	if event.BotID != "" || (event.Message != nil && event.Message.BotID != "") {
		// Our own relayed copy echoing back, or some other bot.
		return
	}

	switch event.SubType {
	case "message_deleted":
		b.propagateDelete(ctx, event)
		return
	case "message_changed":
		b.propagateEdit(ctx, event)
		return
	}

	// Some subtypes arrive without a team on the envelope.
	team := teamID
	if event.SubType == "thread_broadcast" || event.SubType == "file_share" ||
		strings.HasSuffix(event.SubType, "_join") || strings.HasSuffix(event.SubType, "_leave") {
		team = b.resolver.TeamOf(event.Channel)
	}
	workspace := b.resolver.WorkspaceDomain(team)
	if workspace == "" {
		b.log.Warn().Str("team", team).Str("channel", event.Channel).
			Msg("Dropping message from unknown workspace")
		return
	}

	var threadTS string
	var broadcast bool
	var thread *correlate.Record
	if event.ThreadTimeStamp != "" {
		var err error
		thread, err = b.store.Get(ctx, event.ThreadTimeStamp)
		if err != nil {
			b.log.Err(err).Str("ts", event.ThreadTimeStamp).Msg("Failed to look up thread ancestor")
		}
		if thread != nil {
			threadTS = thread.PeerTS
			broadcast = event.SubType == "thread_broadcast"
		}
	}

	var channel string
	var paired *Pair
	if event.ChannelType == "im" {
		channel, paired = b.resolveDM(ctx, workspace, thread, event)
		if paired == nil {
			return
		}
	} else {
		channel = b.resolver.ChannelName(ctx, event.Channel, workspace)
		if channel == "" {
			return
		}
		paired = b.lines.Pair(workspace, channel, false)
		if paired == nil {
			return
		}
	}

	msg := Message{
		Channel:   paired.Channel,
		Text:      event.Text,
		ThreadTS:  threadTS,
		Broadcast: broadcast,
	}
	if user := b.resolver.User(ctx, event.User, channel, workspace, true); user != nil {
		msg.Username = user.Name
		msg.IconURL = user.Avatar

		var lookup mentionfmt.NameLookup
		var candidates []string
		if event.ChannelType == "im" {
			// Suffix the sender's name with the licensing channel so
			// the recipient knows which bridge the DM came through.
			if line := b.lines.Pair(workspace, channel, false); line != nil {
				msg.Username += " - " + line.Channel
			}
			lookup, candidates = b.dmRecipient(ctx, paired)
		} else {
			lookup = b.channelIndex(paired.Channel, paired.Workspace)
			candidates = b.resolver.Names(paired.Channel, paired.Workspace)
		}
		msg.Text = b.rewriteMentions(ctx, workspace, channel, event.Channel, event.User,
			event.Text, lookup, candidates)
	}

	api := b.clients.Lookup(paired.Workspace)
	if api == nil {
		return
	}
	conversation, ts, err := api.PostMessage(ctx, msg)
	if err != nil {
		b.log.Err(err).Str("workspace", paired.Workspace).Str("channel", paired.Channel).
			Msg("Failed to relay message")
		return
	}
	if _, err := b.store.Link(ctx, event.TimeStamp, event.Channel, correlate.Record{
		Workspace:        workspace,
		Channel:          channel,
		PeerWorkspace:    paired.Workspace,
		PeerChannel:      paired.Channel,
		PeerConversation: conversation,
		PeerTS:           ts,
	}); err != nil {
		b.log.Err(err).Str("ts", event.TimeStamp).Msg("Failed to correlate relayed message")
	}
}

// resolveDM works out which remote conversation a DM to the bridge should
// relay to: the sender's current pairing, unless the message replies in a
// thread that correlates elsewhere, in which case the pairing follows the
// thread.
func (b *Bridge) resolveDM(ctx context.Context, workspace string, thread *correlate.Record, event *slackevents.MessageEvent) (string, *Pair) {
	var channel string
	var paired *Pair
	if sess := b.sessions.Get(event.User); sess.Paired() {
		channel = sess.Channel
		paired = &Pair{
			Workspace: sess.PeerWorkspace,
			Channel:   b.resolver.IM(ctx, sess.TargetID, sess.PeerWorkspace),
		}
	}

	var errText string
	if thread != nil && (paired == nil ||
		thread.PeerWorkspace != paired.Workspace || thread.PeerConversation != paired.Channel) {
		// Threaded reply into a differently-paired conversation: re-pair
		// with the thread's counterpart, provided both ends are still
		// licensed by the bridged channel.
		channel = thread.Channel
		if line := b.lines.Pair(thread.PeerWorkspace, thread.PeerChannel, true); line != nil {
			channel = line.Channel
		}
		remote := b.lines.Pair(workspace, channel, false)
		switch {
		case !b.resolver.IsMember(ctx, event.User, channel, workspace):
			errText = "*Error:* You can no longer DM this person because you have been removed from the '" +
				channel + "' channel!"
		case remote == nil || !b.resolver.IsMember(ctx,
			b.resolver.IMOwner(thread.PeerConversation, thread.PeerWorkspace),
			remote.Channel, thread.PeerWorkspace):
			errText = "*Error:* You can no longer DM this person because they have been unbridged from the '" +
				channel + "' channel!"
		default:
			paired = &Pair{Workspace: thread.PeerWorkspace, Channel: thread.PeerConversation}
			var target string
			if api := b.clients.Lookup(paired.Workspace); api != nil {
				if meta, err := api.ChannelInfo(ctx, paired.Channel); err == nil {
					target = meta.User
				}
			}
			b.selectUser(ctx, event.User, workspace, channel, paired.Workspace, target, "")
		}
	}

	if channel == "" || paired == nil {
		if api := b.clients.Lookup(workspace); api != nil {
			if err := api.AddReaction(ctx, "warning", event.Channel, event.TimeStamp); err != nil {
				b.log.Err(err).Str("channel", event.Channel).Msg("Failed to react to unroutable DM")
			}
		}
		if errText == "" {
			errText = unpairedError
		}
		b.warn(ctx, workspace, event.Channel, event.User, errText)
		return "", nil
	}
	return channel, paired
}

// dmRecipient builds the mention lookup for a DM tunnel: only the single
// person on the far end can be tagged.
func (b *Bridge) dmRecipient(ctx context.Context, paired *Pair) (mentionfmt.NameLookup, []string) {
	var uid, name string
	if api := b.clients.Lookup(paired.Workspace); api != nil {
		if meta, err := api.ChannelInfo(ctx, paired.Channel); err == nil {
			uid = meta.User
		}
	}
	if uid != "" {
		if user := b.resolver.User(ctx, uid, paired.Channel, paired.Workspace, false); user != nil {
			name = user.Name
		}
	}
	return mentionfmt.FixedRecipient(name, uid), []string{name}
}

func (b *Bridge) propagateDelete(ctx context.Context, event *slackevents.MessageEvent) {
	copied, err := b.store.Get(ctx, event.DeletedTimeStamp)
	if err != nil {
		b.log.Err(err).Str("ts", event.DeletedTimeStamp).Msg("Failed to look up deleted message")
		return
	}
	if copied == nil {
		return
	}
	if api := b.clients.Lookup(copied.PeerWorkspace); api != nil {
		if err := api.DeleteMessage(ctx, copied.PeerConversation, copied.PeerTS); err != nil {
			b.log.Err(err).Str("workspace", copied.PeerWorkspace).Str("ts", copied.PeerTS).
				Msg("Failed to delete relayed copy")
		}
	}
	if _, err := b.store.Delete(ctx, event.DeletedTimeStamp); err != nil {
		b.log.Err(err).Str("ts", event.DeletedTimeStamp).Msg("Failed to forget deleted message")
	}
}

func (b *Bridge) propagateEdit(ctx context.Context, event *slackevents.MessageEvent) {
	edited := event.Message
	if edited == nil {
		return
	}
	copied, err := b.store.Get(ctx, edited.Timestamp)
	if err != nil {
		b.log.Err(err).Str("ts", edited.Timestamp).Msg("Failed to look up edited message")
		return
	}
	if copied == nil {
		return
	}

	text := edited.Text
	if edited.User != "" {
		if b.resolver.User(ctx, edited.User, copied.Channel, copied.Workspace, true) != nil {
			text = b.rewriteMentions(ctx, copied.Workspace, copied.Channel, event.Channel,
				edited.User, edited.Text,
				b.channelIndex(copied.PeerChannel, copied.PeerWorkspace),
				b.resolver.Names(copied.PeerChannel, copied.PeerWorkspace))
		}
	}

	api := b.clients.Lookup(copied.PeerWorkspace)
	if api == nil {
		return
	}
	if err := api.UpdateMessage(ctx, copied.PeerConversation, copied.PeerTS, text); err != nil {
		b.log.Err(err).Str("workspace", copied.PeerWorkspace).Str("ts", copied.PeerTS).
			Msg("Failed to edit relayed copy")
	}
}

// rewriteMentions translates mention tokens for the crossing: native <@U…>
// tokens collapse to the sender-side display name, and backtick-delimited
// portable mentions resolve against the destination roster. Problems are
// reported back to the sender as ephemeral warnings in display.
func (b *Bridge) rewriteMentions(ctx context.Context, workspace, channel, display, sender, text string, lookup mentionfmt.NameLookup, candidates []string) string {
	out := mentionfmt.Outbound(text, func(id string) (string, bool) {
		user := b.resolver.User(ctx, id, channel, workspace, false)
		if user == nil {
			return "", false
		}
		return user.Name, true
	})
	if out.Undelimited {
		b.warn(ctx, workspace, display, sender, delimiterWarning)
	}

	in := mentionfmt.Inbound(out.Text, lookup)
	var missing []string
	for _, name := range in.Missing {
		if !out.Locals[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		list := make([]string, len(missing))
		for i, name := range missing {
			list[i] = "'" + name + "'"
		}
		roster := make([]string, len(candidates))
		for i, name := range candidates {
			roster[i] = "`@" + name + "`"
		}
		b.warn(ctx, workspace, display, sender,
			"*Warning:* Could not find anyone by the name(s) "+strings.Join(list, ", ")+"!\n"+
				"Maybe you meant one of these people:\n"+strings.Join(roster, "\n")+
				"\n_If so, edit your message so they will be notified!_")
	}
	return in.Text
}

// channelIndex resolves destination-roster names scoped to a remote channel.
func (b *Bridge) channelIndex(channel, workspace string) mentionfmt.NameLookup {
	return func(name string) (string, bool) {
		id, _ := b.resolver.FindByName(name, channel, workspace)
		return id, id != ""
	}
}

// selectUser completes a dm pairing: records the session, clears the
// bridge's previous chatter from the initiator's DM, and confirms.
func (b *Bridge) selectUser(ctx context.Context, dmer, workspace, channel, peerWorkspace, target, command string) {
	sess := b.sessions.Pair(dmer, peerWorkspace, channel, target, command)
	cleaned := b.cleanChannel(ctx, workspace, dmer)

	var name string
	if user := b.resolver.User(ctx, target, channel, peerWorkspace, false); user != nil {
		name = user.Name
	}
	api := b.clients.Lookup(workspace)
	if api == nil {
		return
	}
	if _, _, err := api.PostMessage(ctx, Message{
		Channel: dmer,
		Text:    "You are now DM'ing `@" + name + "` from #" + channel + ".",
	}); err != nil {
		b.log.Err(err).Str("user", dmer).Msg("Failed to confirm DM pairing")
	}
	if !cleaned && sess.Command != "" {
		b.warn(ctx, workspace, dmer, dmer,
			"_To change this, use_ *"+sess.Command+" dm* _at any time._")
	}
}

// cleanChannel deletes the bridge's own trailing housekeeping messages from
// the user's DM with it, reporting whether anything was removed.
func (b *Bridge) cleanChannel(ctx context.Context, workspace, user string) bool {
	api := b.clients.Lookup(workspace)
	if api == nil {
		return false
	}
	convo := b.resolver.IM(ctx, user, workspace)
	if convo == "" {
		return false
	}

	modified := false
	for {
		latest, err := api.LatestMessage(ctx, convo)
		if err != nil || latest == nil {
			break
		}
		// Stop at the first relayed message (our relays carry a username
		// override) or anything a human sent.
		if latest.BotID == "" || latest.Username != "" {
			break
		}
		if err := api.DeleteMessage(ctx, convo, latest.Timestamp); err != nil {
			b.log.Err(err).Str("channel", convo).Msg("Failed to clean up DM")
			break
		}
		modified = true
	}
	return modified
}

// warn posts an ephemeral notice only the offending user can see.
func (b *Bridge) warn(ctx context.Context, workspace, channel, user, text string) {
	api := b.clients.Lookup(workspace)
	if api == nil {
		return
	}
	if err := api.PostEphemeral(ctx, channel, user, text); err != nil {
		b.log.Err(err).Str("workspace", workspace).Str("channel", channel).
			Msg("Failed to post warning")
	}
}
